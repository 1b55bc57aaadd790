package question

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"clickerexam/internal/domain"
	"clickerexam/internal/exam"
	"clickerexam/internal/store"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// AvailableLimit caps the number of questions offered when building an exam.
const AvailableLimit = 100

type Service struct {
	repo store.Repository
}

type CreateQuestionInput struct {
	Text          string          `json:"text"`
	Type          string          `json:"type"`
	Options       []string        `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Difficulty    string          `json:"difficulty"`
	Tags          []string        `json:"tags"`
	Marks         *float64        `json:"marks"`
}

type UpdateQuestionInput struct {
	ID int64 `json:"-"`
	CreateQuestionInput
}

type AvailableFilter struct {
	ExamID     int64
	Difficulty string
	Type       string
	Search     string
}

func NewService(repo store.Repository) *Service {
	return &Service{repo: repo}
}

func normalizeQuestionType(v string) domain.QuestionType {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "mcq", "multiple_choice", "single":
		return domain.QuestionMCQ
	case "true_false", "truefalse", "tf":
		return domain.QuestionTrueFalse
	case "multiple_select", "multi", "multiple_response":
		return domain.QuestionMultipleSelect
	}
	return domain.QuestionType(strings.TrimSpace(strings.ToLower(v)))
}

func normalizeDifficulty(v string) domain.Difficulty {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return domain.DifficultyMedium
	}
	return domain.Difficulty(v)
}

func (in CreateQuestionInput) build() (*domain.Question, error) {
	q := &domain.Question{
		Text:       strings.TrimSpace(in.Text),
		Type:       normalizeQuestionType(in.Type),
		Difficulty: normalizeDifficulty(in.Difficulty),
		Marks:      1,
	}
	if in.Marks != nil {
		q.Marks = *in.Marks
	}
	for _, opt := range in.Options {
		q.Options = append(q.Options, strings.TrimSpace(opt))
	}
	for _, tag := range in.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			q.Tags = append(q.Tags, tag)
		}
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}

	err := validation.ValidateStruct(q,
		validation.Field(&q.Text, validation.Required),
		validation.Field(&q.Type, validation.By(func(any) error {
			if !q.Type.Valid() {
				return fmt.Errorf("unsupported question type %q", q.Type)
			}
			return nil
		})),
		validation.Field(&q.Difficulty, validation.By(func(any) error {
			if !q.Difficulty.Valid() {
				return fmt.Errorf("unsupported difficulty %q", q.Difficulty)
			}
			return nil
		})),
		validation.Field(&q.Options, validation.Required, validation.Each(validation.Required)),
		validation.Field(&q.Marks, validation.Min(0.0)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	correct, err := validateAnswerKey(q.Type, len(q.Options), in.CorrectAnswer)
	if err != nil {
		return nil, err
	}
	q.CorrectAnswer = correct
	return q, nil
}

// validateAnswerKey checks the correct answer against the question type and
// its options. Single-answer types are stored as one index.
func validateAnswerKey(qType domain.QuestionType, optionCount int, raw json.RawMessage) (domain.Choice, error) {
	if qType == domain.QuestionTrueFalse && optionCount != 2 {
		return domain.Choice{}, fmt.Errorf("%w: true_false requires exactly 2 options", domain.ErrInvalidInput)
	}
	choice, err := exam.NormalizeSelection(raw, optionCount)
	if err != nil {
		return domain.Choice{}, fmt.Errorf("%w: correct_answer: %v", domain.ErrInvalidInput, err)
	}
	if qType.IsMulti() {
		return domain.Multi(choice.Indices()...), nil
	}
	idx, ok := choice.Scalar()
	if !ok {
		return domain.Choice{}, fmt.Errorf("%w: %s correct_answer must be a single option", domain.ErrInvalidInput, qType)
	}
	return domain.Single(idx), nil
}

func (s *Service) CreateQuestion(ctx context.Context, in CreateQuestionInput) (*domain.Question, error) {
	q, err := in.build()
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

func (s *Service) GetQuestion(ctx context.Context, questionID int64) (*domain.Question, error) {
	if questionID <= 0 {
		return nil, domain.ErrInvalidInput
	}
	return s.repo.GetQuestion(ctx, questionID)
}

// UpdateQuestion edits the bank entry. Frozen exams keep the content captured
// in their snapshot.
func (s *Service) UpdateQuestion(ctx context.Context, in UpdateQuestionInput) (*domain.Question, error) {
	if in.ID <= 0 {
		return nil, domain.ErrInvalidInput
	}
	q, err := in.CreateQuestionInput.build()
	if err != nil {
		return nil, err
	}
	q.ID = in.ID
	if err := s.repo.UpdateQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// AvailableQuestions lists bank questions not yet on the exam.
func (s *Service) AvailableQuestions(ctx context.Context, f AvailableFilter) ([]domain.Question, error) {
	filter := store.QuestionFilter{
		ExcludeExam: f.ExamID,
		Search:      strings.TrimSpace(f.Search),
		Limit:       AvailableLimit,
	}
	if v := strings.TrimSpace(f.Difficulty); v != "" {
		filter.Difficulty = normalizeDifficulty(v)
		if !filter.Difficulty.Valid() {
			return nil, fmt.Errorf("%w: unsupported difficulty %q", domain.ErrInvalidInput, v)
		}
	}
	if v := strings.TrimSpace(f.Type); v != "" {
		filter.Type = normalizeQuestionType(v)
		if !filter.Type.Valid() {
			return nil, fmt.Errorf("%w: unsupported question type %q", domain.ErrInvalidInput, v)
		}
	}
	if f.ExamID > 0 {
		if _, err := s.repo.GetExam(ctx, f.ExamID); err != nil {
			return nil, err
		}
	}
	return s.repo.SearchQuestions(ctx, filter)
}
