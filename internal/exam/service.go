package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"clickerexam/internal/domain"
	"clickerexam/internal/store"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Service struct {
	store store.Store
	now   func() time.Time
}

type CreateExamInput struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	DurationMinutes int      `json:"duration"`
	Revisable       *bool    `json:"revisable"`
	PositiveMarking *float64 `json:"positive_marking"`
	NegativeMarking *float64 `json:"negative_marking"`
}

func (in CreateExamInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.DurationMinutes, validation.Required, validation.Min(1)),
		validation.Field(&in.PositiveMarking, validation.NilOrNotEmpty, validation.Min(0.0)),
		validation.Field(&in.NegativeMarking, validation.Min(0.0)),
	)
}

type UpdateExamInput struct {
	ExamID int64 `json:"-"`
	CreateExamInput
}

type UpsertExamQuestionInput struct {
	ExamID        int64    `json:"-"`
	QuestionID    int64    `json:"question_id"`
	Order         int      `json:"order"`
	PositiveMarks *float64 `json:"positive_marks"`
	NegativeMarks *float64 `json:"negative_marks"`
	IsOptional    bool     `json:"is_optional"`
}

func (in UpsertExamQuestionInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.QuestionID, validation.Required, validation.Min(int64(1))),
		validation.Field(&in.Order, validation.Min(0)),
		validation.Field(&in.PositiveMarks, validation.Min(0.0)),
		validation.Field(&in.NegativeMarks, validation.Min(0.0)),
	)
}

// SnapshotView is what snapshot retrieval returns: the stored snapshot
// verbatim for frozen exams, otherwise a freshly computed preview.
type SnapshotView struct {
	ExamID  int64            `json:"exam_id"`
	Frozen  bool             `json:"frozen"`
	Version string           `json:"version,omitempty"`
	Data    []byte           `json:"-"`
	Preview *domain.Snapshot `json:"-"`
}

func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// WithClock replaces the time source; used to make freezes reproducible.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

func (s *Service) CreateExam(ctx context.Context, in CreateExamInput) (*domain.Exam, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	e := &domain.Exam{
		Title:           in.Title,
		Description:     strings.TrimSpace(in.Description),
		DurationMinutes: in.DurationMinutes,
		Revisable:       true,
		Status:          domain.ExamDraft,
		PositiveMarking: 1,
	}
	applyExamInput(e, in)
	if err := s.store.CreateExam(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func applyExamInput(e *domain.Exam, in CreateExamInput) {
	if in.Revisable != nil {
		e.Revisable = *in.Revisable
	}
	if in.PositiveMarking != nil {
		e.PositiveMarking = *in.PositiveMarking
	}
	if in.NegativeMarking != nil {
		e.NegativeMarking = *in.NegativeMarking
	}
}

func (s *Service) GetExam(ctx context.Context, examID int64) (*domain.Exam, error) {
	if examID <= 0 {
		return nil, domain.ErrInvalidInput
	}
	return s.store.GetExam(ctx, examID)
}

func (s *Service) ListExams(ctx context.Context) ([]domain.Exam, error) {
	return s.store.ListExams(ctx)
}

// UpdateExam edits a draft exam. Frozen and completed exams are rejected
// without touching stored data.
func (s *Service) UpdateExam(ctx context.Context, in UpdateExamInput) (*domain.Exam, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.CreateExamInput.Validate(); err != nil {
		return nil, invalid(err)
	}
	var out *domain.Exam
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		e, err := tx.GetExam(ctx, in.ExamID)
		if err != nil {
			return err
		}
		if e.IsFrozen() {
			return domain.ErrExamFrozen
		}
		e.Title = in.Title
		e.Description = strings.TrimSpace(in.Description)
		e.DurationMinutes = in.DurationMinutes
		applyExamInput(e, in.CreateExamInput)
		if err := tx.UpdateExam(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ListExamQuestions(ctx context.Context, examID int64) ([]domain.ExamQuestionDetail, error) {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	return s.store.ListExamQuestions(ctx, examID)
}

// UpsertExamQuestion links a bank question to a draft exam. Marks default to
// the exam-wide positive and negative marking.
func (s *Service) UpsertExamQuestion(ctx context.Context, in UpsertExamQuestionInput) (*domain.ExamQuestionDetail, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	var out *domain.ExamQuestionDetail
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		e, err := tx.GetExam(ctx, in.ExamID)
		if err != nil {
			return err
		}
		if e.IsFrozen() {
			return domain.ErrExamFrozen
		}
		q, err := tx.GetQuestion(ctx, in.QuestionID)
		if err != nil {
			return err
		}
		eq := domain.ExamQuestion{
			ExamID:        e.ID,
			QuestionID:    q.ID,
			Order:         in.Order,
			PositiveMarks: e.PositiveMarking,
			NegativeMarks: e.NegativeMarking,
			IsOptional:    in.IsOptional,
		}
		if in.PositiveMarks != nil {
			eq.PositiveMarks = *in.PositiveMarks
		}
		if in.NegativeMarks != nil {
			eq.NegativeMarks = *in.NegativeMarks
		}
		if err := tx.UpsertExamQuestion(ctx, eq); err != nil {
			return err
		}
		out = &domain.ExamQuestionDetail{ExamQuestion: eq, Question: *q}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeleteExamQuestion(ctx context.Context, examID, questionID int64) error {
	if examID <= 0 || questionID <= 0 {
		return domain.ErrInvalidInput
	}
	return s.store.InTx(ctx, func(tx store.Repository) error {
		e, err := tx.GetExam(ctx, examID)
		if err != nil {
			return err
		}
		if e.IsFrozen() {
			return domain.ErrExamFrozen
		}
		return tx.DeleteExamQuestion(ctx, examID, questionID)
	})
}

// Freeze builds the immutable snapshot and flips the exam to frozen in one
// transaction. Already frozen exams and exams without questions are rejected
// with an InvalidStateError and nothing is written.
func (s *Service) Freeze(ctx context.Context, examID int64) (*SnapshotView, error) {
	var view *SnapshotView
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		e, err := tx.GetExam(ctx, examID)
		if err != nil {
			return err
		}
		if e.IsFrozen() {
			return &domain.InvalidStateError{ExamID: examID, Err: domain.ErrExamFrozen}
		}
		rows, err := tx.ListExamQuestions(ctx, examID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.InvalidStateError{ExamID: examID, Err: domain.ErrExamNoQuestions}
		}

		frozenAt := s.now()
		payload, version, err := EncodeSnapshot(BuildSnapshot(e, rows, frozenAt, false))
		if err != nil {
			return err
		}
		if err := tx.SaveExamSnapshot(ctx, examID, payload, version, frozenAt); err != nil {
			if errors.Is(err, domain.ErrExamFrozen) {
				return &domain.InvalidStateError{ExamID: examID, Err: err}
			}
			return err
		}
		view = &SnapshotView{ExamID: examID, Frozen: true, Version: version, Data: payload}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("exam %d frozen version=%s", examID, view.Version)
	return view, nil
}

// Snapshot returns the stored snapshot of a frozen exam, or a non-authoritative
// preview of a draft.
func (s *Service) Snapshot(ctx context.Context, examID int64) (*SnapshotView, error) {
	e, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if e.IsFrozen() && len(e.SnapshotData) > 0 {
		return &SnapshotView{ExamID: examID, Frozen: true, Version: e.SnapshotVersion, Data: e.SnapshotData}, nil
	}

	rows, err := s.store.ListExamQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	preview := BuildSnapshot(e, rows, s.now(), true)
	payload, _, err := EncodeSnapshot(preview)
	if err != nil {
		return nil, err
	}
	return &SnapshotView{ExamID: examID, Data: payload, Preview: &preview}, nil
}

// CompleteExam closes a frozen exam. Completed exams still accept late syncs.
func (s *Service) CompleteExam(ctx context.Context, examID int64) (*domain.Exam, error) {
	var out *domain.Exam
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		e, err := tx.GetExam(ctx, examID)
		if err != nil {
			return err
		}
		switch e.Status {
		case domain.ExamCompleted:
			out = e
			return nil
		case domain.ExamDraft:
			return &domain.PreconditionError{ExamID: examID, Err: domain.ErrExamNotFrozen}
		}
		if err := tx.SetExamStatus(ctx, examID, domain.ExamCompleted); err != nil {
			return err
		}
		e.Status = domain.ExamCompleted
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
