// Package store defines the persistence port used by the exam, participant,
// live and report services. Implementations live in store/memory and
// store/postgres.
package store

import (
	"context"
	"time"

	"clickerexam/internal/domain"
)

type QuestionFilter struct {
	Difficulty  domain.Difficulty
	Type        domain.QuestionType
	Search      string
	ExcludeExam int64
	Limit       int
}

type Repository interface {
	CreateExam(ctx context.Context, e *domain.Exam) error
	GetExam(ctx context.Context, examID int64) (*domain.Exam, error)
	ListExams(ctx context.Context) ([]domain.Exam, error)
	UpdateExam(ctx context.Context, e *domain.Exam) error
	// SaveExamSnapshot stores the payload and version and flips the exam to
	// frozen. It fails with ErrExamFrozen when the exam is no longer a draft.
	SaveExamSnapshot(ctx context.Context, examID int64, payload []byte, version string, frozenAt time.Time) error
	SetExamStatus(ctx context.Context, examID int64, status domain.ExamStatus) error

	CreateQuestion(ctx context.Context, q *domain.Question) error
	GetQuestion(ctx context.Context, questionID int64) (*domain.Question, error)
	UpdateQuestion(ctx context.Context, q *domain.Question) error
	SearchQuestions(ctx context.Context, f QuestionFilter) ([]domain.Question, error)

	// ListExamQuestions returns rows ordered by order, then question id.
	ListExamQuestions(ctx context.Context, examID int64) ([]domain.ExamQuestionDetail, error)
	UpsertExamQuestion(ctx context.Context, eq domain.ExamQuestion) error
	DeleteExamQuestion(ctx context.Context, examID, questionID int64) error

	CreateParticipant(ctx context.Context, p *domain.Participant) error
	GetParticipant(ctx context.Context, participantID int64) (*domain.Participant, error)
	FindParticipantByClicker(ctx context.Context, clickerID string) (*domain.Participant, error)
	FindParticipantByEmail(ctx context.Context, email string) (*domain.Participant, error)
	UpdateParticipantClicker(ctx context.Context, participantID int64, clickerID string) error
	CountParticipants(ctx context.Context) (int, error)

	// EnsureRoster is an idempotent upsert of exam membership.
	EnsureRoster(ctx context.Context, examID, participantID int64) error
	ListRoster(ctx context.Context, examID int64) ([]domain.Participant, error)
	CountRosterAssignments(ctx context.Context) (int, error)

	// FindOrCreateAttempt returns the unique attempt for (exam, participant),
	// creating it with the given totals when absent.
	FindOrCreateAttempt(ctx context.Context, examID, participantID int64, totalQuestions int, startedAt time.Time) (*domain.Attempt, error)
	GetAttempt(ctx context.Context, attemptID int64) (*domain.Attempt, error)
	ListAttempts(ctx context.Context, examID int64) ([]domain.Attempt, error)
	SaveAttemptTotals(ctx context.Context, a *domain.Attempt) error

	// InsertAnswerIfAbsent inserts the answer unless one already exists for
	// (attempt, question). It reports false for duplicates and never overwrites.
	InsertAnswerIfAbsent(ctx context.Context, a *domain.Answer) (bool, error)
	ListAnswers(ctx context.Context, attemptID int64) ([]domain.Answer, error)
	ListExamAnswers(ctx context.Context, examID int64) ([]domain.Answer, error)
}

// Store is a Repository that can also run a function atomically. Reads made
// through the transactional Repository lock the rows they return.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(tx Repository) error) error
}
