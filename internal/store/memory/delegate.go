package memory

import (
	"context"
	"time"

	"clickerexam/internal/domain"
	"clickerexam/internal/store"
)

func (s *Store) CreateExam(ctx context.Context, e *domain.Exam) error {
	return s.with(func(r *repo) error { return r.CreateExam(ctx, e) })
}

func (s *Store) GetExam(ctx context.Context, examID int64) (*domain.Exam, error) {
	var out *domain.Exam
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.GetExam(ctx, examID)
		return err
	})
	return out, err
}

func (s *Store) ListExams(ctx context.Context) ([]domain.Exam, error) {
	var out []domain.Exam
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.ListExams(ctx)
		return err
	})
	return out, err
}

func (s *Store) UpdateExam(ctx context.Context, e *domain.Exam) error {
	return s.with(func(r *repo) error { return r.UpdateExam(ctx, e) })
}

func (s *Store) SaveExamSnapshot(ctx context.Context, examID int64, payload []byte, version string, frozenAt time.Time) error {
	return s.with(func(r *repo) error { return r.SaveExamSnapshot(ctx, examID, payload, version, frozenAt) })
}

func (s *Store) SetExamStatus(ctx context.Context, examID int64, status domain.ExamStatus) error {
	return s.with(func(r *repo) error { return r.SetExamStatus(ctx, examID, status) })
}

func (s *Store) CreateQuestion(ctx context.Context, q *domain.Question) error {
	return s.with(func(r *repo) error { return r.CreateQuestion(ctx, q) })
}

func (s *Store) GetQuestion(ctx context.Context, questionID int64) (*domain.Question, error) {
	var out *domain.Question
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.GetQuestion(ctx, questionID)
		return err
	})
	return out, err
}

func (s *Store) UpdateQuestion(ctx context.Context, q *domain.Question) error {
	return s.with(func(r *repo) error { return r.UpdateQuestion(ctx, q) })
}

func (s *Store) SearchQuestions(ctx context.Context, f store.QuestionFilter) ([]domain.Question, error) {
	var out []domain.Question
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.SearchQuestions(ctx, f)
		return err
	})
	return out, err
}

func (s *Store) ListExamQuestions(ctx context.Context, examID int64) ([]domain.ExamQuestionDetail, error) {
	var out []domain.ExamQuestionDetail
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.ListExamQuestions(ctx, examID)
		return err
	})
	return out, err
}

func (s *Store) UpsertExamQuestion(ctx context.Context, eq domain.ExamQuestion) error {
	return s.with(func(r *repo) error { return r.UpsertExamQuestion(ctx, eq) })
}

func (s *Store) DeleteExamQuestion(ctx context.Context, examID, questionID int64) error {
	return s.with(func(r *repo) error { return r.DeleteExamQuestion(ctx, examID, questionID) })
}

func (s *Store) CreateParticipant(ctx context.Context, p *domain.Participant) error {
	return s.with(func(r *repo) error { return r.CreateParticipant(ctx, p) })
}

func (s *Store) GetParticipant(ctx context.Context, participantID int64) (*domain.Participant, error) {
	var out *domain.Participant
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.GetParticipant(ctx, participantID)
		return err
	})
	return out, err
}

func (s *Store) FindParticipantByClicker(ctx context.Context, clickerID string) (*domain.Participant, error) {
	var out *domain.Participant
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.FindParticipantByClicker(ctx, clickerID)
		return err
	})
	return out, err
}

func (s *Store) FindParticipantByEmail(ctx context.Context, email string) (*domain.Participant, error) {
	var out *domain.Participant
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.FindParticipantByEmail(ctx, email)
		return err
	})
	return out, err
}

func (s *Store) UpdateParticipantClicker(ctx context.Context, participantID int64, clickerID string) error {
	return s.with(func(r *repo) error { return r.UpdateParticipantClicker(ctx, participantID, clickerID) })
}

func (s *Store) CountParticipants(ctx context.Context) (int, error) {
	var out int
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.CountParticipants(ctx)
		return err
	})
	return out, err
}

func (s *Store) EnsureRoster(ctx context.Context, examID, participantID int64) error {
	return s.with(func(r *repo) error { return r.EnsureRoster(ctx, examID, participantID) })
}

func (s *Store) ListRoster(ctx context.Context, examID int64) ([]domain.Participant, error) {
	var out []domain.Participant
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.ListRoster(ctx, examID)
		return err
	})
	return out, err
}

func (s *Store) CountRosterAssignments(ctx context.Context) (int, error) {
	var out int
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.CountRosterAssignments(ctx)
		return err
	})
	return out, err
}

func (s *Store) FindOrCreateAttempt(ctx context.Context, examID, participantID int64, totalQuestions int, startedAt time.Time) (*domain.Attempt, error) {
	var out *domain.Attempt
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.FindOrCreateAttempt(ctx, examID, participantID, totalQuestions, startedAt)
		return err
	})
	return out, err
}

func (s *Store) GetAttempt(ctx context.Context, attemptID int64) (*domain.Attempt, error) {
	var out *domain.Attempt
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.GetAttempt(ctx, attemptID)
		return err
	})
	return out, err
}

func (s *Store) ListAttempts(ctx context.Context, examID int64) ([]domain.Attempt, error) {
	var out []domain.Attempt
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.ListAttempts(ctx, examID)
		return err
	})
	return out, err
}

func (s *Store) SaveAttemptTotals(ctx context.Context, a *domain.Attempt) error {
	return s.with(func(r *repo) error { return r.SaveAttemptTotals(ctx, a) })
}

func (s *Store) InsertAnswerIfAbsent(ctx context.Context, a *domain.Answer) (bool, error) {
	var out bool
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.InsertAnswerIfAbsent(ctx, a)
		return err
	})
	return out, err
}

func (s *Store) ListAnswers(ctx context.Context, attemptID int64) ([]domain.Answer, error) {
	var out []domain.Answer
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.ListAnswers(ctx, attemptID)
		return err
	})
	return out, err
}

func (s *Store) ListExamAnswers(ctx context.Context, examID int64) ([]domain.Answer, error) {
	var out []domain.Answer
	err := s.with(func(r *repo) error {
		var err error
		out, err = r.ListExamAnswers(ctx, examID)
		return err
	})
	return out, err
}
