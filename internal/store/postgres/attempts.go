package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clickerexam/internal/domain"
)

const attemptColumns = `id, exam_id, participant_id, started_at, submitted_at, score::float8,
	total_questions, correct_answers, wrong_answers, unattempted, time_taken`

func scanAttempt(row rowScanner) (*domain.Attempt, error) {
	var a domain.Attempt
	var submitted sql.NullTime
	if err := row.Scan(&a.ID, &a.ExamID, &a.ParticipantID, &a.StartedAt, &submitted, &a.Score,
		&a.TotalQuestions, &a.CorrectAnswers, &a.WrongAnswers, &a.Unattempted, &a.TimeTaken); err != nil {
		return nil, err
	}
	if submitted.Valid {
		t := submitted.Time
		a.SubmittedAt = &t
	}
	return &a, nil
}

func (r *repo) FindOrCreateAttempt(ctx context.Context, examID, participantID int64, totalQuestions int, startedAt time.Time) (*domain.Attempt, error) {
	a, err := scanAttempt(r.q.QueryRowContext(ctx, `
		INSERT INTO exam_attempts (exam_id, participant_id, started_at, total_questions, unattempted)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (exam_id, participant_id) DO NOTHING
		RETURNING `+attemptColumns,
		examID, participantID, startedAt, totalQuestions))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}

	a, err = scanAttempt(r.q.QueryRowContext(ctx, `
		SELECT `+attemptColumns+`
		FROM exam_attempts
		WHERE exam_id = $1 AND participant_id = $2
	`+r.forUpdate(), examID, participantID))
	if err != nil {
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	return a, nil
}

func (r *repo) GetAttempt(ctx context.Context, attemptID int64) (*domain.Attempt, error) {
	a, err := scanAttempt(r.q.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1`+r.forUpdate(), attemptID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	return a, nil
}

func (r *repo) ListAttempts(ctx context.Context, examID int64) ([]domain.Attempt, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+attemptColumns+` FROM exam_attempts WHERE exam_id = $1 ORDER BY id`, examID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Attempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *repo) SaveAttemptTotals(ctx context.Context, a *domain.Attempt) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE exam_attempts
		SET score = $2, total_questions = $3, correct_answers = $4, wrong_answers = $5,
			unattempted = $6, time_taken = $7, submitted_at = $8
		WHERE id = $1
	`, a.ID, a.Score, a.TotalQuestions, a.CorrectAnswers, a.WrongAnswers, a.Unattempted, a.TimeTaken, a.SubmittedAt)
	if err != nil {
		return fmt.Errorf("save attempt totals: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (r *repo) InsertAnswerIfAbsent(ctx context.Context, a *domain.Answer) (bool, error) {
	selected, err := json.Marshal(a.SelectedAnswer)
	if err != nil {
		return false, fmt.Errorf("encode selected answer: %w", err)
	}
	err = r.q.QueryRowContext(ctx, `
		INSERT INTO answers (attempt_id, question_id, selected_answer, is_correct, time_taken, answered_at)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6)
		ON CONFLICT (attempt_id, question_id) DO NOTHING
		RETURNING id
	`, a.AttemptID, a.QuestionID, string(selected), a.IsCorrect, a.TimeTaken, a.AnsweredAt).Scan(&a.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert answer: %w", err)
	}
	return true, nil
}

func (r *repo) listAnswers(ctx context.Context, query string, arg int64) ([]domain.Answer, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Answer, 0)
	for rows.Next() {
		var a domain.Answer
		var selected []byte
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &selected, &a.IsCorrect, &a.TimeTaken, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if err := json.Unmarshal(selected, &a.SelectedAnswer); err != nil {
			return nil, fmt.Errorf("decode selected answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repo) ListAnswers(ctx context.Context, attemptID int64) ([]domain.Answer, error) {
	return r.listAnswers(ctx, `
		SELECT id, attempt_id, question_id, selected_answer, is_correct, time_taken, answered_at
		FROM answers
		WHERE attempt_id = $1
		ORDER BY id
	`, attemptID)
}

func (r *repo) ListExamAnswers(ctx context.Context, examID int64) ([]domain.Answer, error) {
	return r.listAnswers(ctx, `
		SELECT a.id, a.attempt_id, a.question_id, a.selected_answer, a.is_correct, a.time_taken, a.answered_at
		FROM answers a
		JOIN exam_attempts t ON t.id = a.attempt_id
		WHERE t.exam_id = $1
		ORDER BY a.id
	`, examID)
}
