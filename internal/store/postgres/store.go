// Package postgres implements store.Store over database/sql with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"clickerexam/internal/domain"
	"clickerexam/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
)

type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	*repo
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{repo: &repo{q: db}, db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&repo{q: tx, locking: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type repo struct {
	q       queryable
	locking bool
}

func (r *repo) forUpdate() string {
	if r.locking {
		return " FOR UPDATE"
	}
	return ""
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}

const examColumns = `id, title, description, duration_minutes, revisable, status,
	positive_marking::float8, negative_marking::float8, snapshot_data, snapshot_version,
	frozen_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (*domain.Exam, error) {
	var e domain.Exam
	var snapshot []byte
	var frozenAt sql.NullTime
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.DurationMinutes, &e.Revisable, &e.Status,
		&e.PositiveMarking, &e.NegativeMarking, &snapshot, &e.SnapshotVersion,
		&frozenAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		e.SnapshotData = json.RawMessage(snapshot)
	}
	if frozenAt.Valid {
		t := frozenAt.Time
		e.FrozenAt = &t
	}
	return &e, nil
}

func (r *repo) CreateExam(ctx context.Context, e *domain.Exam) error {
	if e.Status == "" {
		e.Status = domain.ExamDraft
	}
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO exams (title, description, duration_minutes, revisable, status, positive_marking, negative_marking)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, e.Title, e.Description, e.DurationMinutes, e.Revisable, e.Status, e.PositiveMarking, e.NegativeMarking).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

func (r *repo) GetExam(ctx context.Context, examID int64) (*domain.Exam, error) {
	e, err := scanExam(r.q.QueryRowContext(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`+r.forUpdate(), examID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	return e, nil
}

func (r *repo) ListExams(ctx context.Context) ([]domain.Exam, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+examColumns+` FROM exams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Exam, 0)
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *repo) UpdateExam(ctx context.Context, e *domain.Exam) error {
	updated, err := scanExam(r.q.QueryRowContext(ctx, `
		UPDATE exams
		SET title = $2, description = $3, duration_minutes = $4, revisable = $5,
			positive_marking = $6, negative_marking = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+examColumns,
		e.ID, e.Title, e.Description, e.DurationMinutes, e.Revisable, e.PositiveMarking, e.NegativeMarking))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrExamNotFound
		}
		return fmt.Errorf("update exam: %w", err)
	}
	*e = *updated
	return nil
}

func (r *repo) SaveExamSnapshot(ctx context.Context, examID int64, payload []byte, version string, frozenAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE exams
		SET status = 'frozen', snapshot_data = $2::json, snapshot_version = $3, frozen_at = $4, updated_at = now()
		WHERE id = $1 AND status = 'draft'
	`, examID, string(payload), version, frozenAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save snapshot rows: %w", err)
	}
	if n == 0 {
		if _, err := r.GetExam(ctx, examID); err != nil {
			return err
		}
		return domain.ErrExamFrozen
	}
	return nil
}

func (r *repo) SetExamStatus(ctx context.Context, examID int64, status domain.ExamStatus) error {
	res, err := r.q.ExecContext(ctx, `UPDATE exams SET status = $2, updated_at = now() WHERE id = $1`, examID, status)
	if err != nil {
		return fmt.Errorf("set exam status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrExamNotFound
	}
	return nil
}

const questionColumns = `id, text, type, options, correct_answer, difficulty, tags, marks::float8, created_at, updated_at`

func scanQuestion(row rowScanner, prefix ...any) (*domain.Question, error) {
	var q domain.Question
	var options, correct, tags []byte
	dest := append(prefix, &q.ID, &q.Text, &q.Type, &options, &correct, &q.Difficulty, &tags, &q.Marks, &q.CreatedAt, &q.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if err := json.Unmarshal(correct, &q.CorrectAnswer); err != nil {
		return nil, fmt.Errorf("decode correct answer: %w", err)
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &q.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &q, nil
}

func encodeQuestion(q *domain.Question) (options, correct, tags []byte, err error) {
	if options, err = json.Marshal(nonNil(q.Options)); err != nil {
		return
	}
	if correct, err = json.Marshal(q.CorrectAnswer); err != nil {
		return
	}
	tags, err = json.Marshal(nonNil(q.Tags))
	return
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func (r *repo) CreateQuestion(ctx context.Context, q *domain.Question) error {
	options, correct, tags, err := encodeQuestion(q)
	if err != nil {
		return fmt.Errorf("encode question: %w", err)
	}
	err = r.q.QueryRowContext(ctx, `
		INSERT INTO questions (text, type, options, correct_answer, difficulty, tags, marks)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, $5, $6::jsonb, $7)
		RETURNING id, created_at, updated_at
	`, q.Text, q.Type, string(options), string(correct), q.Difficulty, string(tags), q.Marks).
		Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (r *repo) GetQuestion(ctx context.Context, questionID int64) (*domain.Question, error) {
	q, err := scanQuestion(r.q.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, questionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (r *repo) UpdateQuestion(ctx context.Context, q *domain.Question) error {
	options, correct, tags, err := encodeQuestion(q)
	if err != nil {
		return fmt.Errorf("encode question: %w", err)
	}
	err = r.q.QueryRowContext(ctx, `
		UPDATE questions
		SET text = $2, type = $3, options = $4::jsonb, correct_answer = $5::jsonb,
			difficulty = $6, tags = $7::jsonb, marks = $8, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, q.ID, q.Text, q.Type, string(options), string(correct), q.Difficulty, string(tags), q.Marks).
		Scan(&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrQuestionNotFound
		}
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

func (r *repo) SearchQuestions(ctx context.Context, f store.QuestionFilter) ([]domain.Question, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Difficulty != "" {
		add("difficulty = $%d", f.Difficulty)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("text ILIKE '%%' || $%d || '%%'", s)
	}
	if f.ExcludeExam > 0 {
		add("id NOT IN (SELECT question_id FROM exam_questions WHERE exam_id = $%d)", f.ExcludeExam)
	}
	query := `SELECT ` + questionColumns + ` FROM questions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search questions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *repo) ListExamQuestions(ctx context.Context, examID int64) ([]domain.ExamQuestionDetail, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT eq.exam_id, eq.question_id, eq.seq_order, eq.positive_marks::float8, eq.negative_marks::float8, eq.is_optional,
			q.id, q.text, q.type, q.options, q.correct_answer, q.difficulty, q.tags, q.marks::float8, q.created_at, q.updated_at
		FROM exam_questions eq
		JOIN questions q ON q.id = eq.question_id
		WHERE eq.exam_id = $1
		ORDER BY eq.seq_order ASC, eq.question_id ASC
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ExamQuestionDetail, 0)
	for rows.Next() {
		var d domain.ExamQuestionDetail
		q, err := scanQuestion(rows, &d.ExamID, &d.QuestionID, &d.Order, &d.PositiveMarks, &d.NegativeMarks, &d.IsOptional)
		if err != nil {
			return nil, fmt.Errorf("scan exam question: %w", err)
		}
		d.Question = *q
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repo) UpsertExamQuestion(ctx context.Context, eq domain.ExamQuestion) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO exam_questions (exam_id, question_id, seq_order, positive_marks, negative_marks, is_optional)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (exam_id, question_id) DO UPDATE
		SET seq_order = EXCLUDED.seq_order,
			positive_marks = EXCLUDED.positive_marks,
			negative_marks = EXCLUDED.negative_marks,
			is_optional = EXCLUDED.is_optional
	`, eq.ExamID, eq.QuestionID, eq.Order, eq.PositiveMarks, eq.NegativeMarks, eq.IsOptional)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "exam_questions_order_key" {
			return domain.ErrOrderTaken
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			if strings.Contains(pgErr.ConstraintName, "question") {
				return domain.ErrQuestionNotFound
			}
			return domain.ErrExamNotFound
		}
		return fmt.Errorf("upsert exam question: %w", err)
	}
	return nil
}

func (r *repo) DeleteExamQuestion(ctx context.Context, examID, questionID int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM exam_questions WHERE exam_id = $1 AND question_id = $2`, examID, questionID)
	if err != nil {
		return fmt.Errorf("delete exam question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotInExam
	}
	return nil
}
