package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"clickerexam/internal/domain"
)

const participantColumns = `id, name, COALESCE(email, ''), clicker_id, extra, created_at`

func scanParticipant(row rowScanner) (*domain.Participant, error) {
	var p domain.Participant
	var extra []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.ClickerID, &extra, &p.CreatedAt); err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &p.Extra); err != nil {
			return nil, fmt.Errorf("decode extra: %w", err)
		}
	}
	return &p, nil
}

func participantConflict(err error) error {
	switch constraint, _ := uniqueViolation(err); constraint {
	case "participants_clicker_id_key":
		return domain.ErrDuplicateClicker
	case "participants_email_key":
		return domain.ErrDuplicateEmail
	}
	return nil
}

func (r *repo) CreateParticipant(ctx context.Context, p *domain.Participant) error {
	extra, err := json.Marshal(p.Extra)
	if err != nil {
		return fmt.Errorf("encode extra: %w", err)
	}
	err = r.q.QueryRowContext(ctx, `
		INSERT INTO participants (name, email, clicker_id, extra)
		VALUES ($1, $2, $3, $4::json)
		RETURNING id, created_at
	`, p.Name, nullString(p.Email), p.ClickerID, string(extra)).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if conflict := participantConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (r *repo) getParticipantBy(ctx context.Context, where string, arg any) (*domain.Participant, error) {
	p, err := scanParticipant(r.q.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("load participant: %w", err)
	}
	return p, nil
}

func (r *repo) GetParticipant(ctx context.Context, participantID int64) (*domain.Participant, error) {
	return r.getParticipantBy(ctx, `id = $1`, participantID)
}

func (r *repo) FindParticipantByClicker(ctx context.Context, clickerID string) (*domain.Participant, error) {
	return r.getParticipantBy(ctx, `clicker_id = $1`, clickerID)
}

func (r *repo) FindParticipantByEmail(ctx context.Context, email string) (*domain.Participant, error) {
	return r.getParticipantBy(ctx, `lower(email) = lower($1)`, email)
}

func (r *repo) UpdateParticipantClicker(ctx context.Context, participantID int64, clickerID string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE participants SET clicker_id = $2 WHERE id = $1`, participantID, clickerID)
	if err != nil {
		if conflict := participantConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("update clicker: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (r *repo) CountParticipants(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return n, nil
}

func (r *repo) EnsureRoster(ctx context.Context, examID, participantID int64) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO exam_participants (exam_id, participant_id)
		VALUES ($1, $2)
		ON CONFLICT (exam_id, participant_id) DO NOTHING
	`, examID, participantID)
	if err != nil {
		return fmt.Errorf("ensure roster: %w", err)
	}
	return nil
}

func (r *repo) ListRoster(ctx context.Context, examID int64) ([]domain.Participant, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT p.id, p.name, COALESCE(p.email, ''), p.clicker_id, p.extra, p.created_at
		FROM exam_participants ep
		JOIN participants p ON p.id = ep.participant_id
		WHERE ep.exam_id = $1
		ORDER BY p.id
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *repo) CountRosterAssignments(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM exam_participants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count roster: %w", err)
	}
	return n, nil
}
