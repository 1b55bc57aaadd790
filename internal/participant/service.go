package participant

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"clickerexam/internal/domain"
	"clickerexam/internal/store"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type Service struct {
	store store.Store
}

type CreateInput struct {
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	ClickerID string            `json:"clicker_id"`
	Extra     domain.Attributes `json:"extra"`
}

func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Email, is.EmailFormat),
		validation.Field(&in.ClickerID, validation.Required, validation.Length(1, 64)),
	)
}

type RosterRow struct {
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	ClickerID string            `json:"clicker_id"`
	Extra     domain.Attributes `json:"extra"`
}

type ImportReport struct {
	TotalRows   int              `json:"total_rows"`
	CreatedRows int              `json:"created_rows"`
	MatchedRows int              `json:"matched_rows"`
	FailedRows  int              `json:"failed_rows"`
	Errors      []ImportRowError `json:"errors"`
}

type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

func (in *CreateInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.ClickerID = strings.TrimSpace(in.ClickerID)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Participant, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	p := &domain.Participant{Name: in.Name, Email: in.Email, ClickerID: in.ClickerID, Extra: in.Extra.Clone()}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, participantID int64) (*domain.Participant, error) {
	if participantID <= 0 {
		return nil, domain.ErrInvalidInput
	}
	return s.store.GetParticipant(ctx, participantID)
}

// AssignClicker moves a participant to a new clicker tag. Tags stay unique.
func (s *Service) AssignClicker(ctx context.Context, participantID int64, clickerID string) (*domain.Participant, error) {
	clickerID = strings.TrimSpace(clickerID)
	if participantID <= 0 || clickerID == "" {
		return nil, domain.ErrInvalidInput
	}
	var out *domain.Participant
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		if err := tx.UpdateParticipantClicker(ctx, participantID, clickerID); err != nil {
			return err
		}
		p, err := tx.GetParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AssignToExam adds existing participants to the exam roster. Repeated
// assignments are no-ops.
func (s *Service) AssignToExam(ctx context.Context, examID int64, participantIDs []int64) ([]domain.Participant, error) {
	if examID <= 0 || len(participantIDs) == 0 {
		return nil, domain.ErrInvalidInput
	}
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		if _, err := tx.GetExam(ctx, examID); err != nil {
			return err
		}
		for _, id := range participantIDs {
			if id <= 0 {
				return domain.ErrInvalidInput
			}
			if err := tx.EnsureRoster(ctx, examID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.ListRoster(ctx, examID)
}

// ImportRoster gets or creates a participant per row, matching on email first
// and clicker tag second, and puts everyone on the exam roster. Bad rows are
// reported and skipped.
func (s *Service) ImportRoster(ctx context.Context, examID int64, rows []RosterRow) (*ImportReport, error) {
	if _, err := s.store.GetExam(ctx, examID); err != nil {
		return nil, err
	}

	report := &ImportReport{Errors: make([]ImportRowError, 0)}
	seenClicker := make(map[string]int, len(rows))
	for i, row := range rows {
		rowNo := i + 1
		report.TotalRows++

		in := CreateInput{Name: row.Name, Email: row.Email, ClickerID: row.ClickerID, Extra: row.Extra}
		in.normalize()
		if err := in.Validate(); err != nil {
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, Error: err.Error()})
			continue
		}
		if prev, dup := seenClicker[in.ClickerID]; dup {
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, Error: fmt.Sprintf("clicker_id %q already used on row %d", in.ClickerID, prev)})
			continue
		}
		seenClicker[in.ClickerID] = rowNo

		created, err := s.importRow(ctx, examID, in)
		if err != nil {
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, Error: err.Error()})
			continue
		}
		if created {
			report.CreatedRows++
		} else {
			report.MatchedRows++
		}
	}

	log.Printf("roster import exam=%d total=%d created=%d matched=%d failed=%d",
		examID, report.TotalRows, report.CreatedRows, report.MatchedRows, report.FailedRows)
	return report, nil
}

func (s *Service) importRow(ctx context.Context, examID int64, in CreateInput) (bool, error) {
	created := false
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		created = false
		p, err := findExisting(ctx, tx, in)
		if err != nil {
			return err
		}
		if p == nil {
			p = &domain.Participant{Name: in.Name, Email: in.Email, ClickerID: in.ClickerID, Extra: in.Extra.Clone()}
			if err := tx.CreateParticipant(ctx, p); err != nil {
				return err
			}
			created = true
		}
		return tx.EnsureRoster(ctx, examID, p.ID)
	})
	return created, err
}

func findExisting(ctx context.Context, repo store.Repository, in CreateInput) (*domain.Participant, error) {
	if in.Email != "" {
		p, err := repo.FindParticipantByEmail(ctx, in.Email)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrParticipantNotFound) {
			return nil, err
		}
	}
	p, err := repo.FindParticipantByClicker(ctx, in.ClickerID)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, domain.ErrParticipantNotFound) {
		return nil, nil
	}
	return nil, err
}

// ParseRosterCSV reads a roster file with a header row. name and clicker_id
// columns are required; email is optional and any other column becomes an
// extra attribute in header order.
func ParseRosterCSV(r io.Reader) ([]RosterRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrInvalidInput, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		n := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		header[i] = n
		if n != "" {
			index[n] = i
		}
	}
	for _, col := range []string{"name", "clicker_id"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing required column: %s", domain.ErrInvalidInput, col)
		}
	}

	rows := make([]RosterRow, 0)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv parse error: %v", domain.ErrInvalidInput, err)
		}
		if isRowEmpty(rec) {
			continue
		}
		row := RosterRow{
			Name:      cell(rec, index, "name"),
			Email:     cell(rec, index, "email"),
			ClickerID: cell(rec, index, "clicker_id"),
		}
		for i, col := range header {
			if col == "" || domain.IsReservedAttribute(col) || i >= len(rec) {
				continue
			}
			if v := strings.TrimSpace(rec[i]); v != "" {
				row.Extra.Set(col, v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cell(rec []string, index map[string]int, col string) string {
	i, ok := index[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func isRowEmpty(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
