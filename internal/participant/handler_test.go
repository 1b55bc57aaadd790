package participant

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clickerexam/internal/domain"

	"github.com/go-chi/chi/v5"
)

type mockParticipantService struct {
	createFn        func(ctx context.Context, in CreateInput) (*domain.Participant, error)
	assignClickerFn func(ctx context.Context, participantID int64, clickerID string) (*domain.Participant, error)
	assignToExamFn  func(ctx context.Context, examID int64, participantIDs []int64) ([]domain.Participant, error)
	importRosterFn  func(ctx context.Context, examID int64, rows []RosterRow) (*ImportReport, error)
}

func (m *mockParticipantService) Create(ctx context.Context, in CreateInput) (*domain.Participant, error) {
	if m.createFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createFn(ctx, in)
}

func (m *mockParticipantService) AssignClicker(ctx context.Context, participantID int64, clickerID string) (*domain.Participant, error) {
	if m.assignClickerFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.assignClickerFn(ctx, participantID, clickerID)
}

func (m *mockParticipantService) AssignToExam(ctx context.Context, examID int64, participantIDs []int64) ([]domain.Participant, error) {
	if m.assignToExamFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.assignToExamFn(ctx, examID, participantIDs)
}

func (m *mockParticipantService) ImportRoster(ctx context.Context, examID int64, rows []RosterRow) (*ImportReport, error) {
	if m.importRosterFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.importRosterFn(ctx, examID, rows)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateParticipantDuplicateClickerConflict(t *testing.T) {
	h := NewHandler(&mockParticipantService{
		createFn: func(ctx context.Context, in CreateInput) (*domain.Participant, error) {
			if in.Extra.Len() != 1 {
				t.Fatalf("expected extra attributes to decode, got %d", in.Extra.Len())
			}
			return nil, domain.ErrDuplicateClicker
		},
	})
	payload := []byte(`{"name":"Ana","clicker_id":"1","extra":{"class":"7A"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/participants", bytes.NewReader(payload))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestImportRosterAcceptsCSV(t *testing.T) {
	var got []RosterRow
	h := NewHandler(&mockParticipantService{
		importRosterFn: func(ctx context.Context, examID int64, rows []RosterRow) (*ImportReport, error) {
			if examID != 4 {
				t.Fatalf("unexpected exam id %d", examID)
			}
			got = rows
			return &ImportReport{TotalRows: len(rows), CreatedRows: len(rows), Errors: []ImportRowError{}}, nil
		},
	})
	body := strings.NewReader("name,clicker_id\nAna,1\nBen,2\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams/4/participants/import", body)
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")
	req = withChiParam(req, "id", "4")
	w := httptest.NewRecorder()

	h.ImportRoster(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(got) != 2 || got[1].ClickerID != "2" {
		t.Fatalf("unexpected rows %+v", got)
	}
}

func TestImportRosterRejectsBadCSV(t *testing.T) {
	h := NewHandler(&mockParticipantService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams/4/participants/import", strings.NewReader("email\nx@y.z\n"))
	req.Header.Set("Content-Type", "text/csv")
	req = withChiParam(req, "id", "4")
	w := httptest.NewRecorder()

	h.ImportRoster(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAssignClickerInvalidID(t *testing.T) {
	h := NewHandler(&mockParticipantService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/participants/x/clicker", strings.NewReader(`{"clicker_id":"3"}`))
	req = withChiParam(req, "id", "x")
	w := httptest.NewRecorder()

	h.AssignClicker(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
