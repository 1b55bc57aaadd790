package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"clickerexam/internal/domain"

	"github.com/go-chi/chi/v5"
)

type mockReportService struct {
	reportFn      func(ctx context.Context, examID int64) (*Report, error)
	leaderboardFn func(ctx context.Context, examID int64) (*Leaderboard, error)
	attendanceFn  func(ctx context.Context, examID int64) (*Attendance, error)
	dashboardFn   func(ctx context.Context) (*Dashboard, error)
}

func (m *mockReportService) ExamReport(ctx context.Context, examID int64) (*Report, error) {
	if m.reportFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.reportFn(ctx, examID)
}

func (m *mockReportService) Leaderboard(ctx context.Context, examID int64) (*Leaderboard, error) {
	if m.leaderboardFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.leaderboardFn(ctx, examID)
}

func (m *mockReportService) Attendance(ctx context.Context, examID int64) (*Attendance, error) {
	if m.attendanceFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.attendanceFn(ctx, examID)
}

func (m *mockReportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	if m.dashboardFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.dashboardFn(ctx)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestReportHandlerReturnsReport(t *testing.T) {
	h := NewHandler(&mockReportService{
		reportFn: func(ctx context.Context, examID int64) (*Report, error) {
			return &Report{ExamID: examID, QuestionAnalysis: []QuestionStat{}, ParticipantResults: []ParticipantResult{}}, nil
		},
	})
	req := withChiParam(httptest.NewRequest(http.MethodGet, "/api/v1/exams/6/report", nil), "id", "6")
	w := httptest.NewRecorder()

	h.Report(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data["exam_id"] != float64(6) || env.Data["total_participants"] != float64(0) {
		t.Fatalf("unexpected data %v", env.Data)
	}
}

func TestReportHandlerStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: domain.ErrExamNotFound, want: http.StatusNotFound},
		{err: fmt.Errorf("load: %w", domain.ErrParticipantNotFound), want: http.StatusNotFound},
		{err: errors.New("db down"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		h := NewHandler(&mockReportService{
			leaderboardFn: func(ctx context.Context, examID int64) (*Leaderboard, error) { return nil, tc.err },
		})
		req := withChiParam(httptest.NewRequest(http.MethodGet, "/api/v1/exams/6/leaderboard", nil), "id", "6")
		w := httptest.NewRecorder()

		h.Leaderboard(w, req)

		if w.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, w.Code)
		}
	}
}

func TestAttendanceHandlerInvalidID(t *testing.T) {
	h := NewHandler(&mockReportService{})
	req := withChiParam(httptest.NewRequest(http.MethodGet, "/api/v1/exams/0/attendance", nil), "id", "0")
	w := httptest.NewRecorder()

	h.Attendance(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestDashboardHandler(t *testing.T) {
	h := NewHandler(&mockReportService{
		dashboardFn: func(ctx context.Context) (*Dashboard, error) {
			return &Dashboard{Stats: DashboardStats{TotalExams: 2}, RecentExams: []RecentExam{}}, nil
		},
	})
	w := httptest.NewRecorder()

	h.Dashboard(w, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
