package report

import (
	"context"
	"net/http"
	"strconv"

	"clickerexam/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc reportService
}

type reportService interface {
	ExamReport(ctx context.Context, examID int64) (*Report, error)
	Leaderboard(ctx context.Context, examID int64) (*Leaderboard, error)
	Attendance(ctx context.Context, examID int64) (*Attendance, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
}

func NewHandler(svc reportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	out, err := h.svc.ExamReport(r.Context(), examID)
	respond(w, r, out, err)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Leaderboard(r.Context(), examID)
	respond(w, r, out, err)
}

func (h *Handler) Attendance(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Attendance(r.Context(), examID)
	respond(w, r, out, err)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Dashboard(r.Context())
	respond(w, r, out, err)
}

func respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, data)
}

func examIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	examID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || examID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid exam id")
		return 0, false
	}
	return examID, true
}
