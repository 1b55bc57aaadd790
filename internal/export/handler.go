package export

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"clickerexam/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc exportService
}

type exportService interface {
	Export(ctx context.Context, examID int64, format Format, layout Layout) (*File, error)
}

func NewHandler(svc exportService) *Handler {
	return &Handler{svc: svc}
}

// Export serves GET /exams/{id}/export?format=xlsx|csv&layout=default|individual|by_question.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	examID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || examID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid exam id")
		return
	}
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	layout, err := ParseLayout(r.URL.Query().Get("layout"))
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}

	file, err := h.svc.Export(r.Context(), examID, format, layout)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}
