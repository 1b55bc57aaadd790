package exam

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"clickerexam/internal/app/apiresp"
	"clickerexam/internal/domain"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc examService
}

type examService interface {
	CreateExam(ctx context.Context, in CreateExamInput) (*domain.Exam, error)
	GetExam(ctx context.Context, examID int64) (*domain.Exam, error)
	ListExams(ctx context.Context) ([]domain.Exam, error)
	UpdateExam(ctx context.Context, in UpdateExamInput) (*domain.Exam, error)
	ListExamQuestions(ctx context.Context, examID int64) ([]domain.ExamQuestionDetail, error)
	UpsertExamQuestion(ctx context.Context, in UpsertExamQuestionInput) (*domain.ExamQuestionDetail, error)
	DeleteExamQuestion(ctx context.Context, examID, questionID int64) error
	Freeze(ctx context.Context, examID int64) (*SnapshotView, error)
	Snapshot(ctx context.Context, examID int64) (*SnapshotView, error)
	CompleteExam(ctx context.Context, examID int64) (*domain.Exam, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type freezeResponse struct {
	ExamID   int64           `json:"exam_id"`
	Version  string          `json:"version"`
	Snapshot json.RawMessage `json:"snapshot"`
}

type snapshotResponse struct {
	ExamID   int64           `json:"exam_id"`
	Frozen   bool            `json:"frozen"`
	Version  string          `json:"version,omitempty"`
	Snapshot json.RawMessage `json:"snapshot"`
}

func NewHandler(svc examService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListExams(r.Context())
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateExamInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	item, err := h.svc.CreateExam(r.Context(), req)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: item})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	item, err := h.svc.GetExam(r.Context(), examID)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: item})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	var req CreateExamInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	item, err := h.svc.UpdateExam(r.Context(), UpdateExamInput{ExamID: examID, CreateExamInput: req})
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: item})
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListExamQuestions(r.Context(), examID)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) UpsertQuestion(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	var req UpsertExamQuestionInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	req.ExamID = examID
	item, err := h.svc.UpsertExamQuestion(r.Context(), req)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: item})
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	questionID, err := strconv.ParseInt(chi.URLParam(r, "questionID"), 10, 64)
	if err != nil || questionID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid question id"})
		return
	}
	if err := h.svc.DeleteExamQuestion(r.Context(), examID, questionID); err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: map[string]string{"status": "deleted"}})
}

func (h *Handler) Freeze(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Freeze(r.Context(), examID)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: freezeResponse{
		ExamID:   view.ExamID,
		Version:  view.Version,
		Snapshot: json.RawMessage(view.Data),
	}})
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Snapshot(r.Context(), examID)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: snapshotResponse{
		ExamID:   view.ExamID,
		Frozen:   view.Frozen,
		Version:  view.Version,
		Snapshot: json.RawMessage(view.Data),
	}})
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	item, err := h.svc.CompleteExam(r.Context(), examID)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: item})
}

func examIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	examID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || examID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid exam id"})
		return 0, false
	}
	return examID, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
