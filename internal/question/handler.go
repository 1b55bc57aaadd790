package question

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"clickerexam/internal/app/apiresp"
	"clickerexam/internal/domain"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc questionService
}

type questionService interface {
	CreateQuestion(ctx context.Context, in CreateQuestionInput) (*domain.Question, error)
	GetQuestion(ctx context.Context, questionID int64) (*domain.Question, error)
	UpdateQuestion(ctx context.Context, in UpdateQuestionInput) (*domain.Question, error)
	AvailableQuestions(ctx context.Context, f AvailableFilter) ([]domain.Question, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func NewHandler(svc questionService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestionInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	item, err := h.svc.CreateQuestion(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}

	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: item})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	questionID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || questionID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid question id"})
		return
	}

	item, err := h.svc.GetQuestion(r.Context(), questionID)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	questionID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || questionID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid question id"})
		return
	}
	var req CreateQuestionInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	item, err := h.svc.UpdateQuestion(r.Context(), UpdateQuestionInput{ID: questionID, CreateQuestionInput: req})
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var examID int64
	if raw := strings.TrimSpace(q.Get("exam_id")); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "exam_id must be positive"})
			return
		}
		examID = v
	}

	items, err := h.svc.AvailableQuestions(r.Context(), AvailableFilter{
		ExamID:     examID,
		Difficulty: q.Get("difficulty"),
		Type:       q.Get("type"),
		Search:     q.Get("search"),
	})
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
