package participant

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"clickerexam/internal/app/apiresp"
	"clickerexam/internal/domain"

	"github.com/go-chi/chi/v5"
)

const maxImportBytes = 5 << 20

type Handler struct {
	svc participantService
}

type participantService interface {
	Create(ctx context.Context, in CreateInput) (*domain.Participant, error)
	AssignClicker(ctx context.Context, participantID int64, clickerID string) (*domain.Participant, error)
	AssignToExam(ctx context.Context, examID int64, participantIDs []int64) ([]domain.Participant, error)
	ImportRoster(ctx context.Context, examID int64, rows []RosterRow) (*ImportReport, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type assignClickerRequest struct {
	ClickerID string `json:"clicker_id"`
}

type assignToExamRequest struct {
	ParticipantIDs []int64 `json:"participant_ids"`
}

type importRosterRequest struct {
	Rows []RosterRow `json:"rows"`
}

func NewHandler(svc participantService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	item, err := h.svc.Create(r.Context(), req)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: item})
}

func (h *Handler) AssignClicker(w http.ResponseWriter, r *http.Request) {
	participantID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || participantID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid participant id"})
		return
	}
	var req assignClickerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	item, err := h.svc.AssignClicker(r.Context(), participantID, req.ClickerID)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) AssignToExam(w http.ResponseWriter, r *http.Request) {
	examID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || examID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid exam id"})
		return
	}
	var req assignToExamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	items, err := h.svc.AssignToExam(r.Context(), examID, req.ParticipantIDs)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

// ImportRoster accepts either a JSON body {"rows": [...]} or a CSV upload
// (text/csv body or multipart field "file").
func (h *Handler) ImportRoster(w http.ResponseWriter, r *http.Request) {
	examID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || examID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid exam id"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	rows, err := decodeRosterRows(r)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
		return
	}
	report, err := h.svc.ImportRoster(r.Context(), examID, rows)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: report})
}

func decodeRosterRows(r *http.Request) ([]RosterRow, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "text/csv":
		return ParseRosterCSV(r.Body)
	case strings.HasPrefix(mediaType, "multipart/"):
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("file is required")
		}
		defer file.Close()
		return ParseRosterCSV(file)
	}
	var req importRosterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	return req.Rows, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
