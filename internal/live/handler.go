package live

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"clickerexam/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const maxSyncBytes = 2 << 20

type Handler struct {
	svc      syncService
	upgrader websocket.Upgrader
}

type syncService interface {
	Sync(ctx context.Context, examID int64, req SyncRequest) (*SyncResult, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func NewHandler(svc syncService) *Handler {
	return &Handler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSyncBytes)
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	res, err := h.svc.Sync(r.Context(), examID, req)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: res})
}

// Stream upgrades to a websocket on which every "sync" message is one batch.
// Replies are written from this goroutine only, in request order.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDParam(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxSyncBytes)

	for {
		var in inboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		out := h.handleMessage(r.Context(), examID, in)
		if err := conn.WriteJSON(out); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, examID int64, in inboundMessage) outboundMessage {
	if in.Type != "sync" {
		return outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
	var req SyncRequest
	if err := json.Unmarshal(in.Payload, &req); err != nil {
		return outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid sync payload"}}
	}
	res, err := h.svc.Sync(ctx, examID, req)
	if err != nil {
		status, msg := apiresp.StatusFromError(err)
		if status == http.StatusInternalServerError {
			log.Printf("ws sync exam=%d failed: %v", examID, err)
		}
		return outboundMessage{Type: "error", Payload: errorPayload{Message: msg}}
	}
	return outboundMessage{Type: "synced", Payload: res}
}

func examIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	examID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || examID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid exam id"})
		return 0, false
	}
	return examID, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
