package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clickerexam/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type mockSyncService struct {
	syncFn func(ctx context.Context, examID int64, req SyncRequest) (*SyncResult, error)
}

func (m *mockSyncService) Sync(ctx context.Context, examID int64, req SyncRequest) (*SyncResult, error) {
	if m.syncFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.syncFn(ctx, examID, req)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeData(t *testing.T, body *bytes.Buffer) map[string]any {
	t.Helper()
	var env struct {
		OK   bool           `json:"ok"`
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env.Data
}

func TestSyncHandlerReturnsCounts(t *testing.T) {
	h := NewHandler(&mockSyncService{
		syncFn: func(ctx context.Context, examID int64, req SyncRequest) (*SyncResult, error) {
			if examID != 3 || len(req.Responses) != 1 || len(req.Attendance) != 1 {
				t.Fatalf("unexpected call exam=%d req=%+v", examID, req)
			}
			if req.Responses[0].ClickerID != "d7_1" || string(req.Responses[0].SelectedAnswer) != `"B"` {
				t.Fatalf("unexpected response %+v", req.Responses[0])
			}
			return &SyncResult{Synced: 1, Received: 1, AttemptsUpdated: 1, ParticipantNames: map[string]string{"d7_1": "Seven"}}, nil
		},
	})
	payload := `{"responses":[{"clicker_id":"d7_1","question_id":4,"selected_answer":"B","answered_at":"2026-03-14T09:31:00Z"}],"attendance":[9]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams/3/sync_live_results", strings.NewReader(payload))
	req = withChiParam(req, "id", "3")
	w := httptest.NewRecorder()

	h.Sync(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w.Body)
	if data["synced"] != float64(1) || data["skipped_no_participant"] != float64(0) {
		t.Fatalf("unexpected data %v", data)
	}
}

func TestSyncHandlerDraftExamIsPreconditionFailure(t *testing.T) {
	h := NewHandler(&mockSyncService{
		syncFn: func(ctx context.Context, examID int64, req SyncRequest) (*SyncResult, error) {
			return nil, &domain.PreconditionError{ExamID: examID, Err: domain.ErrExamNotFrozen}
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams/3/sync_live_results", strings.NewReader(`{"responses":[]}`))
	req = withChiParam(req, "id", "3")
	w := httptest.NewRecorder()

	h.Sync(w, req)

	if w.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", w.Code)
	}
}

func TestSyncHandlerRejectsBadBody(t *testing.T) {
	h := NewHandler(&mockSyncService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams/3/sync_live_results", strings.NewReader(`{"responses":`))
	req = withChiParam(req, "id", "3")
	w := httptest.NewRecorder()

	h.Sync(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

type wsMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	var msg wsMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}

func TestStreamRepliesPerBatch(t *testing.T) {
	calls := 0
	h := NewHandler(&mockSyncService{
		syncFn: func(ctx context.Context, examID int64, req SyncRequest) (*SyncResult, error) {
			calls++
			if calls == 2 {
				return nil, &domain.PreconditionError{ExamID: examID, Err: domain.ErrExamNotFrozen}
			}
			return &SyncResult{Received: len(req.Responses), Synced: len(req.Responses)}, nil
		},
	})
	r := chi.NewRouter()
	r.Get("/exams/{id}/live", h.Stream)
	server := httptest.NewServer(r)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/exams/8/live"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	batch := map[string]any{
		"type": "sync",
		"payload": map[string]any{
			"responses": []map[string]any{{"clicker_id": "1", "question_id": 2, "selected_answer": 0}},
		},
	}
	if err := conn.WriteJSON(batch); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != "synced" || msg.Payload["synced"] != float64(1) {
		t.Fatalf("unexpected reply %+v", msg)
	}

	if err := conn.WriteJSON(batch); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg = readMessage(t, conn)
	if msg.Type != "error" || !strings.Contains(msg.Payload["message"].(string), "not frozen") {
		t.Fatalf("expected error reply, got %+v", msg)
	}

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg = readMessage(t, conn); msg.Type != "error" {
		t.Fatalf("expected unsupported type error, got %+v", msg)
	}
}

func TestStreamRejectsInvalidExamID(t *testing.T) {
	h := NewHandler(&mockSyncService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exams/x/live", nil)
	req = withChiParam(req, "id", "x")
	w := httptest.NewRecorder()

	h.Stream(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
