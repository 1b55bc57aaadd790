package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"clickerexam/internal/cache"
	"clickerexam/internal/store/memory"

	"github.com/tidwall/gjson"
)

type apiClient struct {
	t *testing.T
	h http.Handler
}

func (c apiClient) do(method, path, body string) (int, []byte) {
	c.t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, req)
	return w.Code, w.Body.Bytes()
}

func (c apiClient) mustID(method, path, body string) int64 {
	c.t.Helper()
	code, out := c.do(method, path, body)
	if code != http.StatusCreated {
		c.t.Fatalf("%s %s: status %d body %s", method, path, code, out)
	}
	id := gjson.GetBytes(out, "data.id").Int()
	if id <= 0 {
		c.t.Fatalf("%s %s: missing id in %s", method, path, out)
	}
	return id
}

func newTestRouter(t *testing.T, cfg Config) apiClient {
	st := memory.New()
	snapshots := cache.NewMemory(cache.NewStoreLoader(st), time.Minute)
	return apiClient{t: t, h: NewRouter(cfg, Backend{Store: st, Snapshots: snapshots})}
}

func TestRouterFreezeSyncReportFlow(t *testing.T) {
	api := newTestRouter(t, defaultConfig())

	qID := api.mustID(http.MethodPost, "/api/v1/questions",
		`{"text":"2+2?","type":"mcq","options":["3","4"],"correct_answer":1}`)
	examID := api.mustID(http.MethodPost, "/api/v1/exams", `{"title":"Quiz","duration":10}`)
	examPath := "/api/v1/exams/" + strconv.FormatInt(examID, 10)

	if code, out := api.do(http.MethodPost, examPath+"/questions",
		`{"question_id":`+strconv.FormatInt(qID, 10)+`,"order":1}`); code >= 300 {
		t.Fatalf("add question: %d %s", code, out)
	}

	syncBody := `{"responses":[{"clicker_id":"7","question_id":` + strconv.FormatInt(qID, 10) + `,"selected_answer":1}]}`
	if code, _ := api.do(http.MethodPost, examPath+"/sync_live_results", syncBody); code != http.StatusPreconditionFailed {
		t.Fatalf("sync before freeze: expected 412, got %d", code)
	}

	if code, out := api.do(http.MethodPost, examPath+"/freeze", ""); code != http.StatusOK {
		t.Fatalf("freeze: %d %s", code, out)
	}
	api.mustID(http.MethodPost, "/api/v1/participants", `{"name":"Ana","clicker_id":"7"}`)

	code, out := api.do(http.MethodPost, examPath+"/sync_live_results", syncBody)
	if code != http.StatusOK {
		t.Fatalf("sync: %d %s", code, out)
	}
	if got := gjson.GetBytes(out, "data.synced").Int(); got != 1 {
		t.Fatalf("expected 1 synced, got %d (%s)", got, out)
	}

	code, out = api.do(http.MethodGet, examPath+"/report", "")
	if code != http.StatusOK {
		t.Fatalf("report: %d %s", code, out)
	}
	first := gjson.GetBytes(out, "data.participant_results.0")
	if first.Get("participant_name").String() != "Ana" || first.Get("correct_answers").Int() != 1 {
		t.Fatalf("unexpected report row %s", first.Raw)
	}

	code, out = api.do(http.MethodGet, examPath+"/export?format=csv", "")
	if code != http.StatusOK || !bytes.Contains(out, []byte("Ana")) {
		t.Fatalf("export: %d %s", code, out)
	}

	_, out = api.do(http.MethodGet, "/metrics", "")
	if !strings.Contains(string(out), `examd_ingest_items_total{outcome="synced"} 1`) {
		t.Fatalf("ingest counter missing:\n%s", out)
	}
}

func TestRouterRateLimitsSync(t *testing.T) {
	cfg := defaultConfig()
	cfg.SyncRateLimitPerMinute = 1
	api := newTestRouter(t, cfg)

	api.do(http.MethodPost, "/api/v1/exams/1/sync_live_results", `{}`)
	if code, _ := api.do(http.MethodPost, "/api/v1/exams/1/sync_live_results", `{}`); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code, _ := api.do(http.MethodGet, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("healthz should not be limited, got %d", code)
	}
}
