package apiresp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"clickerexam/internal/domain"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "precondition", err: &domain.PreconditionError{ExamID: 1, Err: domain.ErrExamNotFrozen}, want: http.StatusPreconditionFailed},
		{name: "frozen", err: fmt.Errorf("update exam: %w", domain.ErrExamFrozen), want: http.StatusConflict},
		{name: "duplicate clicker", err: domain.ErrDuplicateClicker, want: http.StatusConflict},
		{name: "missing exam", err: fmt.Errorf("get exam: %w", domain.ErrExamNotFound), want: http.StatusNotFound},
		{name: "missing participant", err: domain.ErrParticipantNotFound, want: http.StatusNotFound},
		{name: "invalid input", err: fmt.Errorf("%w: title required", domain.ErrInvalidInput), want: http.StatusBadRequest},
		{name: "unknown", err: errors.New("connection reset"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, msg := StatusFromError(tc.err)
			if got != tc.want {
				t.Fatalf("status %d want %d", got, tc.want)
			}
			if got == http.StatusInternalServerError && msg != "internal error" {
				t.Fatalf("internal errors must not leak, got %q", msg)
			}
		})
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteServiceError(w, r, domain.ErrExamNotFound)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var env Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.OK || env.Error == nil || env.Error.Code != "not_found" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}
