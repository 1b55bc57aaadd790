package participant

import (
	"context"
	"testing"

	"clickerexam/internal/domain"
	"clickerexam/internal/store/memory"
)

func setupExam(t *testing.T) (*memory.Store, *domain.Exam) {
	t.Helper()
	st := memory.New()
	e := &domain.Exam{Title: "Live quiz", DurationMinutes: 15, Status: domain.ExamFrozen}
	if err := st.CreateExam(context.Background(), e); err != nil {
		t.Fatalf("create exam: %v", err)
	}
	return st, e
}

func rosterIDs(t *testing.T, st *memory.Store, examID int64) []int64 {
	t.Helper()
	roster, err := st.ListRoster(context.Background(), examID)
	if err != nil {
		t.Fatalf("list roster: %v", err)
	}
	ids := make([]int64, 0, len(roster))
	for _, p := range roster {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestResolveByExplicitID(t *testing.T) {
	ctx := context.Background()
	st, e := setupExam(t)
	p := &domain.Participant{Name: "Ana", ClickerID: "12"}
	_ = st.CreateParticipant(ctx, p)

	r := NewResolver(st, e.ID)
	got, err := r.Resolve(ctx, Identity{ParticipantID: &p.ID, ClickerID: "999"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.ID != p.ID {
		t.Fatalf("expected participant %d, got %+v", p.ID, got)
	}
	if ids := rosterIDs(t, st, e.ID); len(ids) != 1 || ids[0] != p.ID {
		t.Fatalf("expected participant on roster, got %v", ids)
	}
	if n, _ := st.CountParticipants(ctx); n != 1 {
		t.Fatalf("explicit id must not provision, have %d participants", n)
	}
}

func TestResolveUnknownIDFallsBackToTag(t *testing.T) {
	ctx := context.Background()
	st, e := setupExam(t)
	p := &domain.Participant{Name: "Ben", ClickerID: "21"}
	_ = st.CreateParticipant(ctx, p)

	missing := int64(9999)
	got, err := NewResolver(st, e.ID).Resolve(ctx, Identity{ParticipantID: &missing, ClickerID: "21"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.ID != p.ID {
		t.Fatalf("expected tag match, got %+v", got)
	}
}

func TestResolveDeviceFallback(t *testing.T) {
	ctx := context.Background()
	st, e := setupExam(t)
	p := &domain.Participant{Name: "Cai", ClickerID: "7"}
	_ = st.CreateParticipant(ctx, p)

	r := NewResolver(st, e.ID)
	got, err := r.Resolve(ctx, Identity{ClickerID: "d7_1699999999"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.ID != p.ID {
		t.Fatalf("expected device tag to resolve to clicker 7, got %+v", got)
	}
	if r.Provisioned() != 0 {
		t.Fatalf("device fallback must not provision")
	}
	if n, _ := st.CountParticipants(ctx); n != 1 {
		t.Fatalf("expected no new participants, have %d", n)
	}
}

func TestResolveProvisionsUnknownTagOnce(t *testing.T) {
	ctx := context.Background()
	st, e := setupExam(t)

	r := NewResolver(st, e.ID)
	first, err := r.Resolve(ctx, Identity{ClickerID: "X-42"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first == nil || first.Name != "Clicker X-42" || first.Email != "clicker-x-42@live.local" {
		t.Fatalf("unexpected provisioned participant %+v", first)
	}

	again, err := NewResolver(st, e.ID).Resolve(ctx, Identity{ClickerID: "X-42"})
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected the provisioned participant to be reused")
	}
	if n, _ := st.CountParticipants(ctx); n != 1 {
		t.Fatalf("expected one participant, have %d", n)
	}
	if ids := rosterIDs(t, st, e.ID); len(ids) != 1 {
		t.Fatalf("expected provisioned participant on roster, got %v", ids)
	}
}

func TestResolveProvisionRetriesWithoutEmail(t *testing.T) {
	ctx := context.Background()
	st, e := setupExam(t)
	taken := &domain.Participant{Name: "Squatter", ClickerID: "other", Email: PlaceholderEmail("x 1")}
	_ = st.CreateParticipant(ctx, taken)

	got, err := NewResolver(st, e.ID).Resolve(ctx, Identity{ClickerID: "x 1"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID == taken.ID || got.Email != "" || got.ClickerID != "x 1" {
		t.Fatalf("expected a fresh participant without email, got %+v", got)
	}
}

func TestResolveEmptyIdentity(t *testing.T) {
	st, e := setupExam(t)
	got, err := NewResolver(st, e.ID).Resolve(context.Background(), Identity{ClickerID: "  "})
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", got, err)
	}
}

func TestPlaceholderEmail(t *testing.T) {
	tests := map[string]string{
		"7":           "clicker-7@live.local",
		"D7_16999":    "clicker-d7-16999@live.local",
		"__":          "clicker-device@live.local",
		"Room 3/Seat": "clicker-room-3-seat@live.local",
	}
	for tag, want := range tests {
		if got := PlaceholderEmail(tag); got != want {
			t.Fatalf("PlaceholderEmail(%q)=%s want %s", tag, got, want)
		}
	}
}
