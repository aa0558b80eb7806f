package decision

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func starchy() Pending {
	return Pending{Category: "starchy", MatchedTerms: []string{"rice"}, Reason: "starch budget exhausted", SlotsUsed: 1, SlotsMax: 1}
}

func TestRequestCreatesFile(t *testing.T) {
	s := newTestStore(t)
	if err := s.Request("u1.2026-03-14.starchy", starchy()); err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	d, err := s.read("u1.2026-03-14.starchy")
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if d.Status != StatusPending {
		t.Errorf("expected status=pending, got %s", d.Status)
	}
	if d.Category != "starchy" {
		t.Errorf("expected category=starchy, got %s", d.Category)
	}
	if d.Round != 1 {
		t.Errorf("expected round=1, got %d", d.Round)
	}
	if d.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestRequestIdempotentWhilePending(t *testing.T) {
	s := newTestStore(t)
	s.Request("key1", starchy())
	second := starchy()
	second.Reason = "other"
	s.Request("key1", second)

	d, _ := s.read("key1")
	if d.Reason != "starch budget exhausted" {
		t.Errorf("expected original reason, got %s", d.Reason)
	}
}

func TestResolveOverride(t *testing.T) {
	s := newTestStore(t)
	s.Request("key1", starchy())

	if err := s.Resolve("key1", StatusOverride); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	status, _ := s.Check("key1")
	if status != StatusOverride {
		t.Errorf("expected override, got %s", status)
	}
	d, _ := s.Get("key1")
	if d.ResolvedAt == nil {
		t.Error("expected resolved_at to be set")
	}
}

func TestResolveRequiresPending(t *testing.T) {
	s := newTestStore(t)
	if err := s.Resolve("missing", StatusOverride); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	s.Request("key1", starchy())
	s.Resolve("key1", StatusReroute)
	if err := s.Resolve("key1", StatusOverride); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending, got %v", err)
	}
	if err := s.Resolve("key1", StatusPending); err == nil {
		t.Error("expected error for pending as a choice")
	}
}

func TestConsumeOnce(t *testing.T) {
	s := newTestStore(t)
	s.Request("key1", starchy())

	if err := s.Consume("key1"); err == nil {
		t.Error("expected error consuming a pending decision")
	}

	s.Resolve("key1", StatusOverride)
	if err := s.Consume("key1"); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if err := s.Consume("key1"); err == nil {
		t.Error("expected error on second consume")
	}

	d, _ := s.Get("key1")
	if d.Status != StatusConsumed || d.Choice != StatusOverride {
		t.Errorf("expected consumed override, got %s/%s", d.Status, d.Choice)
	}
}

func TestRequestAfterConsumeStartsNewRound(t *testing.T) {
	s := newTestStore(t)
	s.Request("key1", starchy())
	s.Resolve("key1", StatusOverride)
	s.Consume("key1")

	if err := s.Request("key1", starchy()); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	d, _ := s.Get("key1")
	if d.Status != StatusPending {
		t.Errorf("expected pending again, got %s", d.Status)
	}
	if d.Round != 2 {
		t.Errorf("expected round=2, got %d", d.Round)
	}
	if d.Choice != "" {
		t.Errorf("expected choice cleared, got %s", d.Choice)
	}
}

func TestCheckNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Check("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInvalidKeys(t *testing.T) {
	s := newTestStore(t)
	for _, key := range []string{"", "../etc/passwd", "a/b", "a b", "..hidden"} {
		if err := s.Request(key, starchy()); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey for key %q, got %v", key, err)
		}
	}
	if err := ValidateKey("user-1:2026-03-14:starchy"); err != nil {
		t.Errorf("expected colon key valid, got %v", err)
	}
}

func TestListAndPending(t *testing.T) {
	s := newTestStore(t)
	s.Request("b", starchy())
	s.Request("a", starchy())
	s.Resolve("a", StatusReroute)

	all, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 || all[0].Key != "a" {
		t.Errorf("expected 2 decisions sorted by key, got %+v", all)
	}

	pending, _ := s.ListPending()
	if len(pending) != 1 || pending[0].Key != "b" {
		t.Errorf("expected only b pending, got %+v", pending)
	}
}

func TestListSkipsCorruptFiles(t *testing.T) {
	s := newTestStore(t)
	s.Request("good", starchy())
	if err := os.WriteFile(filepath.Join(s.dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	all, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected corrupt file skipped, got %d", len(all))
	}
}

func TestCleanup(t *testing.T) {
	s := newTestStore(t)
	s.Request("a", starchy())
	s.Request("b", starchy())
	if err := s.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	all, _ := s.List()
	if len(all) != 0 {
		t.Errorf("expected empty store, got %d", len(all))
	}
}

func TestParseChoice(t *testing.T) {
	tests := map[string]Status{"override": StatusOverride, "ALLOW": StatusOverride, " reroute ": StatusReroute, "deny": StatusReroute}
	for in, want := range tests {
		got, err := ParseChoice(in)
		if err != nil || got != want {
			t.Errorf("%q: expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseChoice("maybe"); err == nil {
		t.Error("expected error for unknown choice")
	}
}

func TestConcurrentRequests(t *testing.T) {
	s := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Request("shared", starchy())
		}()
	}
	wg.Wait()

	d, err := s.Get("shared")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if d.Round != 1 {
		t.Errorf("expected a single round, got %d", d.Round)
	}
}
