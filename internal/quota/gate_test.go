package quota

import (
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/mealguard/internal/decision"
)

func newGate(t *testing.T) (*Gate, *decision.Store) {
	t.Helper()
	s, err := decision.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return &Gate{Store: s}, s
}

func exhausted() []Item {
	return []Item{item("Toast", day.Add(7*time.Hour), "bread")}
}

func TestGateUnderBudgetSkipsStore(t *testing.T) {
	g := &Gate{Store: failingStore{}}
	res, err := g.Check("k", Request{Name: "Rice"}, nil, starch(1))
	if err != nil || !res.Allowed {
		t.Errorf("expected allowed without touching the store, got %+v %v", res, err)
	}
}

func TestGateRegistersPending(t *testing.T) {
	g, s := newGate(t)
	res, err := g.Check("u1.starchy", Request{Name: "Rice"}, exhausted(), starch(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed || res.Resolution != ResolutionPending {
		t.Errorf("expected pending block, got %+v", res)
	}

	d, err := s.Get("u1.starchy")
	if err != nil {
		t.Fatalf("expected pending decision stored: %v", err)
	}
	if d.Status != decision.StatusPending || d.Category != CategoryStarchy {
		t.Errorf("unexpected decision %+v", d)
	}
	if d.SlotsUsed != 1 || d.SlotsMax != 1 {
		t.Errorf("expected slots 1/1 recorded, got %d/%d", d.SlotsUsed, d.SlotsMax)
	}
}

func TestGateStillPendingBlocks(t *testing.T) {
	g, _ := newGate(t)
	g.Check("k", Request{Name: "Rice"}, exhausted(), starch(1))
	res, _ := g.Check("k", Request{Name: "Rice"}, exhausted(), starch(1))
	if res.Allowed {
		t.Error("expected block while decision is pending")
	}
}

func TestGateOverrideOnceThenPending(t *testing.T) {
	g, s := newGate(t)
	req := Request{Name: "Rice"}

	g.Check("k", req, exhausted(), starch(1))
	if err := s.Resolve("k", decision.StatusOverride); err != nil {
		t.Fatal(err)
	}

	res, err := g.Check("k", req, exhausted(), starch(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed || res.Resolution != ResolutionOverride {
		t.Fatalf("expected override to allow once, got %+v", res)
	}

	// The override is spent; an independent request returns to pending.
	res, _ = g.Check("k", req, exhausted(), starch(1))
	if res.Allowed || res.Resolution != ResolutionPending {
		t.Errorf("expected pending again after consumed override, got %+v", res)
	}
	d, _ := s.Get("k")
	if d.Status != decision.StatusPending || d.Round != 2 {
		t.Errorf("expected new pending round, got %s round %d", d.Status, d.Round)
	}
}

func TestGateReroute(t *testing.T) {
	g, s := newGate(t)
	g.Check("k", Request{Name: "Rice"}, exhausted(), starch(1))
	s.Resolve("k", decision.StatusReroute)

	res, err := g.Check("k", Request{Name: "Rice"}, exhausted(), starch(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed || res.Resolution != ResolutionReroute {
		t.Errorf("expected reroute resolution, got %+v", res)
	}
	if st, _ := s.Check("k"); st != decision.StatusConsumed {
		t.Errorf("expected reroute consumed, got %s", st)
	}
}

func TestGateStoreErrors(t *testing.T) {
	g := &Gate{Store: failingStore{}}
	if _, err := g.Check("k", Request{Name: "Rice"}, exhausted(), starch(1)); err == nil {
		t.Error("expected store error to surface")
	}

	g2, _ := newGate(t)
	if _, err := g2.Check("../escape", Request{Name: "Rice"}, exhausted(), starch(1)); err == nil {
		t.Error("expected invalid key error")
	}
}

func TestKey(t *testing.T) {
	got := Key("user@example.com", day, CategoryStarchy)
	if got != "user_example_com.2026-03-14.starchy" {
		t.Errorf("unexpected key %q", got)
	}
	if err := decision.ValidateKey(got); err != nil {
		t.Errorf("expected valid key, got %v", err)
	}
	if Key("", day, "x") != "anonymous.2026-03-14.x" {
		t.Errorf("unexpected anonymous key %q", Key("", day, "x"))
	}
}

type failingStore struct{}

func (failingStore) Check(string) (decision.Status, error)  { return "", errors.New("disk on fire") }
func (failingStore) Request(string, decision.Pending) error { return errors.New("disk on fire") }
func (failingStore) Consume(string) error                   { return errors.New("disk on fire") }
