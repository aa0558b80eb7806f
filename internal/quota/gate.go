package quota

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/mealguard/internal/decision"
)

// DecisionStore persists the user's choice at a quota block.
// *decision.Store satisfies it.
type DecisionStore interface {
	Check(key string) (decision.Status, error)
	Request(key string, p decision.Pending) error
	Consume(key string) error
}

// Gate wraps Check with the caller-state decision loop.
type Gate struct {
	Store DecisionStore
}

// Check runs the raw quota check. On a block it consults the decision for key:
//
//	override → allowed once, decision consumed
//	reroute  → allowed with Resolution reroute, decision consumed
//	none, pending or consumed → blocked, pending decision registered under key
//
// A resolution unlocks exactly one request; the next one blocks again.
func (g *Gate) Check(key string, req Request, history []Item, b Budget) (Result, error) {
	res := Check(req, history, b)
	if !res.RequiresDecision {
		return res, nil
	}

	status, err := g.Store.Check(key)
	if err != nil && !errors.Is(err, decision.ErrNotFound) {
		return res, fmt.Errorf("check decision: %w", err)
	}

	switch status {
	case decision.StatusOverride, decision.StatusReroute:
		if err := g.Store.Consume(key); err != nil {
			return res, fmt.Errorf("consume decision: %w", err)
		}
		res.Allowed = true
		res.RequiresDecision = false
		res.Resolution = Resolution(status)
		return res, nil
	}

	p := decision.Pending{
		Category:     b.Category,
		MatchedTerms: res.MatchedTerms,
		Reason:       res.Reason,
		SlotsUsed:    res.State.SlotsUsed,
		SlotsMax:     res.State.SlotsMax,
	}
	if err := g.Store.Request(key, p); err != nil {
		return res, fmt.Errorf("register decision: %w", err)
	}
	res.Resolution = ResolutionPending
	return res, nil
}

// Key builds the conventional decision key for a user, period and category.
func Key(userID string, periodStart time.Time, category string) string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, userID)
	if id == "" {
		id = "anonymous"
	}
	return fmt.Sprintf("%s.%s.%s", id, periodStart.Format("2006-01-02"), category)
}
