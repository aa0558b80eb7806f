package quota

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/terms"
)

// CategoryStarchy is the default budgeted category.
const CategoryStarchy = "starchy"

// Request is the content about to be generated or committed.
type Request struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Ingredients []string `json:"ingredients,omitempty" yaml:"ingredients,omitempty"`
	Categories  []string `json:"categories,omitempty" yaml:"categories,omitempty"` // explicit tags, e.g. "starchy"
}

// RequestFromCandidate builds a Request from a generated candidate.
func RequestFromCandidate(c model.Candidate) Request {
	r := Request{Name: c.Name, Description: c.Description}
	for _, ing := range c.Ingredients {
		r.Ingredients = append(r.Ingredients, ing.Name)
	}
	return r
}

func (r Request) texts() []string {
	out := make([]string, 0, len(r.Ingredients)+2)
	out = append(out, r.Ingredients...)
	if r.Name != "" {
		out = append(out, r.Name)
	}
	if r.Description != "" {
		out = append(out, r.Description)
	}
	return out
}

// Item is one piece of content already committed to the user's history.
type Item struct {
	Request     `yaml:",inline"`
	CommittedAt time.Time `json:"committed_at" yaml:"committed_at"`
}

// Budget is a slot limit for one content category within a period.
// Zero PeriodStart disables period filtering.
type Budget struct {
	Category    string       `json:"category"`
	Terms       []terms.Term `json:"terms"`
	MaxSlots    int          `json:"max_slots"`
	PeriodStart time.Time    `json:"period_start"`
}

// StarchBudget builds the starchy budget from the policy's starch terms and
// the profile's starch_slots.
func StarchBudget(cfg *policy.Config, g model.ResolvedGuardrails, periodStart time.Time) Budget {
	if cfg == nil {
		cfg = policy.DefaultConfig()
	}
	ts := make([]terms.Term, len(cfg.StarchTerms))
	copy(ts, cfg.StarchTerms)
	return Budget{
		Category:    CategoryStarchy,
		Terms:       ts,
		MaxSlots:    g.StarchSlots,
		PeriodStart: periodStart,
	}
}

// DayStart returns local midnight of now in loc. Nil loc uses UTC.
func DayStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
}

// Resolution records how a blocked request was unblocked.
type Resolution string

const (
	ResolutionNone     Resolution = ""
	ResolutionPending  Resolution = "pending"
	ResolutionOverride Resolution = "override"
	ResolutionReroute  Resolution = "reroute"
)

// Result is the three-way quota outcome.
//
//	Allowed                          → proceed
//	!Allowed && RequiresDecision     → present override / reroute to the user
//	Allowed && Resolution == reroute → proceed with a non-budgeted alternative
type Result struct {
	Allowed          bool             `json:"allowed"`
	RequiresDecision bool             `json:"requires_decision"`
	MatchedTerms     []string         `json:"matched_terms,omitempty"`
	Resolution       Resolution       `json:"resolution,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	State            model.QuotaState `json:"state"`
}

// Check compares the request against the budget. slotsUsed is recomputed
// from history on every call: items committed at or after PeriodStart that
// match the category. An item without CommittedAt counts as in the period.
func Check(req Request, history []Item, b Budget) Result {
	m := terms.New(b.Terms)
	maxSlots := b.MaxSlots
	if maxSlots < 0 {
		maxSlots = 0
	}

	state := model.QuotaState{PeriodStart: b.PeriodStart, SlotsMax: maxSlots, ContentSeen: []string{}}
	seen := make(map[string]bool)
	for _, it := range history {
		if !b.PeriodStart.IsZero() && !it.CommittedAt.IsZero() && it.CommittedAt.Before(b.PeriodStart) {
			continue
		}
		for _, c := range it.Categories {
			if c = normalize(c); c != "" {
				seen[c] = true
			}
		}
		if inCategory(it.Request, b.Category, m) {
			state.SlotsUsed++
			seen[normalize(b.Category)] = true
		}
	}
	for c := range seen {
		state.ContentSeen = append(state.ContentSeen, c)
	}
	sort.Strings(state.ContentSeen)

	res := Result{State: state}
	if state.SlotsUsed < maxSlots {
		res.Allowed = true
		return res
	}

	matched := m.MatchedTerms(req.texts())
	if len(matched) == 0 && hasCategory(req.Categories, b.Category) {
		matched = []string{normalize(b.Category)}
	}
	if len(matched) == 0 {
		res.Allowed = true
		return res
	}

	res.RequiresDecision = true
	res.MatchedTerms = matched
	res.Reason = fmt.Sprintf("%s budget exhausted: %d of %d slots used", b.Category, state.SlotsUsed, maxSlots)
	return res
}

func inCategory(r Request, category string, m *terms.Matcher) bool {
	if hasCategory(r.Categories, category) {
		return true
	}
	return m.Any(r.texts())
}

func hasCategory(list []string, category string) bool {
	if category == "" {
		return false
	}
	for _, c := range list {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
