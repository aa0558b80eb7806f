package profilediff

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/profile"
)

// Change represents a scalar field change.
type Change struct {
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Comment string `json:"comment,omitempty"`
}

// TermChange represents a blocked or preferred term addition or removal.
type TermChange struct {
	Type string `json:"type"` // "added", "removed"
	List string `json:"list"` // "blocked", "preferred"
	Term string `json:"term"`
}

// DiffResult holds the comparison of two constraint sets.
type DiffResult struct {
	Old         string       `json:"old"`
	New         string       `json:"new"`
	Changes     []Change     `json:"changes"`
	TermChanges []TermChange `json:"term_changes"`
	HasChanges  bool         `json:"has_changes"`
}

// Diff compares two constraint sets and returns the differences.
func Diff(old, new model.ConstraintSet) *DiffResult {
	r := &DiffResult{Changes: []Change{}, TermChanges: []TermChange{}}

	if old.Condition != new.Condition {
		r.Changes = append(r.Changes, Change{
			Field: "condition",
			Old:   string(old.Condition),
			New:   string(new.Condition),
		})
	}

	// Carb ranges, in meal order
	for _, mt := range model.MealTypes {
		o, n := old.CarbRanges[mt], new.CarbRanges[mt]
		diffFloat(r, "carb_ranges."+string(mt)+".min", o.Min, n.Min, true)
		diffFloat(r, "carb_ranges."+string(mt)+".max", o.Max, n.Max, false)
	}

	// Glycemic ceiling
	if old.GlycemicCeilingEnabled != new.GlycemicCeilingEnabled {
		comment := "looser"
		if new.GlycemicCeilingEnabled {
			comment = "stricter"
		}
		r.Changes = append(r.Changes, Change{
			Field:   "glycemic_ceiling",
			Old:     onOff(old.GlycemicCeilingEnabled),
			New:     onOff(new.GlycemicCeilingEnabled),
			Comment: comment,
		})
	}

	// Guardrails
	og, ng := old.Guardrails, new.Guardrails
	diffFloat(r, "guardrails.fasting_min", og.FastingMin, ng.FastingMin, true)
	diffFloat(r, "guardrails.fasting_max", og.FastingMax, ng.FastingMax, false)
	diffFloat(r, "guardrails.post_meal_max", og.PostMealMax, ng.PostMealMax, false)
	diffFloat(r, "guardrails.carb_limit", og.CarbLimit, ng.CarbLimit, false)
	diffFloat(r, "guardrails.fiber_min", og.FiberMin, ng.FiberMin, true)
	diffFloat(r, "guardrails.glycemic_cap", og.GlycemicCap, ng.GlycemicCap, false)
	diffInt(r, "guardrails.starch_slots", og.StarchSlots, ng.StarchSlots, false)
	if og.MealFrequency != ng.MealFrequency {
		r.Changes = append(r.Changes, Change{
			Field: "guardrails.meal_frequency",
			Old:   strconv.Itoa(og.MealFrequency),
			New:   strconv.Itoa(ng.MealFrequency),
		})
	}

	// Terms
	diffTerms(r, "blocked", old.BlockedIngredients, new.BlockedIngredients)
	diffTerms(r, "preferred", old.PreferredIngredients, new.PreferredIngredients)

	r.HasChanges = len(r.Changes) > 0 || len(r.TermChanges) > 0
	return r
}

// DiffProfiles derives both profiles against cfg and compares them.
// Each argument is a profile name or a path to a profile YAML file.
func DiffProfiles(cfg *policy.Config, oldRef, newRef string) (*DiffResult, error) {
	oldCS, err := Derive(cfg, oldRef)
	if err != nil {
		return nil, fmt.Errorf("old profile: %w", err)
	}
	newCS, err := Derive(cfg, newRef)
	if err != nil {
		return nil, fmt.Errorf("new profile: %w", err)
	}

	r := Diff(oldCS, newCS)
	r.Old = oldRef
	r.New = newRef
	return r, nil
}

// Derive loads a profile by name or file path and derives its constraint set.
func Derive(cfg *policy.Config, ref string) (model.ConstraintSet, error) {
	p, err := load(ref)
	if err != nil {
		return model.ConstraintSet{}, err
	}
	merged := profile.ApplyToPolicy(p, cfg)
	return merged.Derive(p.ToCondition()), nil
}

func load(ref string) (*profile.Profile, error) {
	if ext := filepath.Ext(ref); ext == ".yaml" || ext == ".yml" {
		if _, err := os.Stat(ref); err == nil {
			return profile.LoadFile(ref)
		}
	}
	return profile.Load(ref)
}

func diffFloat(r *DiffResult, field string, old, new float64, higherIsStricter bool) {
	if old != new {
		r.Changes = append(r.Changes, Change{
			Field:   field,
			Old:     formatFloat(old),
			New:     formatFloat(new),
			Comment: comment(new > old, higherIsStricter),
		})
	}
}

func diffInt(r *DiffResult, field string, old, new int, higherIsStricter bool) {
	if old != new {
		r.Changes = append(r.Changes, Change{
			Field:   field,
			Old:     strconv.Itoa(old),
			New:     strconv.Itoa(new),
			Comment: comment(new > old, higherIsStricter),
		})
	}
}

func comment(increased, higherIsStricter bool) string {
	if increased == higherIsStricter {
		return "stricter"
	}
	return "looser"
}

func diffTerms(r *DiffResult, list string, oldTerms, newTerms []string) {
	oldSet := make(map[string]bool, len(oldTerms))
	for _, t := range oldTerms {
		oldSet[t] = true
	}
	newSet := make(map[string]bool, len(newTerms))
	for _, t := range newTerms {
		newSet[t] = true
	}

	for _, t := range newTerms {
		if !oldSet[t] {
			r.TermChanges = append(r.TermChanges, TermChange{Type: "added", List: list, Term: t})
		}
	}
	for _, t := range oldTerms {
		if !newSet[t] {
			r.TermChanges = append(r.TermChanges, TermChange{Type: "removed", List: list, Term: t})
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
