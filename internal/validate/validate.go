// Package validate scans a candidate against a ConstraintSet and reports hard
// violations and soft warnings. It never mutates the candidate.
package validate

import (
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/terms"
)

// Report is the validator output.
type Report struct {
	Violations []string      `json:"violations"`
	Warnings   []string      `json:"warnings"`
	Matches    []terms.Match `json:"matches,omitempty"`
}

// OK reports whether there are no violations.
func (r Report) OK() bool {
	return len(r.Violations) == 0
}

// otherCategory groups preferred terms that no condition category claims.
const otherCategory = "preferred"

// Validator looks up aliases, safe variants, preferred categories and soft
// limits from policy tables.
type Validator struct {
	cfg   *policy.Config
	index map[string]terms.Term
}

// New builds a Validator over cfg. Nil cfg uses the built-in tables.
func New(cfg *policy.Config) *Validator {
	if cfg == nil {
		cfg = policy.DefaultConfig()
	}
	return &Validator{cfg: cfg, index: cfg.TermIndex()}
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Default returns a shared Validator over the built-in tables.
func Default() *Validator {
	defaultOnce.Do(func() { defaultValidator = New(nil) })
	return defaultValidator
}

// Validate checks c against cs with the built-in tables. Carb warnings need a
// meal type and are skipped here; see ValidateMeal.
func Validate(c model.Candidate, cs model.ConstraintSet) Report {
	return Default().ValidateMeal(c, cs, "")
}

// Validate is ValidateMeal without a meal type.
func (v *Validator) Validate(c model.Candidate, cs model.ConstraintSet) Report {
	return v.ValidateMeal(c, cs, "")
}

// ValidateMeal checks c against cs for a meal slot.
//
// Check order:
//  1. Blocked terms (plus aliases) over ingredient names, name, description.
//     A text containing one of the term's safe variants is exempt.
//  2. Preferred categories with no matching ingredient → warning
//  3. Nutrition soft limits (skipped when nutrition is absent)
func (v *Validator) ValidateMeal(c model.Candidate, cs model.ConstraintSet, meal model.MealType) Report {
	r := Report{Violations: []string{}, Warnings: []string{}}

	matcher := terms.New(v.blockedTerms(cs.BlockedIngredients))
	r.Matches = matcher.Match(c.SearchText())
	seen := make(map[string]bool)
	for _, m := range r.Matches {
		if seen[m.Term] {
			continue
		}
		seen[m.Term] = true
		r.Violations = append(r.Violations, model.ViolationBlockedIngredient+":"+m.Term)
	}

	r.Warnings = append(r.Warnings, v.preferredWarnings(c, cs)...)

	if n := c.Nutrition; n != nil {
		ratio, calorieWarn := v.cfg.SoftLimits(cs.Condition)
		if rng, ok := cs.RangeFor(meal); ok && ratio > 0 && rng.Max > 0 {
			if n.Net() > ratio*rng.Max {
				r.Warnings = append(r.Warnings, model.WarnCarbsNearCap)
			}
		}
		if cs.Guardrails.FiberMin > 0 && n.Fiber < cs.Guardrails.FiberMin {
			r.Warnings = append(r.Warnings, model.WarnLowFiber)
		}
		if calorieWarn > 0 && n.Calories > calorieWarn {
			r.Warnings = append(r.Warnings, model.WarnHighCalories)
		}
	}

	return r
}

// blockedTerms resolves blocked names to table terms. Names absent from the
// tables match literally.
func (v *Validator) blockedTerms(names []string) []terms.Term {
	out := make([]terms.Term, 0, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if t, ok := v.index[key]; ok {
			out = append(out, t)
			continue
		}
		out = append(out, terms.Term{Name: key})
	}
	return out
}

// preferredWarnings groups cs.PreferredIngredients by the condition's
// categories and warns for each category no ingredient satisfies.
func (v *Validator) preferredWarnings(c model.Candidate, cs model.ConstraintSet) []string {
	if len(cs.PreferredIngredients) == 0 {
		return nil
	}

	wanted := make(map[string]bool, len(cs.PreferredIngredients))
	for _, p := range cs.PreferredIngredients {
		wanted[strings.ToLower(strings.TrimSpace(p))] = true
	}

	groups := make(map[string][]string)
	claimed := make(map[string]bool)
	for cat, list := range v.cfg.PreferredCategories(cs.Condition) {
		for _, t := range list {
			t = strings.ToLower(strings.TrimSpace(t))
			if wanted[t] {
				groups[cat] = append(groups[cat], t)
				claimed[t] = true
			}
		}
	}
	for _, p := range cs.PreferredIngredients {
		t := strings.ToLower(strings.TrimSpace(p))
		if t != "" && !claimed[t] {
			groups[otherCategory] = append(groups[otherCategory], t)
			claimed[t] = true
		}
	}

	names := make([]string, 0, len(c.Ingredients))
	for _, ing := range c.Ingredients {
		names = append(names, ing.Name)
	}

	cats := make([]string, 0, len(groups))
	for cat := range groups {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var out []string
	for _, cat := range cats {
		if !terms.FromNames(groups[cat]).Any(names) {
			out = append(out, model.WarnMissingPreferred+"_"+strings.ToUpper(cat))
		}
	}
	return out
}
