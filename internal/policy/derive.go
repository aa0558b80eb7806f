package policy

import (
	"sort"
	"strings"

	"github.com/ppiankov/mealguard/internal/model"
)

// DeriveConstraints derives a ConstraintSet from the built-in tables.
func DeriveConstraints(p model.ConditionProfile) model.ConstraintSet {
	return DefaultConfig().Derive(p)
}

// Derive resolves a profile against the condition tables.
//
// Resolution order:
//  1. Condition lookup; unknown conditions use the fallback policy
//  2. Guardrails: overrides, then condition defaults, then system defaults
//  3. Carb ranges per meal type; a carb_limit override caps every max
//  4. Glycemic ceiling; a glycemic_cap override > 0 enables it, 0 disables it
//  5. Blocked and preferred term lists
//
// The result shares no memory with the Config or the profile.
func (c *Config) Derive(p model.ConditionProfile) model.ConstraintSet {
	cond, pol := c.Policy(p.Condition)

	g := p.Overrides.Merge(pol.Guardrails.Merge(c.SystemDefaults))

	cs := model.ConstraintSet{
		Condition:              cond,
		CarbRanges:             make(map[model.MealType]model.CarbRange, len(model.MealTypes)),
		GlycemicCeilingEnabled: pol.GlycemicCeiling,
		GlycemicCap:            g.GlycemicCap,
		Guardrails:             g,
	}

	for _, mt := range model.MealTypes {
		r, ok := pol.CarbRanges[mt]
		if !ok {
			r = model.CarbRange{Min: 0, Max: g.CarbLimit}
		}
		if p.Overrides != nil && p.Overrides.CarbLimit != nil && r.Max > *p.Overrides.CarbLimit {
			r.Max = *p.Overrides.CarbLimit
		}
		if r.Max < 0 {
			r.Max = 0
		}
		if r.Min > r.Max {
			r.Min = r.Max
		}
		if r.Min < 0 {
			r.Min = 0
		}
		cs.CarbRanges[mt] = r
	}

	if p.Overrides != nil && p.Overrides.GlycemicCap != nil {
		cs.GlycemicCeilingEnabled = *p.Overrides.GlycemicCap > 0
	}

	cs.BlockedIngredients = make([]string, 0, len(pol.Blocked))
	seen := make(map[string]bool, len(pol.Blocked))
	for _, t := range pol.Blocked {
		name := normalize(t.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		cs.BlockedIngredients = append(cs.BlockedIngredients, name)
	}

	cs.PreferredIngredients = flattenPreferred(pol.Preferred)
	return cs
}

// PreferredCategories returns a copy of the category → terms table for a
// condition, after fallback resolution.
func (c *Config) PreferredCategories(cond model.Condition) map[string][]string {
	_, pol := c.Policy(cond)
	out := make(map[string][]string, len(pol.Preferred))
	for k, v := range pol.Preferred {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// SoftLimits returns the warning ratio and calorie threshold for a condition.
func (c *Config) SoftLimits(cond model.Condition) (carbWarnRatio, calorieWarn float64) {
	_, pol := c.Policy(cond)
	return pol.CarbWarnRatio, pol.CalorieWarn
}

// flattenPreferred lists terms by sorted category, first occurrence wins.
func flattenPreferred(pref map[string][]string) []string {
	cats := make([]string, 0, len(pref))
	for k := range pref {
		cats = append(cats, k)
	}
	sort.Strings(cats)

	out := []string{}
	seen := make(map[string]bool)
	for _, cat := range cats {
		for _, t := range pref[cat] {
			t = normalize(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
