package model

// Guardrails is a partial set of numeric overrides. Nil fields fall back to
// the condition or system defaults when resolved.
type Guardrails struct {
	FastingMin    *float64 `json:"fasting_min,omitempty" yaml:"fasting_min,omitempty"`
	FastingMax    *float64 `json:"fasting_max,omitempty" yaml:"fasting_max,omitempty"`
	PostMealMax   *float64 `json:"post_meal_max,omitempty" yaml:"post_meal_max,omitempty"`
	CarbLimit     *float64 `json:"carb_limit,omitempty" yaml:"carb_limit,omitempty"`
	FiberMin      *float64 `json:"fiber_min,omitempty" yaml:"fiber_min,omitempty"`
	GlycemicCap   *float64 `json:"glycemic_cap,omitempty" yaml:"glycemic_cap,omitempty"`
	MealFrequency *int     `json:"meal_frequency,omitempty" yaml:"meal_frequency,omitempty"`
	StarchSlots   *int     `json:"starch_slots,omitempty" yaml:"starch_slots,omitempty"`
}

// ResolvedGuardrails is Guardrails with every field filled in.
type ResolvedGuardrails struct {
	FastingMin    float64 `json:"fasting_min" yaml:"fasting_min"`
	FastingMax    float64 `json:"fasting_max" yaml:"fasting_max"`
	PostMealMax   float64 `json:"post_meal_max" yaml:"post_meal_max"`
	CarbLimit     float64 `json:"carb_limit" yaml:"carb_limit"`
	FiberMin      float64 `json:"fiber_min" yaml:"fiber_min"`
	GlycemicCap   float64 `json:"glycemic_cap" yaml:"glycemic_cap"`
	MealFrequency int     `json:"meal_frequency" yaml:"meal_frequency"`
	StarchSlots   int     `json:"starch_slots" yaml:"starch_slots"`
}

// Merge overlays g onto base field by field. A nil receiver returns base.
func (g *Guardrails) Merge(base ResolvedGuardrails) ResolvedGuardrails {
	if g == nil {
		return base
	}
	out := base
	if g.FastingMin != nil {
		out.FastingMin = *g.FastingMin
	}
	if g.FastingMax != nil {
		out.FastingMax = *g.FastingMax
	}
	if g.PostMealMax != nil {
		out.PostMealMax = *g.PostMealMax
	}
	if g.CarbLimit != nil {
		out.CarbLimit = *g.CarbLimit
	}
	if g.FiberMin != nil {
		out.FiberMin = *g.FiberMin
	}
	if g.GlycemicCap != nil {
		out.GlycemicCap = *g.GlycemicCap
	}
	if g.MealFrequency != nil {
		out.MealFrequency = *g.MealFrequency
	}
	if g.StarchSlots != nil {
		out.StarchSlots = *g.StarchSlots
	}
	return out
}

// IsZero reports whether no override is set.
func (g *Guardrails) IsZero() bool {
	return g == nil || (g.FastingMin == nil && g.FastingMax == nil && g.PostMealMax == nil &&
		g.CarbLimit == nil && g.FiberMin == nil && g.GlycemicCap == nil &&
		g.MealFrequency == nil && g.StarchSlots == nil)
}

// ConditionProfile is the user's condition plus optional overrides.
// Read-only to the engine.
type ConditionProfile struct {
	Condition Condition   `json:"condition" yaml:"condition"`
	Overrides *Guardrails `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// CarbRange is an inclusive [Min, Max] gram range.
type CarbRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// ConstraintSet is derived per call from a ConditionProfile. Never persisted.
type ConstraintSet struct {
	Condition              Condition              `json:"condition"`
	CarbRanges             map[MealType]CarbRange `json:"carb_ranges"`
	GlycemicCeilingEnabled bool                   `json:"glycemic_ceiling_enabled"`
	GlycemicCap            float64                `json:"glycemic_cap"`
	BlockedIngredients     []string               `json:"blocked_ingredients"`
	PreferredIngredients   []string               `json:"preferred_ingredients"`
	Guardrails             ResolvedGuardrails     `json:"guardrails"`
}

// RangeFor returns the carb range for a meal type and whether it is defined.
func (cs ConstraintSet) RangeFor(mt MealType) (CarbRange, bool) {
	r, ok := cs.CarbRanges[mt]
	return r, ok
}

// Float returns a pointer to v. Used for optional numeric fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
