package model

import (
	"fmt"
	"strings"
	"time"
)

// State is the discrete physiological state derived from the latest reading.
type State string

const (
	StateNone      State = "none"
	StateLow       State = "low"
	StateLowNormal State = "low_normal"
	StateInRange   State = "in_range"
	StateElevated  State = "elevated"
	StateHighRisk  State = "high_risk"
	StateStale     State = "stale"
)

// ReadingContext narrows the in-range ceiling for fasting and post-meal readings.
type ReadingContext string

const (
	ContextAny      ReadingContext = "any"
	ContextFasting  ReadingContext = "fasting"
	ContextPreMeal  ReadingContext = "pre_meal"
	ContextPostMeal ReadingContext = "post_meal"
)

// ParseReadingContext maps a string to a ReadingContext. Unknown → ContextAny.
func ParseReadingContext(s string) ReadingContext {
	switch ReadingContext(strings.ToLower(strings.TrimSpace(s))) {
	case ContextFasting:
		return ContextFasting
	case ContextPreMeal:
		return ContextPreMeal
	case ContextPostMeal:
		return ContextPostMeal
	default:
		return ContextAny
	}
}

// Reading is one biometric sample. Immutable once recorded.
type Reading struct {
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Condition identifies the policy table a profile uses.
type Condition string

const (
	ConditionType1      Condition = "type1_diabetes"
	ConditionType2      Condition = "type2_diabetes"
	ConditionPrediabet  Condition = "prediabetes"
	ConditionGestation  Condition = "gestational_diabetes"
	ConditionPCOS       Condition = "pcos"
	ConditionGeneral    Condition = "general"
	ConditionUnresolved Condition = ""
)

// MealType is the slot a candidate is proposed for.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snack     MealType = "snack"
)

// MealTypes lists every meal type in display order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner, Snack}

// ParseMealType maps a string to a MealType. Unknown values are a validation error.
func ParseMealType(s string) (MealType, error) {
	mt := MealType(strings.ToLower(strings.TrimSpace(s)))
	switch mt {
	case Breakfast, Lunch, Dinner, Snack:
		return mt, nil
	case "":
		return "", &ValidationError{Field: "meal_type", Message: "is required"}
	default:
		return "", &ValidationError{Field: "meal_type", Message: fmt.Sprintf("unknown meal type %q", s)}
	}
}

// Outcome is the enforcement decision for one candidate.
type Outcome string

const (
	Accepted    Outcome = "accepted"
	Substituted Outcome = "substituted"
	Rejected    Outcome = "rejected"
)

// Violation codes. Blocked-ingredient violations carry the term after a colon.
const (
	ViolationCarbsExceedCap    = "CARBS_EXCEED_CAP"
	ViolationHighGIBlocked     = "HIGH_GI_BLOCKED"
	ViolationBlockedIngredient = "BLOCKED_INGREDIENT"
)

// Warning codes.
const (
	WarnMissingPreferred     = "MISSING_PREFERRED"
	WarnCarbsNearCap         = "CARBS_NEAR_CAP"
	WarnLowFiber             = "LOW_FIBER"
	WarnHighCalories         = "HIGH_CALORIES"
	WarnSubstituteUnverified = "SUBSTITUTE_NOT_REVALIDATED"
)

// FlagHighGI marks a candidate as high glycemic impact.
const FlagHighGI = "HIGH_GI"

// TagDietAdjusted is added to substitutes for downstream display.
const TagDietAdjusted = "Diet-Adjusted"

// ViolationCode strips the detail suffix from a violation string.
func ViolationCode(v string) string {
	if i := strings.IndexByte(v, ':'); i >= 0 {
		return v[:i]
	}
	return v
}

// EvaluationResult is the output of one enforcement pass. Never persisted.
type EvaluationResult struct {
	Outcome    Outcome    `json:"outcome"`
	Candidate  *Candidate `json:"candidate,omitempty"`
	NetCarbs   *float64   `json:"net_carbs,omitempty"`
	Violations []string   `json:"violations"`
	Warnings   []string   `json:"warnings"`
	Tags       []string   `json:"tags,omitempty"` // display tags; the candidate itself is never modified
}

// QuotaState is the derived slot usage for one user-period.
type QuotaState struct {
	PeriodStart time.Time `json:"period_start"`
	SlotsUsed   int       `json:"slots_used"`
	SlotsMax    int       `json:"slots_max"`
	ContentSeen []string  `json:"content_seen"`
}

// Remaining returns the unused slots, never negative.
func (q QuotaState) Remaining() int {
	if q.SlotsUsed >= q.SlotsMax {
		return 0
	}
	return q.SlotsMax - q.SlotsUsed
}
