package signal

import (
	"fmt"
	"time"

	"github.com/ppiankov/mealguard/internal/model"
)

// FreshnessWindow is the maximum reading age before it is treated as stale.
const FreshnessWindow = 240 * time.Minute

// Thresholds are the bucket boundaries in mg/dL. Each bucket is inclusive on
// its upper bound:
//
//	v <  LowBelow            → low
//	v <= LowNormalMax        → low_normal
//	v <= InRangeMax          → in_range
//	v <= ElevatedMax         → elevated
//	otherwise                → high_risk
type Thresholds struct {
	LowBelow     float64
	LowNormalMax float64
	InRangeMax   float64
	ElevatedMax  float64
}

// DefaultThresholds is the product policy when no context applies.
var DefaultThresholds = Thresholds{
	LowBelow:     70,
	LowNormalMax: 80,
	InRangeMax:   140,
	ElevatedMax:  180,
}

// Context-specific in-range ceilings.
const (
	fastingInRangeMax  = 120
	postMealInRangeMax = 140
)

// ThresholdsFor returns DefaultThresholds narrowed for the reading context.
func ThresholdsFor(ctx model.ReadingContext) Thresholds {
	t := DefaultThresholds
	switch ctx {
	case model.ContextFasting, model.ContextPreMeal:
		t.InRangeMax = fastingInRangeMax
	case model.ContextPostMeal:
		t.InRangeMax = postMealInRangeMax
	}
	return t
}

// ThresholdsFromGuardrails applies a profile's fasting and post-meal bounds.
// Boundaries that would invert the bucket order are ignored.
func ThresholdsFromGuardrails(g model.ResolvedGuardrails, ctx model.ReadingContext) Thresholds {
	t := ThresholdsFor(ctx)
	if g.FastingMin > 0 && g.FastingMin <= t.LowNormalMax {
		t.LowBelow = g.FastingMin
	}
	switch ctx {
	case model.ContextFasting, model.ContextPreMeal:
		if g.FastingMax > t.LowNormalMax && g.FastingMax <= t.ElevatedMax {
			t.InRangeMax = g.FastingMax
		}
	case model.ContextPostMeal:
		if g.PostMealMax > t.LowNormalMax && g.PostMealMax <= t.ElevatedMax {
			t.InRangeMax = g.PostMealMax
		}
	}
	return t
}

// Classify maps the latest reading to a state using DefaultThresholds.
func Classify(reading *model.Reading, now time.Time) model.State {
	return ClassifyWith(reading, now, DefaultThresholds)
}

// ClassifyInContext classifies with the context-narrowed in-range ceiling.
func ClassifyInContext(reading *model.Reading, now time.Time, ctx model.ReadingContext) model.State {
	return ClassifyWith(reading, now, ThresholdsFor(ctx))
}

// ClassifyWith is the total classifier. No reading → none; older than the
// freshness window → stale regardless of value; otherwise bucketed.
func ClassifyWith(reading *model.Reading, now time.Time, t Thresholds) model.State {
	if reading == nil {
		return model.StateNone
	}
	if IsStale(*reading, now) {
		return model.StateStale
	}
	return Bucket(reading.Value, t)
}

// IsStale reports whether the reading is older than FreshnessWindow.
// Readings stamped in the future are fresh.
func IsStale(r model.Reading, now time.Time) bool {
	return now.Sub(r.RecordedAt) > FreshnessWindow
}

// Bucket places a value into a state by thresholds alone.
func Bucket(v float64, t Thresholds) model.State {
	switch {
	case v < t.LowBelow:
		return model.StateLow
	case v <= t.LowNormalMax:
		return model.StateLowNormal
	case v <= t.InRangeMax:
		return model.StateInRange
	case v <= t.ElevatedMax:
		return model.StateElevated
	default:
		return model.StateHighRisk
	}
}

// Label returns the banner text for a state.
func Label(s model.State) string {
	switch s {
	case model.StateNone:
		return "No reading"
	case model.StateLow:
		return "Low"
	case model.StateLowNormal:
		return "Low-normal"
	case model.StateInRange:
		return "In range"
	case model.StateElevated:
		return "Elevated"
	case model.StateHighRisk:
		return "High"
	case model.StateStale:
		return "Stale reading"
	default:
		return fmt.Sprintf("unknown(%s)", string(s))
	}
}

// NeedsAttention reports states that warrant a prominent banner.
func NeedsAttention(s model.State) bool {
	return s == model.StateLow || s == model.StateHighRisk
}
