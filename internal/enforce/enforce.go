package enforce

import (
	"fmt"
	"strings"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/validate"
)

// RejectionError is returned to callers that want a rejected result as an error.
type RejectionError struct {
	Result model.EvaluationResult
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("candidate rejected (%s): %s", e.Code(), strings.Join(e.Result.Violations, ", "))
}

// Code returns the code of the first violation, or "REJECTED" when none was recorded.
func (e *RejectionError) Code() string {
	if len(e.Result.Violations) == 0 {
		return "REJECTED"
	}
	return model.ViolationCode(e.Result.Violations[0])
}

// AsError returns a *RejectionError for rejected results and nil otherwise.
func AsError(res model.EvaluationResult) error {
	if res.Outcome != model.Rejected {
		return nil
	}
	return &RejectionError{Result: res}
}

// Enforcer runs the enforcement pipeline.
//
// Strict re-runs the pipeline on a lower-constraint substitute, with
// substitution disabled. Without Strict the substitute is trusted and the
// result carries SUBSTITUTE_NOT_REVALIDATED.
type Enforcer struct {
	Validator *validate.Validator
	Strict    bool
}

// Enforce runs the default (trusting) pipeline with the built-in tables.
func Enforce(c *model.Candidate, cs model.ConstraintSet, meal model.MealType) model.EvaluationResult {
	return (&Enforcer{}).Enforce(c, cs, meal)
}

// Check validates the candidate and meal type before enforcing. Malformed
// input returns a *model.ValidationError and never reaches the pipeline.
func (e *Enforcer) Check(c *model.Candidate, cs model.ConstraintSet, meal string) (model.EvaluationResult, error) {
	mt, err := model.ParseMealType(meal)
	if err != nil {
		return model.EvaluationResult{}, err
	}
	if err := c.Validate(); err != nil {
		return model.EvaluationResult{}, err
	}
	return e.Enforce(c, cs, mt), nil
}

// Enforce decides accept, substitute or reject for one candidate.
//
// Evaluation order (must not be changed):
//  1. Net carbs over the meal max → substitute with the lower-constraint
//     variant, or reject CARBS_EXCEED_CAP
//  2. Glycemic ceiling → reject HIGH_GI_BLOCKED
//  3. Blocked ingredients → reject with the validator's violations
//  4. Otherwise accept with the validator's warnings
//
// The candidate is never modified. A nil candidate is rejected.
func (e *Enforcer) Enforce(c *model.Candidate, cs model.ConstraintSet, meal model.MealType) model.EvaluationResult {
	return e.run(c, cs, meal, true)
}

func (e *Enforcer) run(c *model.Candidate, cs model.ConstraintSet, meal model.MealType, allowSubstitute bool) model.EvaluationResult {
	res := model.EvaluationResult{
		Candidate:  c,
		Violations: []string{},
		Warnings:   []string{},
	}
	if c == nil {
		res.Outcome = model.Rejected
		return res
	}

	// Step 1: numeric carb cap. Unknown nutrition skips the check.
	if c.Nutrition != nil {
		net := c.Nutrition.Net()
		res.NetCarbs = &net
		if rng, ok := cs.RangeFor(meal); ok && net > rng.Max {
			if sub := c.LowerConstraint(); sub != nil && allowSubstitute {
				return e.substitute(sub, cs, meal)
			}
			res.Outcome = model.Rejected
			res.Violations = append(res.Violations, model.ViolationCarbsExceedCap)
			return res
		}
	}

	// Step 2: glycemic ceiling
	if cs.GlycemicCeilingEnabled && isHighGI(c, cs.GlycemicCap) {
		res.Outcome = model.Rejected
		res.Violations = append(res.Violations, model.ViolationHighGIBlocked)
		return res
	}

	// Step 3: ingredient scan
	report := e.validator().ValidateMeal(*c, cs, meal)
	res.Warnings = append(res.Warnings, report.Warnings...)
	if !report.OK() {
		res.Outcome = model.Rejected
		res.Violations = append(res.Violations, report.Violations...)
		return res
	}

	res.Outcome = model.Accepted
	return res
}

func (e *Enforcer) substitute(sub *model.Candidate, cs model.ConstraintSet, meal model.MealType) model.EvaluationResult {
	if e.Strict {
		second := e.run(sub, cs, meal, false)
		if second.Outcome == model.Rejected {
			return second
		}
		second.Outcome = model.Substituted
		second.Tags = []string{model.TagDietAdjusted}
		return second
	}

	res := model.EvaluationResult{
		Outcome:    model.Substituted,
		Candidate:  sub,
		Violations: []string{},
		Warnings:   []string{model.WarnSubstituteUnverified},
		Tags:       []string{model.TagDietAdjusted},
	}
	if sub.Nutrition != nil {
		net := sub.Nutrition.Net()
		res.NetCarbs = &net
	}
	return res
}

func (e *Enforcer) validator() *validate.Validator {
	if e.Validator != nil {
		return e.Validator
	}
	return validate.Default()
}

// isHighGI reports the HIGH_GI flag, or a glycemic index above the ceiling when both are known.
func isHighGI(c *model.Candidate, ceiling float64) bool {
	if c.HasFlag(model.FlagHighGI) {
		return true
	}
	if c.Nutrition != nil && c.Nutrition.GlycemicIndex != nil && ceiling > 0 {
		return *c.Nutrition.GlycemicIndex > ceiling
	}
	return false
}
