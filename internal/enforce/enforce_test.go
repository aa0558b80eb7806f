package enforce

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/policy"
)

func type2() model.ConstraintSet {
	return policy.DeriveConstraints(model.ConditionProfile{Condition: model.ConditionType2})
}

func lunchCandidate(carbs, fiber float64) *model.Candidate {
	return &model.Candidate{
		Name:        "Chicken and broccoli bowl",
		Ingredients: []model.Ingredient{{Name: "chicken"}, {Name: "broccoli"}, {Name: "quinoa"}},
		Nutrition:   &model.Nutrition{Calories: 550, Carbs: carbs, Fiber: fiber},
	}
}

// --- End-to-end ---

func TestType2LunchOverCapRejected(t *testing.T) {
	res := Enforce(lunchCandidate(70, 5), type2(), model.Lunch)

	if res.Outcome != model.Rejected {
		t.Fatalf("expected rejected, got %s", res.Outcome)
	}
	if !reflect.DeepEqual(res.Violations, []string{model.ViolationCarbsExceedCap}) {
		t.Errorf("expected CARBS_EXCEED_CAP, got %v", res.Violations)
	}
	if res.NetCarbs == nil || *res.NetCarbs != 65 {
		t.Errorf("expected net carbs 65, got %v", res.NetCarbs)
	}
}

func TestType2LunchOverCapSubstituted(t *testing.T) {
	sub := lunchCandidate(35, 8)
	sub.Name = "Chicken and broccoli, half quinoa"
	c := lunchCandidate(70, 5)
	c.Variants = &model.Variants{LowerConstraint: sub}

	res := Enforce(c, type2(), model.Lunch)

	if res.Outcome != model.Substituted {
		t.Fatalf("expected substituted, got %s", res.Outcome)
	}
	if res.Candidate != sub {
		t.Error("expected the exact lower-constraint variant")
	}
	if !reflect.DeepEqual(res.Tags, []string{model.TagDietAdjusted}) {
		t.Errorf("expected Diet-Adjusted tag, got %v", res.Tags)
	}
	if !reflect.DeepEqual(res.Warnings, []string{model.WarnSubstituteUnverified}) {
		t.Errorf("expected trust warning, got %v", res.Warnings)
	}
	if len(sub.Tags) != 0 {
		t.Errorf("expected substitute unmodified, got tags %v", sub.Tags)
	}
}

// --- Carb cap ---

func TestSubstitutionPrecedenceTrustsVariant(t *testing.T) {
	// The substitute itself breaks every rule; the default pipeline still substitutes.
	sub := &model.Candidate{
		Name:        "Sugar rice",
		Ingredients: []model.Ingredient{{Name: "white rice"}, {Name: "sugar"}},
		Nutrition:   &model.Nutrition{Carbs: 200},
		Flags:       []string{model.FlagHighGI},
	}
	c := lunchCandidate(90, 0)
	c.Variants = &model.Variants{LowerConstraint: sub}

	res := Enforce(c, type2(), model.Lunch)
	if res.Outcome != model.Substituted || res.Candidate != sub {
		t.Errorf("expected substitution with exact variant, got %s", res.Outcome)
	}
}

func TestExactlyAtCapAccepted(t *testing.T) {
	res := Enforce(lunchCandidate(50, 5), type2(), model.Lunch)
	if res.Outcome != model.Accepted {
		t.Errorf("expected accepted at cap, got %s %v", res.Outcome, res.Violations)
	}
}

func TestExplicitNetCarbsUsed(t *testing.T) {
	c := lunchCandidate(80, 0)
	c.Nutrition.NetCarbs = model.Float(30)
	res := Enforce(c, type2(), model.Lunch)
	if res.Outcome != model.Accepted {
		t.Errorf("expected accepted with explicit net carbs, got %s", res.Outcome)
	}
}

func TestNoNutritionSkipsCarbCheck(t *testing.T) {
	c := lunchCandidate(0, 0)
	c.Nutrition = nil
	res := Enforce(c, type2(), model.Lunch)
	if res.Outcome != model.Accepted {
		t.Errorf("expected accepted without nutrition, got %s", res.Outcome)
	}
	if res.NetCarbs != nil {
		t.Errorf("expected unknown net carbs, got %v", *res.NetCarbs)
	}
}

// --- Glycemic ceiling ---

func TestHighGIFlagRejected(t *testing.T) {
	c := lunchCandidate(20, 5)
	c.Flags = []string{"high_gi"}
	res := Enforce(c, type2(), model.Lunch)
	if res.Outcome != model.Rejected || res.Violations[0] != model.ViolationHighGIBlocked {
		t.Errorf("expected HIGH_GI_BLOCKED, got %s %v", res.Outcome, res.Violations)
	}
}

func TestGlycemicIndexOverCap(t *testing.T) {
	c := lunchCandidate(20, 5)
	c.Nutrition.GlycemicIndex = model.Float(70)
	res := Enforce(c, type2(), model.Lunch)
	if res.Outcome != model.Rejected {
		t.Errorf("expected GI 70 over cap 55 rejected, got %s", res.Outcome)
	}
}

func TestHighGIAllowedWhenCeilingDisabled(t *testing.T) {
	cs := policy.DeriveConstraints(model.ConditionProfile{Condition: model.ConditionType1})
	c := lunchCandidate(40, 5)
	c.Flags = []string{model.FlagHighGI}
	res := Enforce(c, cs, model.Lunch)
	if res.Outcome != model.Accepted {
		t.Errorf("expected accepted without ceiling, got %s %v", res.Outcome, res.Violations)
	}
}

func TestCarbCheckRunsBeforeGlycemic(t *testing.T) {
	c := lunchCandidate(70, 5)
	c.Flags = []string{model.FlagHighGI}
	res := Enforce(c, type2(), model.Lunch)
	if res.Violations[0] != model.ViolationCarbsExceedCap {
		t.Errorf("expected carb cap first, got %v", res.Violations)
	}
}

// --- Ingredients ---

func TestBlockedIngredientRejected(t *testing.T) {
	c := lunchCandidate(20, 5)
	c.Ingredients = append(c.Ingredients, model.Ingredient{Name: "honey glaze"})
	res := Enforce(c, type2(), model.Lunch)
	if res.Outcome != model.Rejected {
		t.Fatalf("expected rejected, got %s", res.Outcome)
	}
	if !reflect.DeepEqual(res.Violations, []string{"BLOCKED_INGREDIENT:sugar"}) {
		t.Errorf("expected sugar violation, got %v", res.Violations)
	}
}

func TestAcceptedCarriesWarnings(t *testing.T) {
	c := &model.Candidate{
		Name:        "Steak",
		Ingredients: []model.Ingredient{{Name: "beef"}},
		Nutrition:   &model.Nutrition{Calories: 500, Carbs: 2},
	}
	res := Enforce(c, type2(), model.Lunch)
	if res.Outcome != model.Accepted {
		t.Fatalf("expected accepted, got %s", res.Outcome)
	}
	want := []string{"MISSING_PREFERRED_FIBER", model.WarnLowFiber}
	if !reflect.DeepEqual(res.Warnings, want) {
		t.Errorf("expected %v, got %v", want, res.Warnings)
	}
}

// --- Strict substitutes ---

func TestStrictRejectsBadSubstitute(t *testing.T) {
	sub := lunchCandidate(30, 5)
	sub.Ingredients = append(sub.Ingredients, model.Ingredient{Name: "white rice"})
	c := lunchCandidate(70, 5)
	c.Variants = &model.Variants{LowerConstraint: sub}

	res := (&Enforcer{Strict: true}).Enforce(c, type2(), model.Lunch)
	if res.Outcome != model.Rejected {
		t.Fatalf("expected strict mode to reject bad substitute, got %s", res.Outcome)
	}
	if !reflect.DeepEqual(res.Violations, []string{"BLOCKED_INGREDIENT:rice"}) {
		t.Errorf("expected substitute's violation, got %v", res.Violations)
	}
}

func TestStrictDoesNotRecurse(t *testing.T) {
	inner := lunchCandidate(10, 5)
	sub := lunchCandidate(60, 5)
	sub.Variants = &model.Variants{LowerConstraint: inner}
	c := lunchCandidate(70, 5)
	c.Variants = &model.Variants{LowerConstraint: sub}

	res := (&Enforcer{Strict: true}).Enforce(c, type2(), model.Lunch)
	if res.Outcome != model.Rejected || res.Violations[0] != model.ViolationCarbsExceedCap {
		t.Errorf("expected substitute over cap to reject, got %s %v", res.Outcome, res.Violations)
	}
}

func TestStrictAcceptsGoodSubstitute(t *testing.T) {
	sub := lunchCandidate(30, 8)
	c := lunchCandidate(70, 5)
	c.Variants = &model.Variants{LowerConstraint: sub}

	res := (&Enforcer{Strict: true}).Enforce(c, type2(), model.Lunch)
	if res.Outcome != model.Substituted || res.Candidate != sub {
		t.Fatalf("expected substituted with exact variant, got %s", res.Outcome)
	}
	for _, w := range res.Warnings {
		if w == model.WarnSubstituteUnverified {
			t.Error("expected no trust warning in strict mode")
		}
	}
}

// --- Errors ---

func TestNilCandidateRejected(t *testing.T) {
	if res := Enforce(nil, type2(), model.Lunch); res.Outcome != model.Rejected {
		t.Errorf("expected nil candidate rejected, got %s", res.Outcome)
	}
}

func TestCheckValidatesInput(t *testing.T) {
	e := &Enforcer{}
	_, err := e.Check(lunchCandidate(10, 5), type2(), "")
	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Field != "meal_type" {
		t.Errorf("expected meal_type validation error, got %v", err)
	}

	_, err = e.Check(&model.Candidate{Name: "x"}, type2(), "lunch")
	if !errors.As(err, &ve) || ve.Field != "candidate.ingredients" {
		t.Errorf("expected ingredients validation error, got %v", err)
	}

	res, err := e.Check(lunchCandidate(10, 5), type2(), "Lunch")
	if err != nil || res.Outcome != model.Accepted {
		t.Errorf("expected accepted, got %v %s", err, res.Outcome)
	}
}

func TestRejectionError(t *testing.T) {
	res := Enforce(lunchCandidate(70, 5), type2(), model.Lunch)
	err := AsError(res)
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectionError, got %T", err)
	}
	if rej.Code() != model.ViolationCarbsExceedCap {
		t.Errorf("expected CARBS_EXCEED_CAP, got %s", rej.Code())
	}

	blocked := &RejectionError{Result: model.EvaluationResult{Violations: []string{"BLOCKED_INGREDIENT:sugar"}}}
	if blocked.Code() != model.ViolationBlockedIngredient {
		t.Errorf("expected BLOCKED_INGREDIENT code, got %s", blocked.Code())
	}

	if AsError(model.EvaluationResult{Outcome: model.Accepted}) != nil {
		t.Error("expected nil error for accepted result")
	}
}
