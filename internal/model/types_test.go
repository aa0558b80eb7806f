package model

import (
	"encoding/json"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseMealType(t *testing.T) {
	for _, s := range []string{"breakfast", "Lunch", " DINNER ", "snack"} {
		if _, err := ParseMealType(s); err != nil {
			t.Errorf("expected %q to parse, got %v", s, err)
		}
	}

	_, err := ParseMealType("brunch")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for brunch, got %v", err)
	}
	if ve.Field != "meal_type" {
		t.Errorf("expected field=meal_type, got %s", ve.Field)
	}

	if _, err := ParseMealType(""); err == nil {
		t.Error("expected error for empty meal type")
	}
}

func TestParseReadingContext(t *testing.T) {
	if got := ParseReadingContext("Fasting"); got != ContextFasting {
		t.Errorf("expected fasting, got %s", got)
	}
	if got := ParseReadingContext("whenever"); got != ContextAny {
		t.Errorf("expected any for unknown, got %s", got)
	}
}

func TestIngredientUnmarshalString(t *testing.T) {
	var c Candidate
	data := `{"name":"Bowl","ingredients":["brown rice",{"name":"chicken","amount":120,"unit":"g"}]}`
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(c.Ingredients) != 2 {
		t.Fatalf("expected 2 ingredients, got %d", len(c.Ingredients))
	}
	if c.Ingredients[0].Name != "brown rice" || c.Ingredients[0].Amount != nil {
		t.Errorf("unexpected string ingredient: %+v", c.Ingredients[0])
	}
	if c.Ingredients[1].Name != "chicken" || c.Ingredients[1].Amount == nil || *c.Ingredients[1].Amount != 120 {
		t.Errorf("unexpected object ingredient: %+v", c.Ingredients[1])
	}
	if c.Ingredients[1].Unit != "g" {
		t.Errorf("expected unit=g, got %s", c.Ingredients[1].Unit)
	}
}

func TestIngredientUnmarshalRejectsNumbers(t *testing.T) {
	var ing Ingredient
	if err := json.Unmarshal([]byte(`42`), &ing); err == nil {
		t.Error("expected error for numeric ingredient")
	}
}

func TestIngredientUnmarshalYAML(t *testing.T) {
	var c Candidate
	data := `
name: Bowl
ingredients:
  - quinoa
  - name: salmon
    amount: 100
    unit: g
`
	if err := yaml.Unmarshal([]byte(data), &c); err != nil {
		t.Fatalf("yaml unmarshal failed: %v", err)
	}
	if len(c.Ingredients) != 2 || c.Ingredients[0].Name != "quinoa" || c.Ingredients[1].Name != "salmon" {
		t.Errorf("unexpected ingredients: %+v", c.Ingredients)
	}
}

func TestCandidateValidate(t *testing.T) {
	tests := []struct {
		name  string
		c     *Candidate
		field string
	}{
		{"nil", nil, "candidate"},
		{"no name", &Candidate{Ingredients: []Ingredient{{Name: "egg"}}}, "candidate.name"},
		{"no ingredients", &Candidate{Name: "x"}, "candidate.ingredients"},
		{"blank ingredient", &Candidate{Name: "x", Ingredients: []Ingredient{{Name: " "}}}, "candidate.ingredients[0].name"},
		{"negative carbs", &Candidate{Name: "x", Ingredients: []Ingredient{{Name: "egg"}}, Nutrition: &Nutrition{Carbs: -1}}, "candidate.nutrition"},
	}
	for _, tt := range tests {
		err := tt.c.Validate()
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %v", tt.name, err)
			continue
		}
		if ve.Field != tt.field {
			t.Errorf("%s: expected field=%s, got %s", tt.name, tt.field, ve.Field)
		}
	}

	ok := &Candidate{Name: "Omelette", Ingredients: []Ingredient{{Name: "egg"}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("expected valid candidate, got %v", err)
	}
}

func TestSearchTextOrder(t *testing.T) {
	c := &Candidate{
		Name:        "Stir fry",
		Description: "quick dinner",
		Ingredients: []Ingredient{{Name: "tofu"}, {Name: "broccoli"}},
	}
	got := c.SearchText()
	want := []string{"tofu", "broccoli", "Stir fry", "quick dinner"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestHasFlagCaseInsensitive(t *testing.T) {
	c := &Candidate{Flags: []string{"high_gi"}}
	if !c.HasFlag(FlagHighGI) {
		t.Error("expected HIGH_GI flag match to be case-insensitive")
	}
}

func TestViolationCode(t *testing.T) {
	if got := ViolationCode("BLOCKED_INGREDIENT:sugar"); got != ViolationBlockedIngredient {
		t.Errorf("expected BLOCKED_INGREDIENT, got %s", got)
	}
	if got := ViolationCode(ViolationCarbsExceedCap); got != ViolationCarbsExceedCap {
		t.Errorf("expected code unchanged, got %s", got)
	}
}

// --- Guardrails ---

func TestGuardrailsMergePartial(t *testing.T) {
	base := ResolvedGuardrails{FastingMin: 70, FastingMax: 120, PostMealMax: 140, CarbLimit: 45, FiberMin: 5, GlycemicCap: 55, MealFrequency: 3, StarchSlots: 2}
	g := &Guardrails{FastingMax: Float(110), StarchSlots: Int(1)}

	got := g.Merge(base)
	if got.FastingMax != 110 {
		t.Errorf("expected fasting_max=110, got %v", got.FastingMax)
	}
	if got.StarchSlots != 1 {
		t.Errorf("expected starch_slots=1, got %d", got.StarchSlots)
	}
	if got.FastingMin != 70 || got.CarbLimit != 45 || got.MealFrequency != 3 {
		t.Errorf("expected unset fields to fall back to base, got %+v", got)
	}
}

func TestGuardrailsMergeNil(t *testing.T) {
	base := ResolvedGuardrails{CarbLimit: 45}
	var g *Guardrails
	if got := g.Merge(base); got != base {
		t.Errorf("expected base for nil overrides, got %+v", got)
	}
	if !g.IsZero() {
		t.Error("expected nil guardrails to be zero")
	}
}

func TestQuotaStateRemaining(t *testing.T) {
	if got := (QuotaState{SlotsUsed: 3, SlotsMax: 2}).Remaining(); got != 0 {
		t.Errorf("expected 0 remaining when over budget, got %d", got)
	}
	if got := (QuotaState{SlotsUsed: 1, SlotsMax: 2}).Remaining(); got != 1 {
		t.Errorf("expected 1 remaining, got %d", got)
	}
}

func TestNutritionNet(t *testing.T) {
	tests := []struct {
		name string
		n    Nutrition
		want float64
	}{
		{"carbs minus fiber", Nutrition{Carbs: 70, Fiber: 5}, 65},
		{"explicit net wins", Nutrition{Carbs: 70, Fiber: 5, NetCarbs: Float(40)}, 40},
		{"clamped at zero", Nutrition{Carbs: 3, Fiber: 9}, 0},
		{"negative explicit clamped", Nutrition{NetCarbs: Float(-2)}, 0},
	}
	for _, tt := range tests {
		if got := tt.n.Net(); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}
