package scenario

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/policy"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func bowl(carbs, fiber float64, ingredients ...string) model.Candidate {
	c := model.Candidate{
		Name:      "Chicken zoodle bowl",
		Nutrition: &model.Nutrition{Calories: 480, Protein: 35, Carbs: carbs, Fiber: fiber, Fat: 18},
	}
	if len(ingredients) == 0 {
		ingredients = []string{"grilled chicken", "zucchini noodles", "spinach"}
	}
	for _, ing := range ingredients {
		c.Ingredients = append(c.Ingredients, model.Ingredient{Name: ing})
	}
	return c
}

func TestAllCasesPass(t *testing.T) {
	s := &Scenario{
		Name:    "type 2 lunch",
		Profile: "type2-diabetes",
		Cases: []Case{
			{MealType: "lunch", Candidate: bowl(40, 10), Expect: "accepted"},
			{MealType: "lunch", Candidate: bowl(70, 5), Expect: "rejected", Violation: model.ViolationCarbsExceedCap},
		},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %d; cases: %+v", result.Failed, result.Cases)
	}
	if result.Passed != 2 {
		t.Errorf("expected 2 passed, got %d", result.Passed)
	}
}

func TestFailedAssertionDetected(t *testing.T) {
	s := &Scenario{
		Name:    "wrong expectation",
		Profile: "type2-diabetes",
		Cases: []Case{
			// 65g net carbs is over the 45g lunch cap, so this is rejected
			{MealType: "lunch", Candidate: bowl(70, 5), Expect: "accepted"},
		},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", result.Failed)
	}
	if result.Passed != 0 {
		t.Errorf("expected 0 passed, got %d", result.Passed)
	}
}

func TestViolationCodeMustMatch(t *testing.T) {
	s := &Scenario{
		Name:    "wrong violation",
		Profile: "type2-diabetes",
		Cases: []Case{
			{MealType: "lunch", Candidate: bowl(70, 5), Expect: "rejected", Violation: model.ViolationHighGIBlocked},
		},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 1 {
		t.Errorf("expected violation mismatch to fail, got %+v", result.Cases)
	}
}

func TestBlockedIngredientDetail(t *testing.T) {
	s := &Scenario{
		Name:    "blocked",
		Profile: "type2-diabetes",
		Cases: []Case{
			{
				MealType:  "dinner",
				Candidate: bowl(35, 8, "grilled chicken", "white rice"),
				Expect:    "rejected",
				Violation: "BLOCKED_INGREDIENT:rice",
			},
		},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 0 {
		t.Errorf("expected detailed violation to match, got %+v", result.Cases)
	}
}

func TestCaseProfileOverridesScenario(t *testing.T) {
	s := &Scenario{
		Name:    "override",
		Profile: "type2-diabetes",
		Cases: []Case{
			// 55g net is over the type 2 lunch cap but inside type 1's 45-60
			{Profile: "type1-diabetes", MealType: "lunch", Candidate: bowl(60, 5), Expect: "accepted"},
		},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %+v", result.Cases)
	}
	if result.Cases[0].Profile != "type1-diabetes" {
		t.Errorf("profile: got %s", result.Cases[0].Profile)
	}
}

func TestInvalidInputExpectation(t *testing.T) {
	s := &Scenario{
		Name: "invalid",
		Cases: []Case{
			{MealType: "brunch", Candidate: bowl(20, 5), Expect: "invalid"},
			{MealType: "lunch", Candidate: model.Candidate{Name: "Air"}, Expect: "invalid"},
		},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 0 {
		t.Errorf("expected invalid inputs to match, got %+v", result.Cases)
	}
}

func TestUnknownProfileFailsCase(t *testing.T) {
	s := &Scenario{
		Name:    "missing profile",
		Profile: "no-such-profile",
		Cases:   []Case{{MealType: "lunch", Candidate: bowl(20, 5), Expect: "accepted"}},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", result.Failed)
	}
	if result.Cases[0].Actual != "error" {
		t.Errorf("actual: got %s", result.Cases[0].Actual)
	}
}

func TestStrictScenario(t *testing.T) {
	c := bowl(70, 5)
	sub := bowl(30, 9, "grilled chicken", "honey glaze")
	sub.Name = "Honey glazed bowl"
	c.Variants = &model.Variants{LowerConstraint: &sub}

	trusting := Run(&Scenario{
		Name:    "trusting",
		Profile: "type2-diabetes",
		Cases:   []Case{{MealType: "lunch", Candidate: c, Expect: "substituted", Warnings: []string{model.WarnSubstituteUnverified}}},
	}, policy.DefaultConfig())
	if trusting.Failed != 0 {
		t.Errorf("expected trusted substitution, got %+v", trusting.Cases)
	}

	strict := Run(&Scenario{
		Name:    "strict",
		Profile: "type2-diabetes",
		Strict:  true,
		Cases:   []Case{{MealType: "lunch", Candidate: c, Expect: "rejected"}},
	}, policy.DefaultConfig())
	if strict.Failed != 0 {
		t.Errorf("expected strict rejection, got %+v", strict.Cases)
	}
}

func TestEmptyCasesList(t *testing.T) {
	s := &Scenario{
		Name:  "empty",
		Cases: []Case{},
	}

	result := Run(s, policy.DefaultConfig())
	if result.Total != 0 {
		t.Errorf("expected 0 total, got %d", result.Total)
	}
	if result.Failed != 0 {
		t.Errorf("expected 0 failed, got %d", result.Failed)
	}
}

func TestCaseResultFieldsPopulated(t *testing.T) {
	s := &Scenario{
		Name:    "fields check",
		Profile: "type2-diabetes",
		Cases:   []Case{{MealType: "lunch", Candidate: bowl(70, 5), Expect: "rejected"}},
	}

	result := Run(s, policy.DefaultConfig())
	if len(result.Cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(result.Cases))
	}
	c := result.Cases[0]
	if c.Index != 1 {
		t.Errorf("index: got %d", c.Index)
	}
	if c.Meal != "Chicken zoodle bowl" {
		t.Errorf("meal: got %s", c.Meal)
	}
	if c.MealType != "lunch" {
		t.Errorf("meal type: got %s", c.MealType)
	}
	if c.Actual != "rejected" {
		t.Errorf("actual: got %s", c.Actual)
	}
	if c.NetCarbs == nil || *c.NetCarbs != 65 {
		t.Errorf("net carbs: got %v", c.NetCarbs)
	}
	if !c.Passed {
		t.Error("expected passed=true")
	}
	if c.Reason == "" {
		t.Error("reason should not be empty")
	}
}

// --- Files ---

func TestLoadAndRunFromFile(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "test.yaml", `
name: "file test"
profile: type2-diabetes
cases:
  - meal_type: lunch
    candidate:
      name: Salmon salad
      ingredients: [salmon, spinach, {name: olive oil, amount: 1, unit: tbsp}]
      nutrition: {calories: 420, protein: 32, carbs: 38, fiber: 8, fat: 20}
    expect: accepted
  - meal_type: lunch
    candidate:
      name: Pasta bake
      ingredients: [penne, cheese]
      nutrition: {calories: 700, protein: 25, carbs: 80, fiber: 4, fat: 25}
      variants:
        lower_constraint:
          name: Zucchini bake
          ingredients: [zucchini, cheese]
          nutrition: {calories: 400, protein: 22, carbs: 18, fiber: 6, fat: 24}
    expect: substituted
`)

	result, err := LoadAndRun(filepath.Join(dir, "test.yaml"), "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %d; cases: %+v", result.Failed, result.Cases)
	}
	if result.File != filepath.Join(dir, "test.yaml") {
		t.Errorf("expected file path set, got %q", result.File)
	}
}

func TestInvalidScenarioYAML(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "bad.yaml", ":::not yaml\x00")

	_, err := LoadAndRun(filepath.Join(dir, "bad.yaml"), "")
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestMultipleScenariosViaGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		writeScenario(t, dir, name, `
name: "scenario `+name+`"
cases:
  - meal_type: snack
    candidate: {name: Apple slices, ingredients: [apple, almond butter]}
    expect: accepted
`)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}

	var results []*RunResult
	for _, m := range matches {
		r, err := LoadAndRun(m, "")
		if err != nil {
			t.Fatal(err)
		}
		results = append(results, r)
	}

	totalPassed := 0
	for _, r := range results {
		totalPassed += r.Passed
	}
	if totalPassed != 2 {
		t.Errorf("expected 2 total passed across scenarios, got %d", totalPassed)
	}
}

// --- Format ---

func TestFormatText(t *testing.T) {
	results := []*RunResult{
		{Name: "good", Total: 1, Passed: 1},
		{Name: "bad", Total: 1, Failed: 1, Cases: []CaseResult{
			{Index: 1, Meal: "Pasta bake", MealType: "lunch", Expected: "accepted", Actual: "rejected", Reason: "CARBS_EXCEED_CAP"},
		}},
	}

	out := FormatText(results)
	for _, want := range []string{
		"Checking 2 scenario files",
		"PASS  good (1/1)",
		"FAIL  bad (0/1)",
		"expected accepted, got rejected",
		"1 of 2 cases passed. 1 of 2 scenarios failed.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	out, err := FormatJSON([]*RunResult{{Name: "one", Total: 1, Passed: 1}})
	if err != nil {
		t.Fatal(err)
	}
	var decoded []RunResult
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Name != "one" {
		t.Errorf("unexpected decode: %+v", decoded)
	}
}
