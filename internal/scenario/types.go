package scenario

import "github.com/ppiankov/mealguard/internal/model"

// Case is one generated meal with its expected enforcement outcome.
type Case struct {
	Name      string          `yaml:"name,omitempty"`
	Profile   string          `yaml:"profile,omitempty"` // overrides the scenario profile
	MealType  string          `yaml:"meal_type"`
	Candidate model.Candidate `yaml:"candidate"`
	Expect    string          `yaml:"expect"`              // accepted, substituted, rejected or invalid
	Violation string          `yaml:"violation,omitempty"` // expected violation code when rejected
	Warnings  []string        `yaml:"warnings,omitempty"`  // warning codes that must be present
}

// Scenario is a named collection of enforcement test cases.
type Scenario struct {
	Name    string `yaml:"name"`
	Profile string `yaml:"profile,omitempty"`
	Strict  bool   `yaml:"strict,omitempty"`
	Cases   []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index      int      `json:"index"`
	Passed     bool     `json:"passed"`
	Meal       string   `json:"meal"`
	MealType   string   `json:"meal_type"`
	Profile    string   `json:"profile"`
	Expected   string   `json:"expected"`
	Actual     string   `json:"actual"`
	NetCarbs   *float64 `json:"net_carbs,omitempty"`
	Violations []string `json:"violations,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Reason     string   `json:"reason"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
