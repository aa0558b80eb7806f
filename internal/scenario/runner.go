package scenario

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/mealguard/internal/enforce"
	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/profile"
	"github.com/ppiankov/mealguard/internal/validate"
)

// ExpectInvalid matches cases whose input is rejected before enforcement.
const ExpectInvalid = "invalid"

// DefaultProfile is used when neither the scenario nor the case names one.
const DefaultProfile = "general"

// Run evaluates all cases in a scenario against the given policy tables.
// Each case derives its own constraint set (cases are independent).
func Run(s *Scenario, cfg *policy.Config) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
		Cases: make([]CaseResult, 0, len(s.Cases)),
	}

	for i, c := range s.Cases {
		cr := runCase(c, s, cfg)
		cr.Index = i + 1
		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

func runCase(c Case, s *Scenario, cfg *policy.Config) CaseResult {
	name := c.Profile
	if name == "" {
		name = s.Profile
	}
	if name == "" {
		name = DefaultProfile
	}

	cr := CaseResult{
		Meal:     c.Candidate.Name,
		MealType: c.MealType,
		Profile:  name,
		Expected: strings.ToLower(strings.TrimSpace(c.Expect)),
	}

	p, err := profile.Load(name)
	if err != nil {
		cr.Actual = "error"
		cr.Reason = err.Error()
		return cr
	}
	merged := profile.ApplyToPolicy(p, cfg)
	cs := merged.Derive(p.ToCondition())

	e := &enforce.Enforcer{Validator: validate.New(merged), Strict: s.Strict}
	candidate := c.Candidate
	res, err := e.Check(&candidate, cs, c.MealType)
	if err != nil {
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			cr.Actual = "error"
			cr.Reason = err.Error()
			return cr
		}
		cr.Actual = ExpectInvalid
		cr.Reason = ve.Error()
		cr.Passed = cr.Expected == ExpectInvalid
		return cr
	}

	cr.Actual = string(res.Outcome)
	cr.NetCarbs = res.NetCarbs
	cr.Violations = res.Violations
	cr.Warnings = res.Warnings
	cr.Reason = reason(res)
	cr.Passed = cr.Actual == cr.Expected &&
		matchesViolation(res.Violations, c.Violation) &&
		hasWarnings(res.Warnings, c.Warnings)
	return cr
}

func reason(res model.EvaluationResult) string {
	switch {
	case len(res.Violations) > 0:
		return strings.Join(res.Violations, ", ")
	case res.Outcome == model.Substituted:
		return "replaced by " + res.Candidate.Name
	case len(res.Warnings) > 0:
		return "accepted with warnings: " + strings.Join(res.Warnings, ", ")
	default:
		return "within constraints"
	}
}

func matchesViolation(violations []string, want string) bool {
	if want == "" {
		return true
	}
	for _, v := range violations {
		if strings.EqualFold(model.ViolationCode(v), want) || strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func hasWarnings(got, want []string) bool {
	for _, w := range want {
		if !slices.ContainsFunc(got, func(g string) bool { return strings.EqualFold(g, w) }) {
			return false
		}
	}
	return true
}

// Load parses a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return &s, nil
}

// LoadAndRun loads a scenario YAML file and the policy tables, and runs.
func LoadAndRun(path, policyPath string) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	result := Run(s, cfg)
	result.File = path

	return result, nil
}
