package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/terms"
)

// Profile is a named condition profile: a condition, guardrail overrides and
// optional additions to the condition's term tables.
type Profile struct {
	Name           string              `yaml:"name" json:"name"`
	Description    string              `yaml:"description" json:"description"`
	Condition      model.Condition     `yaml:"condition" json:"condition"`
	Overrides      *model.Guardrails   `yaml:"overrides,omitempty" json:"overrides,omitempty"`
	ExtraBlocked   []terms.Term        `yaml:"extra_blocked,omitempty" json:"extra_blocked,omitempty"`
	ExtraPreferred map[string][]string `yaml:"extra_preferred,omitempty" json:"extra_preferred,omitempty"`
}

// ToCondition returns the engine input for this profile.
func (p *Profile) ToCondition() model.ConditionProfile {
	return model.ConditionProfile{Condition: p.Condition, Overrides: p.Overrides}
}

// Dir returns the user profile directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mealguard", "profiles"), nil
}

// Load loads a profile by name. Checks built-in profiles first,
// then falls back to ~/.mealguard/profiles/<name>.yaml.
func Load(name string) (*Profile, error) {
	if data, ok := builtinProfiles[name]; ok {
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in profile %q: %w", name, err)
		}
		return p, nil
	}

	dir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("profile %q not found (no built-in, cannot determine home dir)", name)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("invalid profile name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile %q: %w", name, err)
	}
	return p, nil
}

// LoadFile loads a profile from an explicit path.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates profile YAML.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns sorted names of all available profiles (built-in + user).
func List() []string {
	seen := make(map[string]bool)
	for name := range builtinProfiles {
		seen[name] = true
	}

	if dir, err := Dir(); err == nil {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				name := e.Name()
				if ext := filepath.Ext(name); ext == ".yaml" || ext == ".yml" {
					seen[name[:len(name)-len(ext)]] = true
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin reports whether name is an embedded profile.
func IsBuiltin(name string) bool {
	_, ok := builtinProfiles[name]
	return ok
}

// Validate checks that a profile is well-formed.
func Validate(p *Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.Condition == model.ConditionUnresolved {
		return fmt.Errorf("profile %q: condition is required", p.Name)
	}

	if g := p.Overrides; g != nil {
		for field, v := range map[string]*float64{
			"fasting_min":   g.FastingMin,
			"fasting_max":   g.FastingMax,
			"post_meal_max": g.PostMealMax,
			"carb_limit":    g.CarbLimit,
			"fiber_min":     g.FiberMin,
			"glycemic_cap":  g.GlycemicCap,
		} {
			if v != nil && *v < 0 {
				return fmt.Errorf("overrides.%s must not be negative", field)
			}
		}
		if g.FastingMin != nil && g.FastingMax != nil && *g.FastingMin >= *g.FastingMax {
			return fmt.Errorf("overrides.fasting_min must be below fasting_max")
		}
		if g.StarchSlots != nil && *g.StarchSlots < 0 {
			return fmt.Errorf("overrides.starch_slots must not be negative")
		}
		if g.MealFrequency != nil && *g.MealFrequency < 1 {
			return fmt.Errorf("overrides.meal_frequency must be at least 1")
		}
	}

	for i, t := range p.ExtraBlocked {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("extra_blocked[%d]: term is required", i)
		}
	}
	return nil
}

// ApplyToPolicy merges the profile's extra terms into its condition's policy.
// Returns a new config; the input is not mutated.
func ApplyToPolicy(p *Profile, cfg *policy.Config) *policy.Config {
	if len(p.ExtraBlocked) == 0 && len(p.ExtraPreferred) == 0 {
		return cfg
	}

	merged := *cfg
	merged.Conditions = make(map[model.Condition]policy.ConditionPolicy, len(cfg.Conditions)+1)
	for k, v := range cfg.Conditions {
		merged.Conditions[k] = v
	}

	// Unknown conditions get their own entry seeded from the fallback.
	_, pol := cfg.Policy(p.Condition)

	pol.Blocked = append(append([]terms.Term(nil), pol.Blocked...), p.ExtraBlocked...)

	pref := make(map[string][]string, len(pol.Preferred)+len(p.ExtraPreferred))
	for k, v := range pol.Preferred {
		pref[k] = append([]string(nil), v...)
	}
	for k, v := range p.ExtraPreferred {
		pref[k] = append(pref[k], v...)
	}
	pol.Preferred = pref

	merged.Conditions[p.Condition] = pol
	return &merged
}
