package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/terms"
)

// ConditionPolicy is the static dietary heuristic for one condition.
type ConditionPolicy struct {
	Description     string                             `yaml:"description,omitempty"`
	CarbRanges      map[model.MealType]model.CarbRange `yaml:"carb_ranges"`
	GlycemicCeiling bool                               `yaml:"glycemic_ceiling"`
	Guardrails      *model.Guardrails                  `yaml:"guardrails,omitempty"`
	Blocked         []terms.Term                       `yaml:"blocked,omitempty"`
	Preferred       map[string][]string                `yaml:"preferred,omitempty"`
	CarbWarnRatio   float64                            `yaml:"carb_warn_ratio,omitempty"`
	CalorieWarn     float64                            `yaml:"calorie_warn,omitempty"`
}

// Config holds every condition table plus system-wide defaults.
type Config struct {
	SystemDefaults model.ResolvedGuardrails            `yaml:"system_defaults"`
	Fallback       model.Condition                     `yaml:"fallback"`
	Conditions     map[model.Condition]ConditionPolicy `yaml:"conditions"`
	StarchTerms    []terms.Term                        `yaml:"starch_terms"`
}

// LoadConfig loads policy tables from a YAML file.
// Empty path falls back to ~/.mealguard/policy.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
//
// A condition present in the file replaces the built-in entry for that
// condition; conditions absent from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads policy tables and returns the SHA-256 of the raw
// file bytes. When no file exists the hash is of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DefaultConfig(), hashBytes(nil), nil
		}
		path = filepath.Join(home, ".mealguard", "policy.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), hashBytes(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read policy config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse policy config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid policy config: %w", err)
	}

	return cfg, hashBytes(data), nil
}

// Validate checks table invariants: non-negative ranges with min <= max and
// a fallback condition that exists.
func (c *Config) Validate() error {
	if len(c.Conditions) == 0 {
		return fmt.Errorf("no conditions defined")
	}
	if _, ok := c.Conditions[c.Fallback]; !ok {
		return fmt.Errorf("fallback condition %q is not defined", c.Fallback)
	}
	for _, name := range c.ConditionNames() {
		pol := c.Conditions[name]
		for mt, r := range pol.CarbRanges {
			if r.Min < 0 || r.Max < 0 {
				return fmt.Errorf("conditions.%s.carb_ranges.%s: negative bound", name, mt)
			}
			if r.Min > r.Max {
				return fmt.Errorf("conditions.%s.carb_ranges.%s: min %.0f > max %.0f", name, mt, r.Min, r.Max)
			}
		}
		if pol.CarbWarnRatio < 0 || pol.CarbWarnRatio > 1 {
			return fmt.Errorf("conditions.%s.carb_warn_ratio must be within [0,1]", name)
		}
		for i, t := range pol.Blocked {
			if t.Name == "" {
				return fmt.Errorf("conditions.%s.blocked[%d]: term is required", name, i)
			}
		}
	}
	return nil
}

// ConditionNames returns the configured conditions, sorted.
func (c *Config) ConditionNames() []model.Condition {
	names := make([]model.Condition, 0, len(c.Conditions))
	for name := range c.Conditions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Policy resolves a condition to its table entry. Unknown conditions resolve
// to the fallback; a missing fallback resolves to a permissive policy.
func (c *Config) Policy(cond model.Condition) (model.Condition, ConditionPolicy) {
	if pol, ok := c.Conditions[cond]; ok {
		return cond, pol
	}
	if pol, ok := c.Conditions[c.Fallback]; ok {
		return c.Fallback, pol
	}
	return model.ConditionGeneral, permissivePolicy()
}

// TermIndex returns every blocked term across all conditions keyed by its
// lower-cased name. Aliases and safe variants are merged when two conditions
// declare the same term.
func (c *Config) TermIndex() map[string]terms.Term {
	idx := make(map[string]terms.Term)
	for _, name := range c.ConditionNames() {
		for _, t := range c.Conditions[name].Blocked {
			key := normalize(t.Name)
			prev, ok := idx[key]
			if !ok {
				idx[key] = terms.Term{
					Name:         key,
					Aliases:      append([]string(nil), t.Aliases...),
					SafeVariants: append([]string(nil), t.SafeVariants...),
				}
				continue
			}
			prev.Aliases = mergeUnique(prev.Aliases, t.Aliases)
			prev.SafeVariants = mergeUnique(prev.SafeVariants, t.SafeVariants)
			idx[key] = prev
		}
	}
	return idx
}

// DefaultConfigYAML renders the built-in tables as a commented YAML document
// for init-policy.
func DefaultConfigYAML() (string, error) {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("marshal default policy: %w", err)
	}
	header := `# mealguard policy tables
# Generated by: mealguard init-policy
#
# Evaluation order (cannot be changed):
#   1. Net-carb cap per meal type -> substitute or reject
#   2. Glycemic ceiling -> reject HIGH_GI candidates
#   3. Blocked ingredients (with per-term safe variants) -> reject
#   4. Preferred categories and nutrition soft limits -> warnings only
#
# A condition listed here replaces the built-in entry for that condition.
# Add a new condition by adding a key under "conditions".

`
	return header + string(data), nil
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		k := normalize(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
