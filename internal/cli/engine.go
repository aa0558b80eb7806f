package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/profile"
)

// constraintsFor loads the policy tables and derives the constraint set for
// a profile. An empty profile name uses the general condition.
func constraintsFor(policyPath, profileName string) (model.ConstraintSet, *policy.Config, error) {
	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return model.ConstraintSet{}, nil, fmt.Errorf("failed to load policy: %w", err)
	}
	if profileName == "" {
		return cfg.Derive(model.ConditionProfile{Condition: model.ConditionGeneral}), cfg, nil
	}
	p, err := profile.Load(profileName)
	if err != nil {
		return model.ConstraintSet{}, nil, fmt.Errorf("failed to load profile %q: %w", profileName, err)
	}
	merged := profile.ApplyToPolicy(p, cfg)
	return merged.Derive(p.ToCondition()), merged, nil
}

// readInput reads a YAML or JSON document from path, or stdin for "" and "-".
func readInput(path string, v any) error {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse JSON: %w", err)
		}
		return nil
	}
	// YAML is a superset of JSON, so stdin input may be either.
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
