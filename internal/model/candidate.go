package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidationError reports malformed input at the boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Message)
}

// Ingredient is the normalized ingredient shape. Generators send either a bare
// string or an object; both decode into this type.
type Ingredient struct {
	Name   string   `json:"name" yaml:"name"`
	Amount *float64 `json:"amount,omitempty" yaml:"amount,omitempty"`
	Unit   string   `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// UnmarshalJSON accepts "name" or {"name": ..., "amount": ..., "unit": ...}.
func (i *Ingredient) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*i = Ingredient{Name: name}
		return nil
	}

	type plain Ingredient
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("ingredient must be a string or object: %w", err)
	}
	*i = Ingredient(p)
	return nil
}

// UnmarshalYAML accepts the same two shapes as UnmarshalJSON.
func (i *Ingredient) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*i = Ingredient{Name: value.Value}
		return nil
	}
	type plain Ingredient
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*i = Ingredient(p)
	return nil
}

// Nutrition holds per-serving nutrition facts in grams (calories in kcal).
type Nutrition struct {
	Calories      float64  `json:"calories" yaml:"calories"`
	Protein       float64  `json:"protein" yaml:"protein"`
	Carbs         float64  `json:"carbs" yaml:"carbs"`
	Fiber         float64  `json:"fiber" yaml:"fiber"`
	Fat           float64  `json:"fat" yaml:"fat"`
	NetCarbs      *float64 `json:"net_carbs,omitempty" yaml:"net_carbs,omitempty"`
	GlycemicIndex *float64 `json:"glycemic_index,omitempty" yaml:"glycemic_index,omitempty"`
}

// Net returns explicit net carbs when given, else carbs minus fiber, never
// negative.
func (n *Nutrition) Net() float64 {
	if n.NetCarbs != nil {
		if *n.NetCarbs < 0 {
			return 0
		}
		return *n.NetCarbs
	}
	if v := n.Carbs - n.Fiber; v > 0 {
		return v
	}
	return 0
}

// Variants carries alternatives precomputed by the generator.
type Variants struct {
	LowerConstraint *Candidate `json:"lower_constraint,omitempty" yaml:"lower_constraint,omitempty"`
}

// Candidate is one generated meal proposed for evaluation.
type Candidate struct {
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	Ingredients []Ingredient `json:"ingredients" yaml:"ingredients"`
	Nutrition   *Nutrition   `json:"nutrition,omitempty" yaml:"nutrition,omitempty"`
	Flags       []string     `json:"flags,omitempty" yaml:"flags,omitempty"`
	Tags        []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	Variants    *Variants    `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// Validate checks the required candidate fields.
func (c *Candidate) Validate() error {
	if c == nil {
		return &ValidationError{Field: "candidate", Message: "is required"}
	}
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "candidate.name", Message: "is required"}
	}
	if len(c.Ingredients) == 0 {
		return &ValidationError{Field: "candidate.ingredients", Message: "must not be empty"}
	}
	for i, ing := range c.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return &ValidationError{Field: fmt.Sprintf("candidate.ingredients[%d].name", i), Message: "is required"}
		}
	}
	if n := c.Nutrition; n != nil {
		if n.Carbs < 0 || n.Fiber < 0 || n.Calories < 0 || n.Protein < 0 || n.Fat < 0 {
			return &ValidationError{Field: "candidate.nutrition", Message: "values must not be negative"}
		}
	}
	return nil
}

// HasFlag reports whether the candidate carries flag (case-insensitive).
func (c *Candidate) HasFlag(flag string) bool {
	for _, f := range c.Flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

// LowerConstraint returns the generator's fallback variant, or nil.
func (c *Candidate) LowerConstraint() *Candidate {
	if c.Variants == nil {
		return nil
	}
	return c.Variants.LowerConstraint
}

// SearchText returns every string the validator scans: ingredient names,
// then name and description.
func (c *Candidate) SearchText() []string {
	texts := make([]string, 0, len(c.Ingredients)+2)
	for _, ing := range c.Ingredients {
		if ing.Name != "" {
			texts = append(texts, ing.Name)
		}
	}
	if c.Name != "" {
		texts = append(texts, c.Name)
	}
	if c.Description != "" {
		texts = append(texts, c.Description)
	}
	return texts
}
