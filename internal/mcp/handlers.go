package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ppiankov/mealguard/internal/decision"
	"github.com/ppiankov/mealguard/internal/enforce"
	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/quota"
	"github.com/ppiankov/mealguard/internal/signal"
)

// --- Input/Output types ---

// Meal is the tool-facing shape of a generated meal.
type Meal struct {
	Name        string           `json:"name" jsonschema:"meal name"`
	Description string           `json:"description,omitempty" jsonschema:"short description"`
	Ingredients []string         `json:"ingredients" jsonschema:"ingredient names"`
	Nutrition   *model.Nutrition `json:"nutrition,omitempty" jsonschema:"per-serving nutrition in grams and kcal"`
	Flags       []string         `json:"flags,omitempty" jsonschema:"generator flags such as HIGH_GI"`
	Tags        []string         `json:"tags,omitempty" jsonschema:"display tags"`
}

// CandidateInput is a meal plus its optional lower-constraint variant.
type CandidateInput struct {
	Name            string           `json:"name" jsonschema:"meal name"`
	Description     string           `json:"description,omitempty" jsonschema:"short description"`
	Ingredients     []string         `json:"ingredients" jsonschema:"ingredient names"`
	Nutrition       *model.Nutrition `json:"nutrition,omitempty" jsonschema:"per-serving nutrition in grams and kcal"`
	Flags           []string         `json:"flags,omitempty" jsonschema:"generator flags such as HIGH_GI"`
	Tags            []string         `json:"tags,omitempty" jsonschema:"display tags"`
	LowerConstraint *Meal            `json:"lower_constraint,omitempty" jsonschema:"precomputed lower-carb variant used when the meal is over its carb cap"`
}

func (m *Meal) candidate() *model.Candidate {
	c := &model.Candidate{
		Name:        m.Name,
		Description: m.Description,
		Nutrition:   m.Nutrition,
		Flags:       m.Flags,
		Tags:        m.Tags,
	}
	for _, name := range m.Ingredients {
		c.Ingredients = append(c.Ingredients, model.Ingredient{Name: name})
	}
	return c
}

func (in CandidateInput) candidate() *model.Candidate {
	base := Meal{
		Name:        in.Name,
		Description: in.Description,
		Ingredients: in.Ingredients,
		Nutrition:   in.Nutrition,
		Flags:       in.Flags,
		Tags:        in.Tags,
	}
	c := base.candidate()
	if in.LowerConstraint != nil {
		c.Variants = &model.Variants{LowerConstraint: in.LowerConstraint.candidate()}
	}
	return c
}

func mealFrom(c *model.Candidate) *Meal {
	if c == nil {
		return nil
	}
	m := &Meal{
		Name:        c.Name,
		Description: c.Description,
		Ingredients: make([]string, 0, len(c.Ingredients)),
		Nutrition:   c.Nutrition,
		Flags:       c.Flags,
		Tags:        c.Tags,
	}
	for _, ing := range c.Ingredients {
		m.Ingredients = append(m.Ingredients, ing.Name)
	}
	return m
}

// ClassifyInput defines parameters for the mealguard_classify tool.
type ClassifyInput struct {
	Value      *float64 `json:"value,omitempty" jsonschema:"glucose reading in mg/dL, omit when there is no reading"`
	RecordedAt string   `json:"recorded_at,omitempty" jsonschema:"RFC 3339 time of the reading, defaults to now"`
	MinutesAgo *float64 `json:"minutes_ago,omitempty" jsonschema:"age of the reading in minutes, alternative to recorded_at"`
	Context    string   `json:"context,omitempty" jsonschema:"reading context (any/fasting/pre_meal/post_meal)"`
	Profile    string   `json:"profile,omitempty" jsonschema:"condition profile whose guardrails set the thresholds"`
}

// ClassifyOutput contains the classified state.
type ClassifyOutput struct {
	State          string `json:"state"`
	Label          string `json:"label"`
	Stale          bool   `json:"stale"`
	NeedsAttention bool   `json:"needs_attention"`
}

// ConstraintsInput defines parameters for the mealguard_constraints tool.
type ConstraintsInput struct {
	Profile   string            `json:"profile,omitempty" jsonschema:"profile name (type2-diabetes/type1-diabetes/prediabetes/gestational/pcos/general or a user profile)"`
	Condition string            `json:"condition,omitempty" jsonschema:"condition to derive from directly, ignores profile"`
	Overrides *model.Guardrails `json:"overrides,omitempty" jsonschema:"guardrail overrides applied with condition"`
}

// ConstraintsOutput contains the derived constraint set.
type ConstraintsOutput struct {
	Profile     string              `json:"profile,omitempty"`
	Constraints model.ConstraintSet `json:"constraints"`
}

// EnforceInput defines parameters for the mealguard_enforce tool.
type EnforceInput struct {
	Candidate CandidateInput `json:"candidate" jsonschema:"generated meal to evaluate"`
	MealType  string         `json:"meal_type" jsonschema:"meal slot (breakfast/lunch/dinner/snack)"`
	Profile   string         `json:"profile,omitempty" jsonschema:"condition profile, defaults to the server profile"`
}

// EnforceOutput contains the enforcement outcome.
type EnforceOutput struct {
	Outcome    string   `json:"outcome"`
	Code       string   `json:"code,omitempty"`
	Meal       *Meal    `json:"meal,omitempty"`
	NetCarbs   *float64 `json:"net_carbs,omitempty"`
	Violations []string `json:"violations"`
	Warnings   []string `json:"warnings"`
	Tags       []string `json:"tags,omitempty"`
}

// HistoryItem is one meal already served in the period.
type HistoryItem struct {
	Name        string   `json:"name" jsonschema:"meal name"`
	Ingredients []string `json:"ingredients,omitempty" jsonschema:"ingredient names"`
	Categories  []string `json:"categories,omitempty" jsonschema:"explicit category tags such as starchy"`
	CommittedAt string   `json:"committed_at,omitempty" jsonschema:"RFC 3339 time the meal was served, today when omitted"`
}

// QuotaCheckInput defines parameters for the mealguard_quota_check tool.
type QuotaCheckInput struct {
	UserID      string        `json:"user_id,omitempty" jsonschema:"user the budget belongs to"`
	Key         string        `json:"key,omitempty" jsonschema:"decision key, derived from user_id and today when omitted"`
	Name        string        `json:"name" jsonschema:"name of the meal about to be served"`
	Description string        `json:"description,omitempty" jsonschema:"meal description"`
	Ingredients []string      `json:"ingredients,omitempty" jsonschema:"ingredient names"`
	Categories  []string      `json:"categories,omitempty" jsonschema:"explicit category tags"`
	History     []HistoryItem `json:"history,omitempty" jsonschema:"meals already served today; loaded from storage when omitted and user_id is set"`
	Profile     string        `json:"profile,omitempty" jsonschema:"condition profile supplying the starch slot count"`
	MaxSlots    *int          `json:"max_slots,omitempty" jsonschema:"explicit slot limit, overrides the profile"`
}

// QuotaCheckOutput contains the three-way quota result.
type QuotaCheckOutput struct {
	Key              string   `json:"key"`
	Allowed          bool     `json:"allowed"`
	RequiresDecision bool     `json:"requires_decision"`
	Resolution       string   `json:"resolution,omitempty"`
	MatchedTerms     []string `json:"matched_terms,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	SlotsUsed        int      `json:"slots_used"`
	SlotsMax         int      `json:"slots_max"`
	Remaining        int      `json:"remaining"`
}

// DecideInput defines parameters for the mealguard_decide tool.
type DecideInput struct {
	Key      string `json:"key" jsonschema:"decision key from a blocked quota check"`
	Decision string `json:"decision" jsonschema:"override or reroute"`
}

// DecideOutput confirms the decision.
type DecideOutput struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Round  int    `json:"round"`
}

// PendingInput takes no parameters.
type PendingInput struct{}

// PendingOutput lists all pending decisions.
type PendingOutput struct {
	Decisions []PendingItem `json:"decisions"`
}

// PendingItem describes a single pending decision.
type PendingItem struct {
	Key       string `json:"key"`
	Category  string `json:"category"`
	Reason    string `json:"reason"`
	SlotsUsed int    `json:"slots_used"`
	SlotsMax  int    `json:"slots_max"`
	Round     int    `json:"round"`
	CreatedAt string `json:"created_at"`
}

// --- Handlers ---

func (s *Server) handleClassify(ctx context.Context, req *mcpsdk.CallToolRequest, input ClassifyInput) (*mcpsdk.CallToolResult, ClassifyOutput, error) {
	now := s.now()
	rc := model.ParseReadingContext(input.Context)

	var reading *model.Reading
	if input.Value != nil {
		r := model.Reading{Value: *input.Value, RecordedAt: now}
		switch {
		case input.RecordedAt != "":
			t, err := time.Parse(time.RFC3339, input.RecordedAt)
			if err != nil {
				return nil, ClassifyOutput{}, fmt.Errorf("invalid recorded_at %q: %w", input.RecordedAt, err)
			}
			r.RecordedAt = t
		case input.MinutesAgo != nil:
			r.RecordedAt = now.Add(-time.Duration(*input.MinutesAgo * float64(time.Minute)))
		}
		reading = &r
	}

	th := signal.ThresholdsFor(rc)
	if input.Profile != "" || s.profileName != "" {
		cs, _, err := s.constraintsFor(input.Profile)
		if err != nil {
			return nil, ClassifyOutput{}, err
		}
		th = signal.ThresholdsFromGuardrails(cs.Guardrails, rc)
	}

	st := signal.ClassifyWith(reading, now, th)
	return nil, ClassifyOutput{
		State:          string(st),
		Label:          signal.Label(st),
		Stale:          st == model.StateStale,
		NeedsAttention: signal.NeedsAttention(st),
	}, nil
}

func (s *Server) handleConstraints(ctx context.Context, req *mcpsdk.CallToolRequest, input ConstraintsInput) (*mcpsdk.CallToolResult, ConstraintsOutput, error) {
	if input.Condition != "" {
		cs := s.policyCfg.Derive(model.ConditionProfile{
			Condition: model.Condition(input.Condition),
			Overrides: input.Overrides,
		})
		return nil, ConstraintsOutput{Constraints: cs}, nil
	}

	cs, _, err := s.constraintsFor(input.Profile)
	if err != nil {
		return nil, ConstraintsOutput{}, err
	}
	name := input.Profile
	if name == "" {
		name = s.profileName
	}
	return nil, ConstraintsOutput{Profile: name, Constraints: cs}, nil
}

func (s *Server) handleEnforce(ctx context.Context, req *mcpsdk.CallToolRequest, input EnforceInput) (*mcpsdk.CallToolResult, EnforceOutput, error) {
	cs, cfg, err := s.constraintsFor(input.Profile)
	if err != nil {
		return nil, EnforceOutput{}, err
	}

	res, err := s.enforcer(cfg).Check(input.Candidate.candidate(), cs, input.MealType)
	if err != nil {
		return nil, EnforceOutput{}, err
	}

	out := EnforceOutput{
		Outcome:    string(res.Outcome),
		Meal:       mealFrom(res.Candidate),
		NetCarbs:   res.NetCarbs,
		Violations: nonNil(res.Violations),
		Warnings:   nonNil(res.Warnings),
		Tags:       res.Tags,
	}
	var rej *enforce.RejectionError
	if errors.As(enforce.AsError(res), &rej) {
		out.Code = rej.Code()
		out.Meal = nil
		s.logger.Info("meal rejected",
			zap.String("meal", input.Candidate.Name),
			zap.String("meal_type", input.MealType),
			zap.Strings("violations", res.Violations),
		)
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleQuotaCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input QuotaCheckInput) (*mcpsdk.CallToolResult, QuotaCheckOutput, error) {
	qr := quota.Request{
		Name:        input.Name,
		Description: input.Description,
		Ingredients: input.Ingredients,
		Categories:  input.Categories,
	}
	if qr.Name == "" && len(qr.Ingredients) == 0 && len(qr.Categories) == 0 {
		return nil, QuotaCheckOutput{}, &model.ValidationError{Field: "name", Message: "name, ingredients or categories is required"}
	}

	cs, _, err := s.constraintsFor(input.Profile)
	if err != nil {
		return nil, QuotaCheckOutput{}, err
	}
	g := cs.Guardrails
	if input.MaxSlots != nil {
		if *input.MaxSlots < 0 {
			return nil, QuotaCheckOutput{}, &model.ValidationError{Field: "max_slots", Message: "must not be negative"}
		}
		g.StarchSlots = *input.MaxSlots
	}

	dayStart := quota.DayStart(s.now(), s.loc)
	history, err := s.history(ctx, input, dayStart)
	if err != nil {
		return nil, QuotaCheckOutput{}, err
	}

	budget := quota.StarchBudget(s.policyCfg, g, dayStart)
	key := input.Key
	if key == "" {
		key = quota.Key(input.UserID, dayStart, budget.Category)
	}

	s.mu.Lock()
	res, err := (&quota.Gate{Store: s.decisions}).Check(key, qr, history, budget)
	s.mu.Unlock()
	if err != nil {
		return nil, QuotaCheckOutput{}, err
	}

	out := QuotaCheckOutput{
		Key:              key,
		Allowed:          res.Allowed,
		RequiresDecision: res.RequiresDecision,
		Resolution:       string(res.Resolution),
		MatchedTerms:     res.MatchedTerms,
		Reason:           res.Reason,
		SlotsUsed:        res.State.SlotsUsed,
		SlotsMax:         res.State.SlotsMax,
		Remaining:        res.State.Remaining(),
	}
	if !res.Allowed {
		s.logger.Info("quota decision required", zap.String("key", key), zap.String("reason", res.Reason))
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

// history returns the caller's history, or the stored one for user_id.
func (s *Server) history(ctx context.Context, input QuotaCheckInput, since time.Time) ([]quota.Item, error) {
	if len(input.History) == 0 && input.UserID != "" && s.store != nil {
		items, err := s.store.History(ctx, input.UserID, since)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		return items, nil
	}

	items := make([]quota.Item, 0, len(input.History))
	for i, h := range input.History {
		var at time.Time
		if h.CommittedAt != "" {
			var err error
			at, err = time.Parse(time.RFC3339, h.CommittedAt)
			if err != nil {
				return nil, &model.ValidationError{Field: fmt.Sprintf("history[%d].committed_at", i), Message: "must be an RFC 3339 time"}
			}
		}
		items = append(items, quota.Item{
			Request: quota.Request{
				Name:        h.Name,
				Ingredients: h.Ingredients,
				Categories:  h.Categories,
			},
			CommittedAt: at,
		})
	}
	return items, nil
}

func (s *Server) handleDecide(ctx context.Context, req *mcpsdk.CallToolRequest, input DecideInput) (*mcpsdk.CallToolResult, DecideOutput, error) {
	choice, err := decision.ParseChoice(input.Decision)
	if err != nil {
		return nil, DecideOutput{}, err
	}
	if err := s.decisions.Resolve(input.Key, choice); err != nil {
		return nil, DecideOutput{}, err
	}
	d, err := s.decisions.Get(input.Key)
	if err != nil {
		return nil, DecideOutput{}, err
	}
	return nil, DecideOutput{Key: d.Key, Status: string(d.Status), Round: d.Round}, nil
}

func (s *Server) handlePending(ctx context.Context, req *mcpsdk.CallToolRequest, input PendingInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
	list, err := s.decisions.ListPending()
	if err != nil {
		return nil, PendingOutput{}, err
	}

	items := make([]PendingItem, 0, len(list))
	for _, d := range list {
		items = append(items, PendingItem{
			Key:       d.Key,
			Category:  d.Category,
			Reason:    d.Reason,
			SlotsUsed: d.SlotsUsed,
			SlotsMax:  d.SlotsMax,
			Round:     d.Round,
			CreatedAt: d.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil, PendingOutput{Decisions: items}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
