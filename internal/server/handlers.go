package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/mealguard/internal/decision"
	"github.com/ppiankov/mealguard/internal/enforce"
	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/profile"
	"github.com/ppiankov/mealguard/internal/quota"
	"github.com/ppiankov/mealguard/internal/signal"
	"github.com/ppiankov/mealguard/internal/validate"
)

// profileInput selects the constraint set for a request. The first present
// field wins: constraints, profile_name, profile.
type profileInput struct {
	Constraints *model.ConstraintSet    `json:"constraints,omitempty"`
	ProfileName string                  `json:"profile_name,omitempty"`
	Profile     *model.ConditionProfile `json:"profile,omitempty"`
}

func (in profileInput) empty() bool {
	return in.Constraints == nil && in.ProfileName == "" && in.Profile == nil
}

// resolve returns the constraint set and the policy tables its term lookups
// should use.
func (in profileInput) resolve(cfg *policy.Config) (model.ConstraintSet, *policy.Config, error) {
	switch {
	case in.Constraints != nil:
		if err := checkConstraints(*in.Constraints); err != nil {
			return model.ConstraintSet{}, nil, err
		}
		return *in.Constraints, cfg, nil
	case in.ProfileName != "":
		p, err := profile.Load(in.ProfileName)
		if err != nil {
			return model.ConstraintSet{}, nil, &model.ValidationError{Field: "profile_name", Message: err.Error()}
		}
		merged := profile.ApplyToPolicy(p, cfg)
		return merged.Derive(p.ToCondition()), merged, nil
	case in.Profile != nil:
		return cfg.Derive(*in.Profile), cfg, nil
	default:
		return model.ConstraintSet{}, nil, &model.ValidationError{Field: "profile", Message: "profile, profile_name or constraints is required"}
	}
}

// checkConstraints enforces the ConstraintSet invariant on caller-supplied sets.
func checkConstraints(cs model.ConstraintSet) error {
	for _, mt := range model.MealTypes {
		r, ok := cs.CarbRanges[mt]
		if !ok {
			return &model.ValidationError{Field: "constraints.carb_ranges", Message: fmt.Sprintf("missing %s", mt)}
		}
		if r.Min < 0 || r.Min > r.Max {
			return &model.ValidationError{Field: "constraints.carb_ranges", Message: fmt.Sprintf("%s range %.0f-%.0f is invalid", mt, r.Min, r.Max)}
		}
	}
	return nil
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "policy_hash": s.PolicyHash()})
}

// --- Classify ---

type classifyRequest struct {
	Reading *model.Reading `json:"reading"`
	Now     *time.Time     `json:"now,omitempty"`
	Context string         `json:"context,omitempty"`
	profileInput
}

type classifyResponse struct {
	State          model.State `json:"state"`
	Label          string      `json:"label"`
	Stale          bool        `json:"stale"`
	NeedsAttention bool        `json:"needs_attention"`
}

func classified(st model.State) classifyResponse {
	return classifyResponse{
		State:          st,
		Label:          signal.Label(st),
		Stale:          st == model.StateStale,
		NeedsAttention: signal.NeedsAttention(st),
	}
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decode(w, r, &req) {
		return
	}

	now := s.now()
	if req.Now != nil {
		now = *req.Now
	}
	rc := model.ParseReadingContext(req.Context)

	th := signal.ThresholdsFor(rc)
	if !req.profileInput.empty() {
		cs, _, err := req.profileInput.resolve(s.snapshot())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		th = signal.ThresholdsFromGuardrails(cs.Guardrails, rc)
	}

	writeJSON(w, http.StatusOK, classified(signal.ClassifyWith(req.Reading, now, th)))
}

// --- Constraints ---

func (s *Server) handleConstraints(w http.ResponseWriter, r *http.Request) {
	var req profileInput
	if !decode(w, r, &req) {
		return
	}
	req.Constraints = nil
	cs, _, err := req.resolve(s.snapshot())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// --- Validate ---

type candidateRequest struct {
	Candidate *model.Candidate `json:"candidate"`
	MealType  string           `json:"meal_type"`
	profileInput
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req candidateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Candidate.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	var mt model.MealType
	if req.MealType != "" {
		var err error
		if mt, err = model.ParseMealType(req.MealType); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	cs, cfg, err := req.profileInput.resolve(s.snapshot())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validate.New(cfg).ValidateMeal(*req.Candidate, cs, mt))
}

// --- Enforce ---

type rejectionBody struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations"`
	Warnings   []string `json:"warnings"`
	NetCarbs   *float64 `json:"net_carbs,omitempty"`
}

func (s *Server) handleEnforce(w http.ResponseWriter, r *http.Request) {
	var req candidateRequest
	if !decode(w, r, &req) {
		return
	}
	cs, cfg, err := req.profileInput.resolve(s.snapshot())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.enforcer(cfg).Check(req.Candidate, cs, req.MealType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, res)
}

func writeResult(w http.ResponseWriter, res model.EvaluationResult) {
	if rej, ok := enforce.AsError(res).(*enforce.RejectionError); ok {
		writeJSON(w, http.StatusUnprocessableEntity, rejectionBody{
			Error:      rej.Code(),
			Violations: res.Violations,
			Warnings:   res.Warnings,
			NetCarbs:   res.NetCarbs,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Quota ---

type quotaCheckRequest struct {
	Key         string           `json:"key,omitempty"`
	UserID      string           `json:"user_id,omitempty"`
	Request     *quota.Request   `json:"request,omitempty"`
	Candidate   *model.Candidate `json:"candidate,omitempty"`
	History     []quota.Item     `json:"history"`
	MaxSlots    *int             `json:"max_slots,omitempty"`
	PeriodStart *time.Time       `json:"period_start,omitempty"`
	profileInput
}

type quotaResponse struct {
	Key string `json:"key"`
	quota.Result
}

// quotaRequest picks the explicit request or derives one from the candidate.
func quotaRequest(req *quota.Request, c *model.Candidate) (quota.Request, error) {
	switch {
	case req != nil:
		if strings.TrimSpace(req.Name) == "" && len(req.Ingredients) == 0 && len(req.Categories) == 0 {
			return quota.Request{}, &model.ValidationError{Field: "request", Message: "needs a name, ingredients or categories"}
		}
		return *req, nil
	case c != nil:
		if err := c.Validate(); err != nil {
			return quota.Request{}, err
		}
		return quota.RequestFromCandidate(*c), nil
	default:
		return quota.Request{}, &model.ValidationError{Field: "request", Message: "request or candidate is required"}
	}
}

func (s *Server) handleQuotaCheck(w http.ResponseWriter, r *http.Request) {
	var req quotaCheckRequest
	if !decode(w, r, &req) {
		return
	}
	qr, err := quotaRequest(req.Request, req.Candidate)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	cfg := s.snapshot()
	g := cfg.SystemDefaults
	if !req.profileInput.empty() {
		cs, _, err := req.profileInput.resolve(cfg)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		g = cs.Guardrails
	}
	if req.MaxSlots != nil {
		if *req.MaxSlots < 0 {
			s.fail(w, r, &model.ValidationError{Field: "max_slots", Message: "must not be negative"})
			return
		}
		g.StarchSlots = *req.MaxSlots
	}

	periodStart := quota.DayStart(s.now(), s.cfg.Location)
	if req.PeriodStart != nil {
		periodStart = *req.PeriodStart
	}
	budget := quota.StarchBudget(cfg, g, periodStart)

	key := req.Key
	if key == "" {
		key = quota.Key(req.UserID, periodStart, budget.Category)
	}

	res, err := s.checkQuota(key, qr, req.History, budget)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotaResponse{Key: key, Result: res})
}

type decideRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req decideRequest
	if !decode(w, r, &req) {
		return
	}
	choice, err := decision.ParseChoice(req.Decision)
	if err != nil {
		s.fail(w, r, &model.ValidationError{Field: "decision", Message: err.Error()})
		return
	}
	if err := s.decisions.Resolve(key, choice); err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.decisions.Get(key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	var (
		list []decision.Decision
		err  error
	)
	switch r.URL.Query().Get("status") {
	case "", "all":
		list, err = s.decisions.List()
	case string(decision.StatusPending):
		list, err = s.decisions.ListPending()
	default:
		s.fail(w, r, &model.ValidationError{Field: "status", Message: "must be pending or all"})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []decision.Decision{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": list})
}
