package server

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/profile"
	"github.com/ppiankov/mealguard/internal/quota"
	"github.com/ppiankov/mealguard/internal/signal"
	"github.com/ppiankov/mealguard/internal/storage"
)

func userID(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" || len(id) > 128 {
		return "", &model.ValidationError{Field: "id", Message: "must be 1-128 characters"}
	}
	return id, nil
}

// userConstraints derives the user's constraint set from their stored
// profile. A user without a profile gets the general policy.
func (s *Server) userConstraints(r *http.Request, id string) (model.ConstraintSet, *policy.Config, error) {
	cfg := s.snapshot()
	p, err := s.store.GetProfile(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return cfg.Derive(model.ConditionProfile{Condition: model.ConditionGeneral}), cfg, nil
	}
	if err != nil {
		return model.ConstraintSet{}, nil, err
	}
	merged := profile.ApplyToPolicy(p, cfg)
	return merged.Derive(p.ToCondition()), merged, nil
}

// --- Readings ---

type readingRequest struct {
	Value      float64    `json:"value"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
	Context    string     `json:"context,omitempty"`
}

func (s *Server) handleSaveReading(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req readingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Value <= 0 || math.IsInf(req.Value, 0) || math.IsNaN(req.Value) {
		s.fail(w, r, &model.ValidationError{Field: "value", Message: "must be a positive number"})
		return
	}

	reading := model.Reading{Value: req.Value, RecordedAt: s.now().UTC()}
	if req.RecordedAt != nil {
		reading.RecordedAt = *req.RecordedAt
	}
	rc := model.ParseReadingContext(req.Context)
	if err := s.store.SaveReading(r.Context(), id, reading, rc); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, storage.StoredReading{Reading: reading, Context: rc})
}

type stateResponse struct {
	classifyResponse
	Reading *storage.StoredReading `json:"reading,omitempty"`
}

func (s *Server) handleUserState(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	latest, err := s.store.LatestReading(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusOK, stateResponse{classifyResponse: classified(model.StateNone)})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	cs, _, err := s.userConstraints(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	th := signal.ThresholdsFromGuardrails(cs.Guardrails, latest.Context)
	st := signal.ClassifyWith(&latest.Reading, s.now(), th)
	writeJSON(w, http.StatusOK, stateResponse{classifyResponse: classified(st), Reading: latest})
}

// --- Profile ---

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var p profile.Profile
	if !decode(w, r, &p) {
		return
	}
	if p.Name == "" {
		p.Name = id
	}
	if err := profile.Validate(&p); err != nil {
		s.fail(w, r, &model.ValidationError{Field: "profile", Message: err.Error()})
		return
	}
	if err := s.store.SaveProfile(r.Context(), id, &p); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.store.GetProfile(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- Meals ---

type commitRequest struct {
	MealType    string           `json:"meal_type"`
	Candidate   *model.Candidate `json:"candidate,omitempty"`
	Request     *quota.Request   `json:"request,omitempty"`
	CommittedAt *time.Time       `json:"committed_at,omitempty"`
}

func (s *Server) handleCommitMeal(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req commitRequest
	if !decode(w, r, &req) {
		return
	}
	mt, err := model.ParseMealType(req.MealType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	qr, err := quotaRequest(req.Request, req.Candidate)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	item := quota.Item{Request: qr}
	if req.CommittedAt != nil {
		item.CommittedAt = *req.CommittedAt
	}
	m, err := s.store.CommitMeal(r.Context(), id, mt, item)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// --- Quota ---

type userQuotaRequest struct {
	Request   *quota.Request   `json:"request,omitempty"`
	Candidate *model.Candidate `json:"candidate,omitempty"`
}

func (s *Server) handleUserQuotaCheck(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req userQuotaRequest
	if !decode(w, r, &req) {
		return
	}
	qr, err := quotaRequest(req.Request, req.Candidate)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	cs, cfg, err := s.userConstraints(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dayStart := quota.DayStart(s.now(), s.cfg.Location)
	history, err := s.store.History(r.Context(), id, dayStart)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	budget := quota.StarchBudget(cfg, cs.Guardrails, dayStart)
	key := quota.Key(id, dayStart, budget.Category)
	res, err := s.checkQuota(key, qr, history, budget)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotaResponse{Key: key, Result: res})
}

// --- Enforce ---

type userEnforceRequest struct {
	Candidate *model.Candidate `json:"candidate"`
	MealType  string           `json:"meal_type"`
	Commit    bool             `json:"commit,omitempty"` // record the served candidate on success
}

type userEnforceResponse struct {
	model.EvaluationResult
	MealID string `json:"meal_id,omitempty"`
}

func (s *Server) handleUserEnforce(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req userEnforceRequest
	if !decode(w, r, &req) {
		return
	}
	cs, cfg, err := s.userConstraints(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.enforcer(cfg).Check(req.Candidate, cs, req.MealType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.Outcome == model.Rejected || !req.Commit {
		writeResult(w, res)
		return
	}

	mt, _ := model.ParseMealType(req.MealType)
	served := quota.Item{Request: quota.RequestFromCandidate(*res.Candidate), CommittedAt: s.now().UTC()}
	m, err := s.store.CommitMeal(r.Context(), id, mt, served)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userEnforceResponse{EvaluationResult: res, MealID: m.ID})
}
