package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ppiankov/mealguard/internal/decision"
	"github.com/ppiankov/mealguard/internal/enforce"
	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/profile"
	"github.com/ppiankov/mealguard/internal/storage"
	"github.com/ppiankov/mealguard/internal/validate"
)

// Version is reported to MCP clients during initialization.
var Version = "dev"

// Config holds MCP server configuration.
type Config struct {
	PolicyPath        string
	ProfileName       string // used when a tool call names no profile
	DecisionDir       string
	StrictSubstitutes bool
	Location          *time.Location // quota day boundary, UTC when nil
	Store             *storage.Store // optional; enables user_id history lookups
	Logger            *zap.Logger
}

// Server wraps the MCP SDK server with mealguard enforcement tools.
type Server struct {
	mcpServer   *mcpsdk.Server
	policyCfg   *policy.Config
	policyHash  string
	profileName string
	decisions   *decision.Store
	store       *storage.Store
	strict      bool
	loc         *time.Location
	logger      *zap.Logger
	now         func() time.Time

	// mu serializes quota checks so a resolved decision unlocks one call.
	mu sync.Mutex
}

// New creates an MCP server with loaded policy, decision store, and tools.
func New(cfg Config) (*Server, error) {
	policyCfg, policyHash, err := policy.LoadConfigWithHash(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy config: %w", err)
	}

	if cfg.ProfileName != "" {
		if _, err := profile.Load(cfg.ProfileName); err != nil {
			return nil, fmt.Errorf("failed to load profile %q: %w", cfg.ProfileName, err)
		}
	}

	dir := cfg.DecisionDir
	if dir == "" {
		dir = decision.DefaultDir()
	}
	decisions, err := decision.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision store: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := decisions.Cleanup(); err != nil {
		logger.Warn("decision cleanup failed", zap.Error(err))
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Server{
		policyCfg:   policyCfg,
		policyHash:  policyHash,
		profileName: cfg.ProfileName,
		decisions:   decisions,
		store:       cfg.Store,
		strict:      cfg.StrictSubstitutes,
		loc:         loc,
		logger:      logger.Named("mcp"),
		now:         time.Now,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "mealguard",
			Version: Version,
		},
		nil,
	)

	s.registerTools()
	s.logger.Info("mcp server ready",
		zap.String("policy_hash", policyHash),
		zap.String("profile", cfg.ProfileName),
	)
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// PolicyHash returns the hash of the loaded policy tables.
func (s *Server) PolicyHash() string {
	return s.policyHash
}

// constraintsFor derives the constraint set for a named profile, falling
// back to the server profile and then to the general condition.
func (s *Server) constraintsFor(name string) (model.ConstraintSet, *policy.Config, error) {
	if name == "" {
		name = s.profileName
	}
	if name == "" {
		return s.policyCfg.Derive(model.ConditionProfile{Condition: model.ConditionGeneral}), s.policyCfg, nil
	}
	p, err := profile.Load(name)
	if err != nil {
		return model.ConstraintSet{}, nil, &model.ValidationError{Field: "profile", Message: err.Error()}
	}
	merged := profile.ApplyToPolicy(p, s.policyCfg)
	return merged.Derive(p.ToCondition()), merged, nil
}

func (s *Server) enforcer(cfg *policy.Config) *enforce.Enforcer {
	return &enforce.Enforcer{Validator: validate.New(cfg), Strict: s.strict}
}

// registerTools adds all mealguard tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mealguard_classify",
		Description: "Classify a glucose reading (mg/dL) into low, low_normal, in_range, elevated, high_risk or stale.",
	}, s.handleClassify)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mealguard_constraints",
		Description: "Derive per-meal carb ranges, glycemic ceiling, blocked and preferred ingredients for a condition profile.",
	}, s.handleConstraints)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mealguard_enforce",
		Description: "Evaluate a generated meal for a meal slot. Rejected meals return an error with the violation codes; over-cap meals may be replaced by their lower-constraint variant.",
	}, s.handleEnforce)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mealguard_quota_check",
		Description: "Check a meal against the daily starch budget. An exhausted budget returns an error with a decision key; resolve it with mealguard_decide.",
	}, s.handleQuotaCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mealguard_decide",
		Description: "Resolve a pending quota decision with override (allow once) or reroute (swap for a non-starchy alternative).",
	}, s.handleDecide)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mealguard_pending",
		Description: "List pending quota decisions.",
	}, s.handlePending)
}
