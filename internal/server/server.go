package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/mealguard/internal/decision"
	"github.com/ppiankov/mealguard/internal/enforce"
	"github.com/ppiankov/mealguard/internal/logging"
	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/quota"
	"github.com/ppiankov/mealguard/internal/storage"
	"github.com/ppiankov/mealguard/internal/validate"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxBodyBytes      int64
	PolicyPath        string
	DecisionDir       string
	StrictSubstitutes bool
	Location          *time.Location // quota day boundary; nil is UTC
}

// Server serves the guardrail engine over HTTP.
//
// The policy tables are held under mu and swapped whole on reload; each
// request works on the snapshot it read.
type Server struct {
	mu         sync.RWMutex
	policyCfg  *policy.Config
	policyHash string

	decisions *decision.Store
	quotaMu   sync.Mutex     // serializes gate checks so a resolved decision unlocks one request
	store     *storage.Store // nil disables the /v1/users routes
	logger    *zap.Logger
	cfg       Config
	now       func() time.Time

	httpServer *http.Server
}

// New loads the policy tables and decision store. store may be nil.
func New(cfg Config, store *storage.Store, logger *zap.Logger) (*Server, error) {
	policyCfg, policyHash, err := policy.LoadConfigWithHash(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy config: %w", err)
	}

	dir := cfg.DecisionDir
	if dir == "" {
		dir = decision.DefaultDir()
	}
	decisions, err := decision.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision store: %w", err)
	}
	if err := decisions.Cleanup(); err != nil {
		logging.OrNop(logger).Warn("decision cleanup failed", zap.Error(err))
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Server{
		policyCfg:  policyCfg,
		policyHash: policyHash,
		decisions:  decisions,
		store:      store,
		logger:     logging.OrNop(logger),
		cfg:        cfg,
		now:        time.Now,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Serve listens on the configured address. Blocks until Shutdown.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeOn(lis)
}

// ServeOn serves on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	s.logger.Info("listening", zap.String("addr", lis.Addr().String()), zap.String("policy_hash", s.PolicyHash()))
	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// checkQuota runs the decision gate under quotaMu.
func (s *Server) checkQuota(key string, req quota.Request, history []quota.Item, b quota.Budget) (quota.Result, error) {
	s.quotaMu.Lock()
	defer s.quotaMu.Unlock()
	return (&quota.Gate{Store: s.decisions}).Check(key, req, history, b)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ReloadPolicy atomically swaps the policy tables.
// Called by the hot-reloader on file change. A bad file keeps the old tables.
func (s *Server) ReloadPolicy() error {
	policyCfg, policyHash, err := policy.LoadConfigWithHash(s.cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("failed to reload policy config: %w", err)
	}

	s.mu.Lock()
	s.policyCfg = policyCfg
	s.policyHash = policyHash
	s.mu.Unlock()
	return nil
}

// PolicyHash returns the hash of the active policy tables.
func (s *Server) PolicyHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policyHash
}

func (s *Server) snapshot() *policy.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policyCfg
}

func (s *Server) enforcer(cfg *policy.Config) *enforce.Enforcer {
	return &enforce.Enforcer{Validator: validate.New(cfg), Strict: s.cfg.StrictSubstitutes}
}
