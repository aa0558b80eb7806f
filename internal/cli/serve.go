package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/mealguard/internal/server"
	"github.com/ppiankov/mealguard/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveNoStorage bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "HTTP listen address (default 127.0.0.1:8870)")
	serveCmd.Flags().String("policy", "", "Path to policy YAML")
	serveCmd.Flags().String("decisions", "", "Quota decision directory")
	serveCmd.Flags().String("db", "", "SQLite database path")
	serveCmd.Flags().Bool("strict", false, "Re-validate lower-constraint substitutes")
	serveCmd.Flags().String("log-level", "", "Log level (debug|info|warn|error)")
	serveCmd.Flags().BoolVar(&serveNoStorage, "no-storage", false, "Disable the SQLite-backed /v1/users routes")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP guardrail service",
	Long: "Runs mealguard as a JSON HTTP service.\n" +
		"Meal generators call /v1/enforce and /v1/quota/check before serving a plan.\n" +
		"Supports hot-reload of the policy file.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	loc, err := cfg.Quota.Location()
	if err != nil {
		return err
	}

	var store *storage.Store
	if !serveNoStorage {
		store, err = storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()
	}

	srv, err := server.New(server.Config{
		Addr:              cfg.Server.Addr,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		PolicyPath:        cfg.Policy.Path,
		DecisionDir:       cfg.Decisions.Dir,
		StrictSubstitutes: cfg.Enforce.StrictSubstitutes,
		Location:          loc,
	}, store, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start hot-reload watcher for the policy file
	if cfg.Policy.Watch && cfg.Policy.Path != "" {
		reloader, err := server.NewReloader(srv, []string{cfg.Policy.Path})
		if err != nil {
			logger.Warn("hot-reload disabled", zap.Error(err))
		} else {
			go func() { _ = reloader.Run(ctx) }()
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	logger.Info("mealguard starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("policy", cfg.Policy.Path),
		zap.String("policy_hash", srv.PolicyHash()),
		zap.Bool("storage", store != nil),
		zap.Bool("strict_substitutes", cfg.Enforce.StrictSubstitutes),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
