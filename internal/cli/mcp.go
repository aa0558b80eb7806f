package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mgmcp "github.com/ppiankov/mealguard/internal/mcp"
	"github.com/ppiankov/mealguard/internal/storage"
)

var (
	mcpProfile string
	mcpUseDB   bool
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("policy", "", "Path to policy YAML")
	mcpCmd.Flags().String("decisions", "", "Quota decision directory")
	mcpCmd.Flags().String("db", "", "SQLite database path")
	mcpCmd.Flags().Bool("strict", false, "Re-validate lower-constraint substitutes")
	mcpCmd.Flags().StringVar(&mcpProfile, "profile", "", "Condition profile used when a tool call names none")
	mcpCmd.Flags().BoolVar(&mcpUseDB, "with-db", false, "Let quota checks read history by user_id from the SQLite store")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs mealguard as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes guardrail tools: classify, constraints, enforce, quota_check, decide, pending.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol; newLogger writes to stderr.
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	loc, err := cfg.Quota.Location()
	if err != nil {
		return err
	}

	var store *storage.Store
	if mcpUseDB {
		store, err = storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()
	}

	srv, err := mgmcp.New(mgmcp.Config{
		PolicyPath:        cfg.Policy.Path,
		ProfileName:       mcpProfile,
		DecisionDir:       cfg.Decisions.Dir,
		StrictSubstitutes: cfg.Enforce.StrictSubstitutes,
		Location:          loc,
		Store:             store,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("mealguard MCP server running on stdio",
		zap.String("profile", mcpProfile),
		zap.String("policy_hash", srv.PolicyHash()),
	)
	err = srv.Run(ctx)
	if ctx.Err() != nil {
		logger.Info("shutting down MCP server")
		return nil
	}
	return err
}
