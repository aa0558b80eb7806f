package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/mealguard/internal/config"
	"github.com/ppiankov/mealguard/internal/logging"
)

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Service config file (default: ~/.mealguard/config.yaml)")
}

var rootCmd = &cobra.Command{
	Use:   "mealguard",
	Short: "Guardrail engine for AI-generated meal plans",
	Long: "Checks generated meals against a user's medical condition before they are served:\n" +
		"per-meal net-carb caps, glycemic ceilings, blocked ingredients and daily starch budgets.\n" +
		"Guardrails, not clinical advice.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// flagKeys maps command flags onto config keys. A flag only wins when set.
var flagKeys = map[string]string{
	"policy":    "policy.path",
	"decisions": "decisions.dir",
	"db":        "storage.path",
	"addr":      "server.addr",
	"strict":    "enforce.strict_substitutes",
	"log-level": "logger.level",
}

// loadConfig merges defaults, the config file, MEALGUARD_ env vars and the
// command's flags, in increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	if err := config.ReadInConfig(v, cfgFile); err != nil {
		return nil, err
	}
	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return nil
}

// newLogger builds the service logger. Command output stays on stdout, so
// logs always go to stderr.
func newLogger(cfg *config.Config) *zap.Logger {
	return logging.New(cfg.Logger, os.Stderr)
}
