package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/mealguard/internal/decision"
	"github.com/ppiankov/mealguard/internal/quota"
	"github.com/ppiankov/mealguard/internal/storage"
)

var (
	quotaUser        string
	quotaProfile     string
	quotaIngredients []string
	quotaCategories  []string
	quotaHistory     string
	quotaUseDB       bool
	quotaJSON        bool
)

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.Flags().StringVarP(&quotaUser, "user", "u", "", "User the budget belongs to (required)")
	quotaCmd.Flags().StringVarP(&quotaProfile, "profile", "p", "", "Condition profile (default: general)")
	quotaCmd.Flags().StringSliceVarP(&quotaIngredients, "ingredient", "i", nil, "Ingredient of the requested meal (repeatable)")
	quotaCmd.Flags().StringSliceVar(&quotaCategories, "category", nil, "Explicit category tag, e.g. starchy")
	quotaCmd.Flags().StringVar(&quotaHistory, "history", "", "YAML/JSON file of today's committed items")
	quotaCmd.Flags().BoolVar(&quotaUseDB, "from-db", false, "Read today's history from the SQLite store")
	quotaCmd.Flags().String("db", "", "SQLite database path")
	quotaCmd.Flags().String("policy", "", "Path to policy YAML")
	quotaCmd.Flags().String("decisions", "", "Quota decision directory")
	quotaCmd.Flags().BoolVar(&quotaJSON, "json", false, "Output JSON")
	_ = quotaCmd.MarkFlagRequired("user")
}

var quotaCmd = &cobra.Command{
	Use:   "quota <meal name>",
	Short: "Check a meal against the daily starch budget",
	Long: "Counts today's starchy items and checks whether the requested meal fits the budget.\n" +
		"An exhausted budget registers a pending decision; resolve it with 'mealguard decide'\n" +
		"and run the check again.\n\n" +
		"Exit code 0 when allowed, 1 when a decision is required.",
	Args: cobra.ExactArgs(1),
	RunE: runQuota,
}

type quotaOutput struct {
	Key string `json:"key"`
	quota.Result
}

func runQuota(cmd *cobra.Command, args []string) error {
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
	dayStart := quota.DayStart(time.Now(), loc)

	cs, merged, err := constraintsFor(cfg.Policy.Path, quotaProfile)
	if err != nil {
		return err
	}
	history, err := loadHistory(cmd.Context(), cfg.Storage.Path, dayStart)
	if err != nil {
		return err
	}

	decisions, err := decision.NewStore(cfg.Decisions.Dir)
	if err != nil {
		return fmt.Errorf("failed to open decision store: %w", err)
	}

	req := quota.Request{Name: args[0], Ingredients: quotaIngredients, Categories: quotaCategories}
	budget := quota.StarchBudget(merged, cs.Guardrails, dayStart)
	key := quota.Key(quotaUser, dayStart, budget.Category)
	res, err := (&quota.Gate{Store: decisions}).Check(key, req, history, budget)
	if err != nil {
		return err
	}

	if quotaJSON {
		if err := printJSON(quotaOutput{Key: key, Result: res}); err != nil {
			return err
		}
	} else {
		printQuota(key, res)
	}

	if !res.Allowed {
		logger.Info("quota decision required",
			zap.String("key", key),
			zap.Strings("matched", res.MatchedTerms),
			zap.Int("slots_used", res.State.SlotsUsed),
		)
		_ = logger.Sync()
		os.Exit(1)
	}
	return nil
}

func loadHistory(ctx context.Context, dbPath string, dayStart time.Time) ([]quota.Item, error) {
	if quotaUseDB {
		store, err := storage.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()
		return store.History(ctx, quotaUser, dayStart)
	}
	if quotaHistory == "" {
		return nil, nil
	}
	var items []quota.Item
	if err := readInput(quotaHistory, &items); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return items, nil
}

func printQuota(key string, res quota.Result) {
	st := res.State
	fmt.Printf("Starch slots: %d of %d used (%d remaining)\n", st.SlotsUsed, st.SlotsMax, st.Remaining())
	switch {
	case res.Allowed && res.Resolution != quota.ResolutionNone:
		fmt.Printf("Allowed by %s decision.\n", res.Resolution)
	case res.Allowed:
		fmt.Println("Allowed.")
	default:
		fmt.Printf("Blocked: %s\n", res.Reason)
		fmt.Printf("  Matched: %s\n", strings.Join(res.MatchedTerms, ", "))
		fmt.Printf("  Decide with: mealguard decide %s override|reroute\n", key)
	}
}
