package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mealguard/internal/decision"
)

func init() {
	rootCmd.AddCommand(decideCmd)
	decideCmd.Flags().String("decisions", "", "Quota decision directory")
}

var decideCmd = &cobra.Command{
	Use:   "decide <key> <override|reroute>",
	Short: "Resolve a pending quota decision",
	Long: "Records the user's choice at a starch budget block.\n" +
		"override allows the starchy meal once; reroute swaps it for a non-starchy alternative.\n" +
		"Either choice unlocks exactly one subsequent quota check.",
	Args: cobra.ExactArgs(2),
	RunE: runDecide,
}

func runDecide(cmd *cobra.Command, args []string) error {
	key := args[0]
	choice, err := decision.ParseChoice(args[1])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := decision.NewStore(cfg.Decisions.Dir)
	if err != nil {
		return fmt.Errorf("failed to open decision store: %w", err)
	}

	if err := store.Resolve(key, choice); err != nil {
		return fmt.Errorf("failed to resolve %q: %w", key, err)
	}

	fmt.Printf("Resolved %q as %s (one use)\n", key, choice)
	return nil
}
