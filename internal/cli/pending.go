package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mealguard/internal/decision"
)

var pendingAll bool

func init() {
	rootCmd.AddCommand(pendingCmd)
	pendingCmd.Flags().String("decisions", "", "Quota decision directory")
	pendingCmd.Flags().BoolVarP(&pendingAll, "all", "a", false, "Include resolved and consumed decisions")
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending quota decisions",
	Long:  "Shows quota decisions waiting for an override or reroute choice.",
	RunE:  runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := decision.NewStore(cfg.Decisions.Dir)
	if err != nil {
		return fmt.Errorf("failed to open decision store: %w", err)
	}

	var list []decision.Decision
	if pendingAll {
		list, err = store.List()
	} else {
		list, err = store.ListPending()
	}
	if err != nil {
		return fmt.Errorf("failed to list decisions: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No pending decisions.")
		return nil
	}

	fmt.Printf("%-36s %-10s %-6s %-8s %s\n", "KEY", "STATUS", "ROUND", "SLOTS", "CREATED")
	for _, d := range list {
		fmt.Printf("%-36s %-10s %-6d %-8s %s\n",
			truncate(d.Key, 36),
			d.Status,
			d.Round,
			fmt.Sprintf("%d/%d", d.SlotsUsed, d.SlotsMax),
			d.CreatedAt.Format("15:04:05"),
		)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
