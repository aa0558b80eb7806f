package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/profilediff"
)

var diffFormat string

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
	diffCmd.Flags().String("policy", "", "Path to policy YAML")
}

var diffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Compare the constraints two profiles derive",
	Long: "Derives the constraint set for two profiles (names or YAML files) and shows\n" +
		"what changed: carb ranges, glycemic ceiling, guardrails, blocked and preferred terms.\n" +
		"Each numeric change is marked stricter or looser.",
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	policyCfg, err := policy.LoadConfig(cfg.Policy.Path)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	result, err := profilediff.DiffProfiles(policyCfg, args[0], args[1])
	if err != nil {
		return err
	}

	switch diffFormat {
	case "json":
		out, err := profilediff.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(profilediff.FormatText(result))
	}

	return nil
}
