package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mealguard/internal/model"
)

var (
	constraintsProfile string
	constraintsJSON    bool
)

func init() {
	rootCmd.AddCommand(constraintsCmd)
	constraintsCmd.Flags().StringVarP(&constraintsProfile, "profile", "p", "", "Condition profile (default: general)")
	constraintsCmd.Flags().String("policy", "", "Path to policy YAML")
	constraintsCmd.Flags().BoolVar(&constraintsJSON, "json", false, "Output JSON")
}

var constraintsCmd = &cobra.Command{
	Use:   "constraints",
	Short: "Show the constraint set derived for a profile",
	Long:  "Derives per-meal carb ranges, the glycemic ceiling, and blocked and preferred ingredients.",
	Args:  cobra.NoArgs,
	RunE:  runConstraints,
}

func runConstraints(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cs, _, err := constraintsFor(cfg.Policy.Path, constraintsProfile)
	if err != nil {
		return err
	}
	if constraintsJSON {
		return printJSON(cs)
	}
	printConstraints(cs)
	return nil
}

func printConstraints(cs model.ConstraintSet) {
	fmt.Printf("Condition: %s\n\n", cs.Condition)

	fmt.Println("Carb ranges (net g):")
	for _, mt := range model.MealTypes {
		if r, ok := cs.RangeFor(mt); ok {
			fmt.Printf("  %-10s %g-%g\n", mt, r.Min, r.Max)
		}
	}
	fmt.Println()

	if cs.GlycemicCeilingEnabled {
		fmt.Printf("Glycemic ceiling: on (cap %g)\n", cs.GlycemicCap)
	} else {
		fmt.Println("Glycemic ceiling: off")
	}

	g := cs.Guardrails
	fmt.Println("Guardrails:")
	fmt.Printf("  fasting:       %g-%g mg/dL\n", g.FastingMin, g.FastingMax)
	fmt.Printf("  post-meal max: %g mg/dL\n", g.PostMealMax)
	fmt.Printf("  fiber min:     %g g\n", g.FiberMin)
	fmt.Printf("  starch slots:  %d per day\n", g.StarchSlots)
	fmt.Printf("  meals per day: %d\n", g.MealFrequency)
	fmt.Println()

	if len(cs.BlockedIngredients) > 0 {
		fmt.Printf("Blocked:   %s\n", strings.Join(cs.BlockedIngredients, ", "))
	}
	if len(cs.PreferredIngredients) > 0 {
		fmt.Printf("Preferred: %s\n", strings.Join(cs.PreferredIngredients, ", "))
	}
}
