package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/mealguard/internal/enforce"
	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/validate"
)

var (
	enforceMeal    string
	enforceProfile string
	enforceJSON    bool
)

func init() {
	rootCmd.AddCommand(enforceCmd)
	enforceCmd.Flags().StringVarP(&enforceMeal, "meal", "m", "", "Meal slot (breakfast|lunch|dinner|snack, required)")
	enforceCmd.Flags().StringVarP(&enforceProfile, "profile", "p", "", "Condition profile (default: general)")
	enforceCmd.Flags().String("policy", "", "Path to policy YAML")
	enforceCmd.Flags().Bool("strict", false, "Re-validate lower-constraint substitutes")
	enforceCmd.Flags().BoolVar(&enforceJSON, "json", false, "Output JSON")
	_ = enforceCmd.MarkFlagRequired("meal")
}

var enforceCmd = &cobra.Command{
	Use:   "enforce [candidate.yaml]",
	Short: "Evaluate a generated meal",
	Long: "Reads a candidate meal (YAML or JSON, file or stdin) and evaluates it for a meal slot.\n" +
		"Exit code 0 when accepted or substituted, 1 when rejected.",
	Args: cobra.MaximumNArgs(1),
	RunE: runEnforce,
}

func runEnforce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	var c model.Candidate
	if err := readInput(path, &c); err != nil {
		return err
	}

	cs, merged, err := constraintsFor(cfg.Policy.Path, enforceProfile)
	if err != nil {
		return err
	}
	e := &enforce.Enforcer{Validator: validate.New(merged), Strict: cfg.Enforce.StrictSubstitutes}
	res, err := e.Check(&c, cs, enforceMeal)
	if err != nil {
		return err
	}

	if enforceJSON {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		printResult(res)
	}

	var rej *enforce.RejectionError
	if errors.As(enforce.AsError(res), &rej) {
		logger.Info("meal rejected",
			zap.String("meal", c.Name),
			zap.String("code", rej.Code()),
			zap.Strings("violations", res.Violations),
		)
		_ = logger.Sync()
		os.Exit(1)
	}
	return nil
}

func printResult(res model.EvaluationResult) {
	fmt.Printf("Outcome: %s\n", strings.ToUpper(string(res.Outcome)))
	if res.Candidate != nil {
		fmt.Printf("Meal:    %s\n", res.Candidate.Name)
	}
	if res.NetCarbs != nil {
		fmt.Printf("Net carbs: %gg\n", *res.NetCarbs)
	}
	if len(res.Tags) > 0 {
		fmt.Printf("Tags:    %s\n", strings.Join(res.Tags, ", "))
	}
	for _, v := range res.Violations {
		fmt.Printf("  ✗ %s\n", v)
	}
	for _, w := range res.Warnings {
		fmt.Printf("  ! %s\n", w)
	}
}
