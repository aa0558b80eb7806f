package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/signal"
)

var (
	classifyAge     time.Duration
	classifyContext string
	classifyProfile string
	classifyJSON    bool
)

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().DurationVar(&classifyAge, "age", 0, "How long ago the reading was taken (e.g. 45m)")
	classifyCmd.Flags().StringVar(&classifyContext, "context", "", "Reading context (fasting|pre_meal|post_meal)")
	classifyCmd.Flags().StringVar(&classifyProfile, "profile", "", "Condition profile whose guardrails set the thresholds")
	classifyCmd.Flags().String("policy", "", "Path to policy YAML")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Output JSON")
}

var classifyCmd = &cobra.Command{
	Use:   "classify <mg/dL>",
	Short: "Classify a glucose reading",
	Long: "Maps a glucose reading in mg/dL to low, low_normal, in_range, elevated or high_risk.\n" +
		"Readings older than 4 hours are stale.",
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

type classifyOutput struct {
	Value          float64     `json:"value"`
	State          model.State `json:"state"`
	Label          string      `json:"label"`
	NeedsAttention bool        `json:"needs_attention"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	var value float64
	if _, err := fmt.Sscanf(args[0], "%g", &value); err != nil || value <= 0 {
		return fmt.Errorf("invalid reading %q: expected a positive number", args[0])
	}

	rc := model.ParseReadingContext(classifyContext)
	th := signal.ThresholdsFor(rc)
	if classifyProfile != "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cs, _, err := constraintsFor(cfg.Policy.Path, classifyProfile)
		if err != nil {
			return err
		}
		th = signal.ThresholdsFromGuardrails(cs.Guardrails, rc)
	}

	now := time.Now()
	reading := model.Reading{Value: value, RecordedAt: now.Add(-classifyAge)}
	st := signal.ClassifyWith(&reading, now, th)

	out := classifyOutput{Value: value, State: st, Label: signal.Label(st), NeedsAttention: signal.NeedsAttention(st)}
	if classifyJSON {
		return printJSON(out)
	}
	fmt.Printf("%g mg/dL: %s (%s)\n", value, out.State, out.Label)
	if out.NeedsAttention {
		fmt.Println("Needs attention.")
	}
	return nil
}
