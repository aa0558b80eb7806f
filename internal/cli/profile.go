package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mealguard/internal/profile"
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileCheckCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileShowCmd.Flags().String("policy", "", "Path to policy YAML")

	// Root-level alias
	rootCmd.AddCommand(checkProfileCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage condition profiles",
	Long:  "List, check, and inspect condition profiles. User profiles live in ~/.mealguard/profiles.",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available condition profiles",
	RunE:  runProfileList,
}

var profileCheckCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Validate a profile loads cleanly",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileCheck,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a profile and the constraints it derives",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

var checkProfileCmd = &cobra.Command{
	Use:   "check-profile <name>",
	Short: "Validate a profile loads cleanly (alias for profile check)",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileCheck,
}

func runProfileList(cmd *cobra.Command, args []string) error {
	names := profile.List()
	if len(names) == 0 {
		fmt.Println("No profiles available.")
		return nil
	}

	fmt.Println("Available profiles:")
	for _, name := range names {
		p, err := profile.Load(name)
		if err != nil {
			fmt.Printf("  %-16s (error loading: %v)\n", name, err)
			continue
		}
		src := "user"
		if profile.IsBuiltin(name) {
			src = "built-in"
		}
		fmt.Printf("  %-16s %-9s %s\n", name, src, p.Description)
	}
	return nil
}

func runProfileCheck(cmd *cobra.Command, args []string) error {
	name := args[0]
	p, err := profile.Load(name)
	if err != nil {
		return fmt.Errorf("failed to load profile %q: %w", name, err)
	}

	if err := profile.Validate(p); err != nil {
		return fmt.Errorf("profile %q is invalid: %w", name, err)
	}

	fmt.Printf("Profile %q (%s) is valid.\n", name, p.Name)
	fmt.Printf("  Condition:        %s\n", p.Condition)
	fmt.Printf("  Overrides:        %t\n", !p.Overrides.IsZero())
	fmt.Printf("  Extra blocked:    %d\n", len(p.ExtraBlocked))
	fmt.Printf("  Extra preferred:  %d groups\n", len(p.ExtraPreferred))
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	name := args[0]
	p, err := profile.Load(name)
	if err != nil {
		return fmt.Errorf("failed to load profile %q: %w", name, err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cs, _, err := constraintsFor(cfg.Policy.Path, name)
	if err != nil {
		return err
	}

	fmt.Printf("Profile: %s (%s)\n", p.Name, p.Description)
	if len(p.ExtraBlocked) > 0 {
		extra := make([]string, 0, len(p.ExtraBlocked))
		for _, t := range p.ExtraBlocked {
			extra = append(extra, t.Name)
		}
		fmt.Printf("Extra blocked: %s\n", strings.Join(extra, ", "))
	}
	fmt.Println()
	printConstraints(cs)
	return nil
}
