package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mealguard/internal/profile"
)

var profileInitOutput string

func init() {
	profileCmd.AddCommand(profileInitCmd)
	profileInitCmd.Flags().StringVarP(&profileInitOutput, "output", "o", "", "Output path (default: ~/.mealguard/profiles/<name>.yaml)")
}

var profileInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Generate a starter profile template",
	Long:  "Creates a commented YAML condition profile that you can customize for a user.",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileInit,
}

func runProfileInit(cmd *cobra.Command, args []string) error {
	name := args[0]

	outPath := profileInitOutput
	if outPath == "" {
		dir, err := profile.Dir()
		if err != nil {
			return err
		}
		outPath = filepath.Join(dir, name+".yaml")
	}

	// Refuse to overwrite existing files
	if _, err := os.Stat(outPath); err == nil {
		return fmt.Errorf("file already exists: %s (remove it first or use --output)", outPath)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	content := profile.InitProfile(name)
	if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}

	fmt.Printf("Created profile template: %s\n", outPath)
	fmt.Printf("Edit it, then validate with: mealguard profile check %s\n", name)
	return nil
}
