package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/mealguard/internal/config"
	"github.com/ppiankov/mealguard/internal/policy"
	"github.com/ppiankov/mealguard/internal/profile"
)

var (
	initProfile string
	initMode    string
	initForce   bool
)

func init() {
	initCmd.Flags().StringVar(&initProfile, "profile", "", "Write a starter profile with this name into the profiles directory")
	initCmd.Flags().StringVar(&initMode, "mode", "user", "Config location: user (~/.mealguard) or system (/etc/mealguard)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap mealguard configuration",
	Long: `Creates the config directory, service config, default policy tables,
and the user profile directory.

User mode (default):  writes to ~/.mealguard/
System mode:          writes to /etc/mealguard/ (requires root)`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := initConfigDir()
	if err != nil {
		return err
	}

	var created []string

	// Create directory structure.
	profilesDir := filepath.Join(configDir, "profiles")
	if err := os.MkdirAll(profilesDir, 0o755); err != nil {
		return fmt.Errorf("create profiles directory: %w", err)
	}

	// Write policy.yaml.
	policyPath := filepath.Join(configDir, "policy.yaml")
	policyContent, err := policy.DefaultConfigYAML()
	if err != nil {
		return err
	}
	if wrote, err := writeIfMissing(policyPath, policyContent); err != nil {
		return err
	} else if wrote {
		created = append(created, policyPath)
	}

	// Write config.yaml pointing at the policy and data under configDir.
	configPath := filepath.Join(configDir, "config.yaml")
	configContent, err := defaultServiceConfigYAML(configDir)
	if err != nil {
		return fmt.Errorf("generate default config: %w", err)
	}
	if wrote, err := writeIfMissing(configPath, configContent); err != nil {
		return err
	} else if wrote {
		created = append(created, configPath)
	}

	// Write a starter profile if requested.
	if initProfile != "" {
		if profile.IsBuiltin(initProfile) {
			return fmt.Errorf("profile %q is built-in; pick another name to customize it", initProfile)
		}
		profPath := filepath.Join(profilesDir, initProfile+".yaml")
		if wrote, err := writeIfMissing(profPath, profile.InitProfile(initProfile)); err != nil {
			return err
		} else if wrote {
			created = append(created, profPath)
		}
	}

	// Print summary.
	fmt.Println("mealguard init complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
		fmt.Println()
	}

	// Print next steps.
	fmt.Println("Inspect a profile:")
	name := initProfile
	if name == "" {
		name = "type2-diabetes"
	}
	fmt.Printf("  mealguard profile show %s\n", name)
	fmt.Println()
	fmt.Println("Start the service:")
	fmt.Printf("  mealguard serve --config %s\n", configPath)
	return nil
}

// initConfigDir returns the configuration directory based on mode.
func initConfigDir() (string, error) {
	switch initMode {
	case "system":
		return "/etc/mealguard", nil
	case "user", "":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(home, ".mealguard"), nil
	default:
		return "", fmt.Errorf("unknown mode %q: use 'user' or 'system'", initMode)
	}
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// defaultServiceConfigYAML renders the default service config with every
// path rooted in dir.
func defaultServiceConfigYAML(dir string) (string, error) {
	cfg := config.Default()
	cfg.Policy.Path = filepath.Join(dir, "policy.yaml")
	cfg.Storage.Path = filepath.Join(dir, "mealguard.db")
	cfg.Decisions.Dir = filepath.Join(dir, "decisions")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	header := "# mealguard service config\n" +
		"# Every key can be overridden by env, e.g. MEALGUARD_SERVER_ADDR.\n" +
		"# Policy tables live in policy.yaml; condition profiles in profiles/.\n\n"
	return header + string(data), nil
}
