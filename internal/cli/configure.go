package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fikri/engram/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write and validate the configuration file",
	Long: `Write the current configuration to disk, filling in defaults for
anything unset, and validate it. Run once to scaffold a config file, then
edit it and rerun to check the result.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)

	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	if report := config.Validate(cfg); !report.Valid() {
		return fmt.Errorf("invalid configuration: %w", report.Err())
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	path, err := loader.Path()
	if err != nil {
		return err
	}
	fmt.Printf("Configuration saved to: %s\n", path)
	fmt.Println("Start the engine with: engram serve")
	return nil
}
