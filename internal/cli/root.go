package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fikri/engram/internal/config"
	"github.com/fikri/engram/internal/logger"
	"github.com/fikri/engram/internal/metrics"
	"github.com/fikri/engram/pkg/service"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Engram - semantic memory engine for AI agents",
	Long: `Engram stores conversational and document context as embedded memory
items, retrieves the most relevant context for a query under a token budget,
and ages stored memory through retention tiers as it cools.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.engram/engram.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// loadConfig resolves configuration from the --config flag or the default path
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger from config, honoring the --log-level override
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	logCfg := logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	return logger.New(logCfg)
}

// newService assembles the engine for a one-shot command. The returned cleanup
// releases the database and the log file.
func newService() (*service.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	lg, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	svc, err := service.New(cfg, lg.Zerolog(), metrics.New())
	if err != nil {
		lg.Close()
		return nil, nil, err
	}

	cleanup := func() {
		svc.Close()
		lg.Close()
	}
	return svc, cleanup, nil
}
