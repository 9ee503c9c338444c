// Package cmd implements the command-line interface for Woonitor. Each
// pipeline stage runs as its own subcommand so the stages scale and restart
// independently.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/DorusKeijzer/Woonitor/internal/config"
	"github.com/DorusKeijzer/Woonitor/internal/logger"
	"github.com/DorusKeijzer/Woonitor/internal/metrics"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "woonitor",
		Short: "Housing-market listing harvester",
		Long: `Woonitor harvests sold listings from funda.nl through a three-stage
pipeline: crawl discovers listing URLs, scrape extracts their fields, and
write normalizes and persists them to PostgreSQL.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment overrides are visible to config loading.
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("woonitor version %s\n", version)
		},
	})

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(flushCmd)
}

// setup loads configuration and builds the logger shared by all subcommands.
func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	logCfg := cfg.Log
	if debug || cfg.App.Debug {
		logCfg.Level = "debug"
	}
	if cfg.App.Environment == "development" {
		logCfg.Development = true
	}

	log, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}

	return cfg, log, nil
}

// collector returns the Pushgateway-backed collector, or the no-op one when
// no gateway is configured.
func collector(cfg config.MetricsConfig) metrics.Collector {
	if cfg.PushgatewayURL == "" {
		return metrics.Nop{}
	}
	return metrics.New(cfg.PushgatewayURL, cfg.Job)
}

// signalContext derives a context canceled by SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
