package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/convenehq/convene/pkg/config"
	"github.com/convenehq/convene/pkg/observability"
)

var rootCmd = &cobra.Command{
	Use:   "convene",
	Short: "Event registration and reminder scheduling engine",
	Long: `convene manages capacity-bound event registrations with a FIFO
waitlist and dispatches the derived reminder notifications.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfigAndLogger() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logCfg := observability.DefaultLogConfig()
	if cfg.IsProduction() {
		logCfg = observability.ProductionLogConfig()
	}
	logCfg.Level = observability.LogLevel(cfg.LogLevel)

	return cfg, observability.NewLogger(logCfg), nil
}
