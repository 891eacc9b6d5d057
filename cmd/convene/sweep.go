package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/convenehq/convene/internal/app"
)

var sweepMaintain bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a single reminder dispatch sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfigAndLogger()
		if err != nil {
			return err
		}

		container, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer container.Close()

		stats, err := container.Dispatcher.SweepOnce(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("sweep complete",
			slog.Int("due", stats.Due),
			slog.Int("sent", stats.Sent),
			slog.Int("failed", stats.Failed),
		)

		if sweepMaintain {
			if err := container.Dispatcher.Maintain(cmd.Context()); err != nil {
				return err
			}
		}

		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepMaintain, "maintain", false, "also purge expired and park overdue reminders")
	rootCmd.AddCommand(sweepCmd)
}
