package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/convenehq/convene/internal/app"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the reminder dispatcher and outbox processor",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfigAndLogger()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		container, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer container.Close()

		if cfg.OutboxProcessorEnabled {
			if err := container.OutboxProcessor.Start(ctx); err != nil {
				return err
			}
			defer container.OutboxProcessor.Stop()
		}

		container.DispatchWorker.Start(ctx)
		defer container.DispatchWorker.Stop()

		logger.Info("worker running", slog.String("env", cfg.AppEnv))

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("shutting down", slog.String("signal", sig.String()))
		case <-ctx.Done():
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
