package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"recordwatch/internal/app"
	"recordwatch/internal/config"
	"recordwatch/internal/logging"
)

func main() {
	cfg := config.Load()
	logger, cleanup := logging.New(cfg.Logging.Level, cfg.Logging.File)
	defer func() { _ = cleanup() }()

	root := newRootCmd(cfg, logger)
	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "recordwatch",
		Short:        "Monitors incident coverage and auto-files public records requests",
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd(cfg, logger))
	root.AddCommand(newScanCmd(cfg, logger))
	root.AddCommand(newSubmitCmd(cfg, logger))
	root.AddCommand(newSourcesCmd(cfg, logger))
	return root
}

func withApp(cfg config.Config, logger *slog.Logger, fn func(ctx context.Context, application *app.Application) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()

	return fn(ctx, application)
}

func newRunCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduled ingestion daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, logger, func(ctx context.Context, application *app.Application) error {
				return application.RunDaemon(ctx)
			})
		},
	}
}

func newScanCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one ingestion batch and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, logger, func(ctx context.Context, application *app.Application) error {
				report, err := application.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"found=%d new=%d duplicate=%d rejected=%d errors=%d filed=%d dry_run=%d skipped=%d\n",
					report.Found, report.New, report.Duplicate, report.Rejected,
					report.Errors, report.Filed, report.DryRun, report.Skipped)
				return nil
			})
		},
	}
}

func newSubmitCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <request-id>",
		Short: "Submit a drafted request through the coordinator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, logger, func(ctx context.Context, application *app.Application) error {
				req, err := application.SubmitRequest(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "submitted %s (%s)\n", req.ID, req.ReferenceNumber)
				return nil
			})
		},
	}
}

func newSourcesCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	sources := &cobra.Command{
		Use:   "sources",
		Short: "Administer feed sources",
	}

	sources.AddCommand(&cobra.Command{
		Use:   "reset <source-id>",
		Short: "Force-close a source's circuit breaker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, logger, func(ctx context.Context, application *app.Application) error {
				if err := application.ResetSource(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "source %s reset\n", args[0])
				return nil
			})
		},
	})
	return sources
}
