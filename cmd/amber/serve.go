package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hejijunhao/amber/internal/logging"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Answer JSON requests line by line on stdin/stdout",
		Long: `serve reads one JSON request per line from stdin,
  {"query": "what projects have you built?", "session": "visitor-1"}
and writes one JSON response per line to stdout,
  {"response": ["..."]}
Logs go to stderr as JSON. A stdout transcript sink is redirected to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := logging.Init(true, logging.ParseLevel(cfg.LogLevel))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger, appOptions{transcriptOut: os.Stderr})
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.pipeline.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				logger.Info("shutting down")
				return nil
			}
			return err
		},
	}
}
