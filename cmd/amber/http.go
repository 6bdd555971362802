package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hejijunhao/amber/internal/logging"
	"github.com/hejijunhao/amber/internal/metrics"
	"github.com/hejijunhao/amber/internal/server"
	"github.com/hejijunhao/amber/internal/watch"
)

const sweepInterval = time.Minute

func newHTTPCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the chatbot over HTTP",
		Long: `http serves POST /ask, DELETE /sessions/:id, GET /topics, GET /healthz and
GET /metrics. With a sqlite transcript, GET /sessions/:id/messages returns
the stored conversation. With tree.watch set, edits to the tree source are
picked up without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			logger := logging.Init(false, logging.ParseLevel(cfg.LogLevel))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			a, err := newApp(ctx, cfg, logger, appOptions{metrics: m})
			if err != nil {
				return err
			}
			defer a.Close()

			srvOpts := []server.Option{server.WithGatherer(reg), server.WithLogger(logger)}
			if a.history != nil {
				srvOpts = append(srvOpts, server.WithHistory(a.history))
			}
			srv := server.New(a.pipeline, a.engine, srvOpts...)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("listening", "addr", cfg.HTTP.Addr)
				return srv.ListenAndServe(gctx, cfg.HTTP.Addr)
			})
			if cfg.Tree.Watch {
				w := watch.New(cfg.Tree.Path, func(ctx context.Context) error {
					return a.reload(ctx, cfg.Tree.Path, m)
				}, watch.WithLogger(logger))
				g.Go(func() error { return w.Run(gctx) })
			}
			if a.memory != nil {
				g.Go(func() error {
					sweepSessions(gctx, a, m)
					return nil
				})
			}

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			logger.Info("shut down")
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

// sweepSessions drops expired in-memory sessions and publishes the live count.
func sweepSessions(ctx context.Context, a *app, m *metrics.Metrics) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		m.Sessions(a.memory.Len())
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.memory.Sweep(); n > 0 {
				a.logger.Debug("sessions expired", "count", n)
			}
		}
	}
}
