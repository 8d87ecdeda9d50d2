package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AndreyKarmanov/aw-garmin/internal/api"
	"github.com/AndreyKarmanov/aw-garmin/internal/auth"
	xlog "github.com/AndreyKarmanov/aw-garmin/internal/log"
	"github.com/AndreyKarmanov/aw-garmin/internal/scheduler"
	"github.com/AndreyKarmanov/aw-garmin/internal/syncer"
	httptransport "github.com/AndreyKarmanov/aw-garmin/internal/transport/http"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync every SYNC_INTERVAL and serve the HTTP API",
	Long: `Run the sync loop in the foreground. The first pass starts immediately, later passes
every SYNC_INTERVAL. A pass still running when the next tick fires causes that tick to be skipped.

HTTP endpoints on HTTP_ADDRESS:
  GET  /healthz         liveness, no auth
  GET  /metrics         Prometheus metrics, no auth
  GET  /v1/watermarks   committed watermarks and last run (scope sync:read)
  POST /v1/sync         run now, body {"date": "YYYY-MM-DD", "days_back": N} (scope sync:write)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runDaemon(ctx)
	},
}

func runDaemon(ctx context.Context) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := xlog.WithComponent("daemon")
	sched := scheduler.New(a.orchestrator, cfg.SyncInterval, syncer.RunOptions{DaysBack: cfg.DaysBack})
	handler := api.NewHandler(sched, a.store, cfg.DaysBack).Routes(
		auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		api.RateLimit{Requests: 60, Window: time.Minute},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Start(gctx)
	})
	g.Go(func() error {
		return httptransport.ListenAndServe(gctx, httptransport.DefaultServerConfig(cfg.HTTPAddress), handler)
	})

	logger.Info().
		Str("http_address", cfg.HTTPAddress).
		Dur("interval", cfg.SyncInterval).
		Str("sink", cfg.Sink).
		Str("state_backend", cfg.StateBackend).
		Msg("daemon started")
	return g.Wait()
}
