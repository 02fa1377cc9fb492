package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/valuebot/config"
	"github.com/alejandrodnm/valuebot/internal/application/engine"
	"github.com/alejandrodnm/valuebot/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfg *config.Config) *cobra.Command {
	var (
		addr       string
		background bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP/JSON API",
		Long: `Serve the value bet, arbitrage, statistics and alert endpoints under /api/v1,
plus /healthz and Prometheus /metrics. With --scan the periodic scan loop runs
in the same process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			a, err := newApp(cmd.Context(), cfg, cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &http.Server{
				Addr: cfg.HTTP.Addr,
				Handler: server.New(a.engine, server.Options{
					Policy:          cfg.Policy,
					Sports:          cfg.Scanner.Sports,
					TotalStake:      cfg.Scanner.TotalStake,
					MinProfitMargin: cfg.Scanner.MinProfitMargin,
					CORSOrigins:     cfg.HTTP.CORSOrigins,
					RequestTimeout:  time.Duration(cfg.HTTP.RequestTimeoutSeconds) * time.Second,
					Metrics:         a.metrics.Handler(),
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				slog.Info("http server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				slog.Info("http server shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			if background {
				g.Go(func() error {
					return engine.NewRunner(engine.RunnerConfig{
						Interval: cfg.ScanInterval(),
						Sports:   cfg.Scanner.Sports,
						Policy:   cfg.Policy,
					}, a.engine, nil).Run(ctx)
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}
			slog.Info("valuebot stopped cleanly")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config http.addr)")
	cmd.Flags().BoolVar(&background, "scan", false, "also run the periodic scan loop")
	return cmd
}
