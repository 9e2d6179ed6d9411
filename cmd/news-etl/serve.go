package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/pribylovaa/news-etl/internal/http"
)

// newServeCmd — долгоживущий режим: расписание прогонов и служебный HTTP.
func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler with health, metrics and manual trigger endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadEnvAndConfig(*configPath)
			if err != nil {
				return err
			}
			log.Info("starting news-etl", slog.String("env", cfg.Env), slog.String("mode", "serve"))

			rootCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var ready atomic.Bool

			srv := &http.Server{
				Addr:              cfg.HTTP.Addr(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			a, err := newApp(rootCtx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			srv.Handler = httpapi.NewRouter(a.svc, httpapi.Options{
				Logger:   log,
				Gatherer: a.registry,
				Ready:    a.readiness(rootCtx, &ready),
			})

			g, ctx := errgroup.WithContext(rootCtx)

			g.Go(func() error {
				log.Info("http_listen_start", slog.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http_serve_failed", slog.String("err", err.Error()))
					return err
				}
				return nil
			})

			g.Go(func() error {
				return a.svc.StartSchedule(ctx)
			})

			g.Go(func() error {
				<-ctx.Done()
				log.Info("shutdown_requested")
				ready.Store(false)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Warn("http_force_stop", slog.String("err", err.Error()))
					return srv.Close()
				}
				log.Info("http_stopped")
				return nil
			})

			ready.Store(true)

			err = g.Wait()
			log.Info("service_stopped")
			return err
		},
	}
}
