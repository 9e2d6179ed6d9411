package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pribylovaa/news-etl/internal/metrics"
	"github.com/pribylovaa/news-etl/internal/models"
)

// newRunCmd — один прогон окна и выход. Код возврата отражает исход прогона.
func newRunCmd(configPath *string) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once for one interval",
		Long:  "Run the pipeline once. Without --date the most recently completed interval is processed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadEnvAndConfig(*configPath)
			if err != nil {
				return err
			}
			log.Info("starting news-etl", slog.String("env", cfg.Env), slog.String("mode", "run"))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			iv := models.LastCompleted(time.Now(), cfg.Schedule.Interval)
			if date != "" {
				if iv, err = a.svc.IntervalFor(date); err != nil {
					log.Error("invalid_date", slog.String("date", date), slog.String("err", err.Error()))
					return err
				}
			}

			res, runErr := a.svc.Run(ctx, iv)

			if url := cfg.Metrics.PushgatewayURL; url != "" {
				pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Timeouts.Connect)
				if err := metrics.Push(pushCtx, url, cfg.Metrics.Job, a.registry); err != nil {
					log.Warn("metrics_push_failed", slog.String("err", err.Error()))
				}
				cancel()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			_ = enc.Encode(res)

			return runErr
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "logical date of the interval (YYYY-MM-DD or RFC3339)")

	return cmd
}
