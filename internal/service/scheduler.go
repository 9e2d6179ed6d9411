package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/pkg/log"
)

// StartSchedule запускает периодические прогоны с шагом s.cfg.Schedule.Interval.
//
// Особенности:
//   - каждый тик обрабатывает последнее завершённое окно [trunc(now)-P, trunc(now));
//   - при RunOnStart первый прогон выполняется сразу;
//   - ошибки прогона логируются и не останавливают расписание;
//   - останавливается по ctx.
func (s *Service) StartSchedule(ctx context.Context) error {
	const op = "service/scheduler/StartSchedule"

	period := s.cfg.Schedule.Interval
	if period <= 0 {
		return fmt.Errorf("%s: schedule interval must be positive", op)
	}

	lg := log.From(ctx)
	lg.Info("schedule_start",
		slog.String("op", op),
		slog.Duration("interval", period),
		slog.Bool("run_on_start", s.cfg.Schedule.RunOnStart),
	)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	if s.cfg.Schedule.RunOnStart {
		s.tick(ctx, period)
	}

	for {
		select {
		case <-ctx.Done():
			lg.Info("schedule_stop", slog.String("op", op))
			return nil
		case <-ticker.C:
			s.tick(ctx, period)
		}
	}
}

// tick — один плановый прогон.
func (s *Service) tick(ctx context.Context, period time.Duration) {
	const op = "service/scheduler/tick"

	iv := models.LastCompleted(s.now(), period)
	if _, err := s.Run(ctx, iv); err != nil {
		lg := log.From(ctx)
		if IsRunInProgress(err) {
			lg.Warn("schedule_tick_skipped",
				slog.String("op", op),
				slog.String("interval", iv.ID()),
			)
			return
		}
		lg.Warn("schedule_tick_error",
			slog.String("op", op),
			slog.String("interval", iv.ID()),
			slog.String("err", err.Error()),
		)
	}
}

// IntervalFor строит окно по явной логической дате (YYYY-MM-DD или RFC3339)
// с периодом расписания. Используется для ручного прогона и бэкфилла.
func (s *Service) IntervalFor(date string) (models.Interval, error) {
	const op = "service/scheduler/IntervalFor"

	iv, err := models.ParseLogicalDate(date, s.cfg.Schedule.Interval)
	if err != nil {
		return models.Interval{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidArgument, err)
	}

	return iv, nil
}
