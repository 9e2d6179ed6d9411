package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/news-etl/internal/metrics"
	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/pkg/log"
)

// Статусы прогона.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// RunResult — итог одного прогона.
type RunResult struct {
	RunID         string      `json:"run_id"`
	Interval      string      `json:"interval"`
	Status        string      `json:"status"`
	Reason        string      `json:"reason,omitempty"`
	Error         string      `json:"error,omitempty"`
	Fetched       int         `json:"fetched"`
	Normalized    int         `json:"normalized"`
	Dropped       int         `json:"dropped"`
	StagedKey     string      `json:"staged_key,omitempty"`
	RowsLoaded    int64       `json:"rows_loaded"`
	AlreadyLoaded bool        `json:"already_loaded,omitempty"`
	LoadStates    []LoadState `json:"load_states,omitempty"`
	DurationMS    int64       `json:"duration_ms"`
}

// Run выполняет один прогон окна iv: секрет → выгрузка → нормализация → выкладка → загрузка.
//
// Особенности:
//   - ноль записей после выгрузки или нормализации — успех без выкладки и загрузки;
//   - первая фатальная ошибка прерывает прогон, следующие шаги не выполняются;
//   - после успешной загрузки выложенный объект удаляется (сбой удаления — warning),
//     после неуспешной остаётся для разбора;
//   - одновременно в процессе идёт не больше одного прогона (ErrRunInProgress).
func (s *Service) Run(ctx context.Context, iv models.Interval) (RunResult, error) {
	const op = "service/run/Run"

	res := RunResult{RunID: uuid.NewString(), Interval: iv.String()}

	if !s.running.TryLock() {
		res.Status = StatusFailed
		return res, fmt.Errorf("%s: %w", op, ErrRunInProgress)
	}
	defer s.running.Unlock()

	if d := s.cfg.Timeouts.Run; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	ctx = log.With(ctx, slog.String("run_id", res.RunID), slog.String("interval", iv.ID()))
	lg := log.From(ctx)
	started := s.now()

	lg.Info("run_start", slog.String("op", op), slog.String("window", iv.String()))

	err := s.run(ctx, iv, &res)

	res.DurationMS = s.now().Sub(started).Milliseconds()
	if err != nil {
		res.Status = StatusFailed
		res.Reason = Reason(err)
		res.Error = err.Error()
		s.metrics.RunFinished(res.Reason, time.Duration(res.DurationMS)*time.Millisecond)

		lg.Error("run_failed",
			slog.String("op", op),
			slog.String("reason", res.Reason),
			slog.String("err", err.Error()),
		)
		return res, err
	}

	res.Status = StatusSuccess
	s.metrics.RunFinished(StatusSuccess, time.Duration(res.DurationMS)*time.Millisecond)

	lg.Info("run_done",
		slog.String("op", op),
		slog.Int("fetched", res.Fetched),
		slog.Int("normalized", res.Normalized),
		slog.Int("dropped", res.Dropped),
		slog.Int64("rows_loaded", res.RowsLoaded),
		slog.Bool("already_loaded", res.AlreadyLoaded),
		slog.Int64("duration_ms", res.DurationMS),
	)

	return res, nil
}

func (s *Service) run(ctx context.Context, iv models.Interval, res *RunResult) error {
	const op = "service/run/run"

	lg := log.From(ctx)

	apiKey, err := s.secrets.Resolve(ctx, s.cfg.Secrets.NewsAPIKeyName)
	if err != nil {
		return fmt.Errorf("%s: %w: %s: %w", op, ErrSecret, s.cfg.Secrets.NewsAPIKeyName, err)
	}

	raws, err := s.fetcher.Fetch(ctx, apiKey, s.query(iv))
	if err != nil {
		return fmt.Errorf("%s: fetch: %w", op, err)
	}
	res.Fetched = len(raws)
	s.metrics.Articles(metrics.StageFetched, len(raws))

	if len(raws) == 0 {
		lg.Info("run_empty", slog.String("op", op), slog.String("stage", "fetch"))
		return nil
	}

	articles, dropped := Normalize(ctx, raws, s.now(), s.cfg.Normalizer.MaxContentLen)
	res.Normalized = len(articles)
	res.Dropped = dropped
	s.metrics.Articles(metrics.StageNormalized, len(articles))
	s.metrics.Articles(metrics.StageDropped, dropped)

	lg.Info("articles_normalized",
		slog.String("op", op),
		slog.Int("in", len(raws)),
		slog.Int("out", len(articles)),
		slog.Int("dropped", dropped),
	)

	if len(articles) == 0 {
		lg.Info("run_empty", slog.String("op", op), slog.String("stage", "normalize"))
		return nil
	}

	obj, err := s.WriteBatch(ctx, iv, articles)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res.StagedKey = obj.Key

	rep, err := s.Load(ctx, obj)
	res.LoadStates = rep.States
	res.RowsLoaded = rep.RowsLoaded
	res.AlreadyLoaded = rep.AlreadyLoaded
	if err != nil {
		lg.Warn("staged_object_kept", slog.String("op", op), slog.String("key", obj.Key))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.RowsLoaded(rep.RowsLoaded)

	// Удаление — не часть контракта загрузки: повторная загрузка того же ключа отсекается журналом.
	if err := s.objects.Delete(ctx, obj.Key); err != nil {
		lg.Warn("staged_object_delete_failed",
			slog.String("op", op),
			slog.String("key", obj.Key),
			slog.String("err", err.Error()),
		)
	}

	return nil
}

// query строит запрос к NewsAPI для окна iv. Границы NewsAPI включительные,
// поэтому правая граница сдвигается на секунду назад.
func (s *Service) query(iv models.Interval) models.Query {
	return models.Query{
		Terms:    s.cfg.NewsAPI.Query,
		From:     iv.Start,
		To:       iv.End.Add(-time.Second),
		Language: s.cfg.NewsAPI.Language,
		SortBy:   s.cfg.NewsAPI.SortBy,
		PageSize: s.cfg.NewsAPI.PageSize,
		MaxPages: s.cfg.NewsAPI.MaxPages,
	}
}

// IsRunInProgress сообщает, что ошибка вызвана уже идущим прогоном.
func IsRunInProgress(err error) bool {
	return errors.Is(err, ErrRunInProgress)
}
