package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pribylovaa/news-etl/internal/config"
	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/internal/storage"
	"github.com/pribylovaa/news-etl/pkg/log"
	"github.com/pribylovaa/news-etl/pkg/retry"
)

// LoadState — шаг загрузки.
type LoadState string

const (
	StateTableCheck       LoadState = "table_check"
	StateCreateTable      LoadState = "create_table"
	StateLoad             LoadState = "load"
	StateRefreshSummaries LoadState = "refresh_summaries"
	StateDone             LoadState = "done"
	StateFailed           LoadState = "failed"
)

// LoadReport — итог загрузки одного выложенного объекта.
type LoadReport struct {
	Key string
	// States — пройденные шаги по порядку, последний — done или failed.
	States        []LoadState
	TableCreated  bool
	RowsLoaded    int64
	AlreadyLoaded bool
}

func (r *LoadReport) enter(st LoadState) { r.States = append(r.States, st) }

// Final возвращает последний шаг.
func (r LoadReport) Final() LoadState {
	if len(r.States) == 0 {
		return ""
	}

	return r.States[len(r.States)-1]
}

// Load проводит объект obj через table_check → (create_table) → load → refresh_summaries → done.
//
// Особенности:
//   - проверка таблицы, загрузка и пересчёт сводок повторяются по политике retry;
//   - создание таблицы не повторяется: сбой здесь — права или схема;
//   - объект, уже загруженный ранее, не дописывается повторно, но сводки пересчитываются;
//   - сбой пересчёта сводок не откатывает уже выполненную загрузку.
func (s *Service) Load(ctx context.Context, obj models.StagedObject) (LoadReport, error) {
	const op = "service/loader/Load"

	rep := LoadReport{Key: obj.Key}
	lg := log.From(ctx).With(slog.String("key", obj.Key))
	policy := s.cfg.Retry.Policy()
	raw := s.cfg.Warehouse.RawTable

	fail := func(st LoadState, err error) (LoadReport, error) {
		rep.enter(StateFailed)
		lg.Error("load_failed",
			slog.String("op", op),
			slog.String("state", string(st)),
			slog.String("err", err.Error()),
		)
		return rep, err
	}

	// table_check
	rep.enter(StateTableCheck)
	var exists bool
	err := retry.Do(ctx, policy, op, func(ctx context.Context) error {
		ok, err := s.warehouse.TableExists(ctx, raw)
		if err != nil {
			return err
		}
		exists = ok
		return nil
	})
	if err != nil {
		return fail(StateTableCheck, fmt.Errorf("%s: table_check: %w: %w", op, storage.ErrTableCreate, err))
	}

	// create_table
	if !exists {
		rep.enter(StateCreateTable)
		if err := s.warehouse.CreateTableInferred(ctx, raw, obj.Key); err != nil {
			if !errors.Is(err, storage.ErrSchemaInference) && !errors.Is(err, storage.ErrTableCreate) {
				err = fmt.Errorf("%w: %w", storage.ErrTableCreate, err)
			}
			return fail(StateCreateTable, fmt.Errorf("%s: create_table: %w", op, err))
		}
		rep.TableCreated = true
		lg.Info("raw_table_created", slog.String("op", op), slog.String("table", raw))
	}

	// load
	rep.enter(StateLoad)
	err = retry.Do(ctx, policy, op, func(ctx context.Context) error {
		n, err := s.warehouse.CopyInto(ctx, raw, obj.Key)
		if err != nil {
			if errors.Is(err, storage.ErrAlreadyLoaded) || errors.Is(err, storage.ErrNotFound) {
				return retry.Permanent(err)
			}
			return err
		}
		rep.RowsLoaded = n
		return nil
	})
	switch {
	case err == nil:
		lg.Info("rows_loaded", slog.String("op", op), slog.Int64("rows", rep.RowsLoaded))
	case errors.Is(err, storage.ErrAlreadyLoaded):
		rep.AlreadyLoaded = true
		lg.Info("object_already_loaded", slog.String("op", op))
	default:
		return fail(StateLoad, fmt.Errorf("%s: load: %w: %w", op, storage.ErrLoad, err))
	}

	// refresh_summaries
	rep.enter(StateRefreshSummaries)
	stmts := SummaryStatements(s.cfg.Warehouse)
	err = retry.Do(ctx, policy, op, func(ctx context.Context) error {
		return s.warehouse.ExecTx(ctx, stmts...)
	})
	if err != nil {
		return fail(StateRefreshSummaries, fmt.Errorf("%s: refresh_summaries: %w: %w", op, storage.ErrSummaryCompute, err))
	}

	rep.enter(StateDone)
	return rep, nil
}

// SummaryStatements — полная замена сводных таблиц по текущему содержимому сырой.
// Выполняются одной транзакцией: читатели видят либо старые сводки, либо новые.
func SummaryStatements(w config.WarehouseConfig) []string {
	raw := quoteIdent(w.RawTable)
	summary := quoteIdent(w.SummaryTable)
	authors := quoteIdent(w.AuthorTable)

	return []string{
		`DROP TABLE IF EXISTS ` + summary,
		`CREATE TABLE ` + summary + ` AS
		SELECT
			source            AS news_source,
			COUNT(*)          AS article_count,
			MAX(published_at) AS latest_article_date,
			MIN(published_at) AS earliest_article_date
		FROM ` + raw + `
		GROUP BY source
		ORDER BY article_count DESC`,
		`DROP TABLE IF EXISTS ` + authors,
		`CREATE TABLE ` + authors + ` AS
		SELECT
			author,
			COUNT(*)               AS article_count,
			MAX(published_at)      AS latest_article_date,
			COUNT(DISTINCT source) AS distinct_sources
		FROM ` + raw + `
		WHERE author IS NOT NULL
		GROUP BY author
		ORDER BY article_count DESC`,
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
