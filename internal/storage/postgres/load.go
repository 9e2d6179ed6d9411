package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/news-etl/internal/columnar"
	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/internal/storage"
	"github.com/pribylovaa/news-etl/pkg/log"
)

// CopyInto дописывает строки файла key в table.
//
// В одной транзакции:
//  1. фиксирует key в etl_loaded_objects (ON CONFLICT DO NOTHING);
//  2. если ключ уже был — откатывает и возвращает storage.ErrAlreadyLoaded;
//  3. копирует строки через COPY;
//  4. сохраняет число загруженных строк в журнал.
//
// Ошибка на любом шаге откатывает всё: частично загруженного файла не бывает.
func (w *Warehouse) CopyInto(ctx context.Context, table, key string) (int64, error) {
	const op = "storage/postgres/load/CopyInto"

	local, cleanup, err := w.fetchObject(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer cleanup()

	rows, err := columnar.ReadRows(ctx, local, models.Columns)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
	INSERT INTO etl_loaded_objects (object_key, target_table)
	VALUES ($1, $2)
	ON CONFLICT (object_key) DO NOTHING`, key, table)
	if err != nil {
		return 0, fmt.Errorf("%s: ledger: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("%s: %s: %w", op, key, storage.ErrAlreadyLoaded)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, models.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("%s: copy: %w", op, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE etl_loaded_objects SET rows_loaded = $2, loaded_at = now() WHERE object_key = $1`,
		key, n,
	); err != nil {
		return 0, fmt.Errorf("%s: ledger_update: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	log.From(ctx).Info("rows_copied",
		slog.String("op", op),
		slog.String("table", table),
		slog.String("key", key),
		slog.Int64("rows", n),
	)

	return n, nil
}

// ExecTx выполняет stmts в одной транзакции.
func (w *Warehouse) ExecTx(ctx context.Context, stmts ...string) error {
	const op = "storage/postgres/load/ExecTx"

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s: stmt %d: %w", op, i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	return nil
}
