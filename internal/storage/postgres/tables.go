package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/news-etl/internal/columnar"
	"github.com/pribylovaa/news-etl/internal/storage"
	"github.com/pribylovaa/news-etl/pkg/log"
)

// TableExists сообщает, есть ли таблица table в текущей схеме.
func (w *Warehouse) TableExists(ctx context.Context, table string) (bool, error) {
	const op = "storage/postgres/tables/TableExists"

	var exists bool
	err := w.db.QueryRow(ctx, `
	SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1
	)`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// CreateTableInferred создаёт table по схеме выложенного файла key.
//
// Ошибки:
//   - storage.ErrSchemaInference — файл не скачивается, пуст, не читается или содержит неизвестный тип;
//   - storage.ErrTableCreate — DDL отклонён базой.
//
// Одновременное создание той же таблицы другим процессом ошибкой не считается.
func (w *Warehouse) CreateTableInferred(ctx context.Context, table, key string) error {
	const op = "storage/postgres/tables/CreateTableInferred"

	local, cleanup, err := w.fetchObject(ctx, key)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrSchemaInference, err)
	}
	defer cleanup()

	cols, err := columnar.Describe(ctx, local)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrSchemaInference, err)
	}

	ddl, err := createTableSQL(table, cols)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrSchemaInference, err)
	}

	if _, err := w.db.Exec(ctx, ddl); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.DuplicateTable, pgerrcode.UniqueViolation:
				// Таблицу создали параллельно: схема та же, продолжаем.
				return nil
			case pgerrcode.InsufficientPrivilege:
				return fmt.Errorf("%s: %w: insufficient privilege: %w", op, storage.ErrTableCreate, err)
			}
		}
		return fmt.Errorf("%s: %w: %w", op, storage.ErrTableCreate, err)
	}

	log.From(ctx).Info("table_created",
		slog.String("op", op),
		slog.String("table", table),
		slog.Int("columns", len(cols)),
		slog.String("source_key", key),
	)

	return nil
}

// createTableSQL строит CREATE TABLE IF NOT EXISTS по колонкам файла.
func createTableSQL(table string, cols []columnar.Column) (string, error) {
	if len(cols) == 0 {
		return "", errors.New("no columns")
	}

	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		pgType, err := pgTypeFor(c.Type)
		if err != nil {
			return "", fmt.Errorf("column %q: %w", c.Name, err)
		}

		def := pgx.Identifier{c.Name}.Sanitize() + " " + pgType
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	return "CREATE TABLE IF NOT EXISTS " + pgx.Identifier{table}.Sanitize() +
		" (\n\t" + strings.Join(defs, ",\n\t") + "\n)", nil
}

var decimalRe = regexp.MustCompile(`^DECIMAL\((\d+),\s*(\d+)\)$`)

// pgTypeFor переводит тип DuckDB в тип PostgreSQL.
func pgTypeFor(duckType string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(duckType))

	if m := decimalRe.FindStringSubmatch(t); m != nil {
		return "NUMERIC(" + m[1] + "," + m[2] + ")", nil
	}

	switch t {
	case "VARCHAR", "TEXT", "STRING":
		return "TEXT", nil
	case "BOOLEAN":
		return "BOOLEAN", nil
	case "TINYINT", "SMALLINT", "UTINYINT":
		return "SMALLINT", nil
	case "INTEGER", "USMALLINT":
		return "INTEGER", nil
	case "BIGINT", "UINTEGER":
		return "BIGINT", nil
	case "UBIGINT", "HUGEINT":
		return "NUMERIC(38,0)", nil
	case "FLOAT", "REAL":
		return "REAL", nil
	case "DOUBLE":
		return "DOUBLE PRECISION", nil
	case "DATE":
		return "DATE", nil
	case "TIME":
		return "TIME", nil
	case "TIMESTAMP", "TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS", "DATETIME":
		return "TIMESTAMP", nil
	case "TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ":
		return "TIMESTAMPTZ", nil
	case "BLOB", "BYTEA":
		return "BYTEA", nil
	case "UUID":
		return "UUID", nil
	case "JSON":
		return "JSONB", nil
	}

	return "", fmt.Errorf("unsupported column type %q", duckType)
}

// fetchObject скачивает key во временный каталог. cleanup удаляет каталог.
func (w *Warehouse) fetchObject(ctx context.Context, key string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "news-etl-load-*")
	if err != nil {
		return "", nil, fmt.Errorf("mkdir_temp: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	local := filepath.Join(dir, filepath.Base(key))
	if err := w.objects.Download(ctx, key, local); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("download %s: %w", key, err)
	}

	return local, cleanup, nil
}
