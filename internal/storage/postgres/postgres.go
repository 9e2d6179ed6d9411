// postgres предоставляет реализацию storage.Warehouse на базе PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pribylovaa/news-etl/internal/storage"
	"github.com/pribylovaa/news-etl/migrations"
	"github.com/pribylovaa/news-etl/pkg/log"
)

// Warehouse — витрина поверх пула pgx.
// Выложенные файлы читает через objects: для вывода схемы и загрузки строк.
type Warehouse struct {
	db      *pgxpool.Pool
	objects storage.ObjectSource
}

// New создает и инициализирует пул соединений к PostgreSQL.
func New(ctx context.Context, dbURL string, objects storage.ObjectSource) (*Warehouse, error) {
	const op = "storage/postgres/New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Warehouse{db: db, objects: objects}, nil
}

// Close закрывает пул соединений.
// Должен вызываться при остановке приложения.
func (w *Warehouse) Close() {
	w.db.Close()
}

// Ping проверяет соединение с базой.
func (w *Warehouse) Ping(ctx context.Context) error {
	return w.db.Ping(ctx)
}

// Migrate применяет встроенные миграции по возрастанию номера.
// Миграции идемпотентны (IF NOT EXISTS), поэтому повторный запуск безопасен.
func (w *Warehouse) Migrate(ctx context.Context) error {
	const op = "storage/postgres/Migrate"

	names, err := migrationNames(migrations.FS)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	lg := log.From(ctx)

	for _, name := range names {
		body, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("%s: read %s: %w", op, name, err)
		}

		if _, err := w.db.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("%s: apply %s: %w", op, name, err)
		}

		lg.Debug("migration_applied", slog.String("op", op), slog.String("name", name))
	}

	return nil
}

// migrationNames возвращает *.up.sql, отсортированные по числовому префиксу.
func migrationNames(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		names = append(names, e.Name())
	}

	sort.SliceStable(names, func(i, j int) bool {
		return migrationNum(names[i]) < migrationNum(names[j])
	})

	return names, nil
}

func migrationNum(name string) int {
	prefix, _, _ := strings.Cut(name, "_")
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 1 << 30
	}

	return n
}

// Проверка выполнения контракта верхнего уровня.
var _ storage.Warehouse = (*Warehouse)(nil)
