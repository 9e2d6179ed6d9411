// columnar кодирует батчи статей в Parquet и читает Parquet-файлы обратно.
// Работа с форматом делегирована встроенному DuckDB (in-memory экземпляр на вызов).
package columnar

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"strings"

	duckdb "github.com/duckdb/duckdb-go/v2"

	"github.com/pribylovaa/news-etl/internal/models"
)

var (
	// ErrEmptyBatch — попытка закодировать пустой батч.
	ErrEmptyBatch = errors.New("columnar: empty batch")
	// ErrEmpty — файл пуст или не содержит колонок.
	ErrEmpty = errors.New("columnar: empty file")
	// ErrUnreadable — файл не читается как Parquet.
	ErrUnreadable = errors.New("columnar: unreadable file")
)

// Format — значение StagedObject.Format для файлов этого пакета.
const Format = "parquet"

// batchTable — имя временной таблицы внутри in-memory DuckDB.
const batchTable = "batch"

// batchDDL — схема временной таблицы; порядок колонок совпадает с models.Columns.
var batchDDL = `CREATE TABLE ` + batchTable + ` (
	` + models.ColSource + ` VARCHAR,
	` + models.ColAuthor + ` VARCHAR,
	` + models.ColTitle + ` VARCHAR NOT NULL,
	` + models.ColContent + ` VARCHAR NOT NULL,
	` + models.ColURL + ` VARCHAR NOT NULL,
	` + models.ColImageURL + ` VARCHAR NOT NULL,
	` + models.ColPublishedAt + ` TIMESTAMP NOT NULL,
	` + models.ColFetchedAt + ` TIMESTAMP NOT NULL
)`

// Column — колонка Parquet-файла в терминах DuckDB.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Encoder пишет батчи в Parquet. Нулевое значение готово к работе.
type Encoder struct{}

// Encode пишет батч в Parquet-файл path. Существующий файл перезаписывается.
func (Encoder) Encode(ctx context.Context, path string, batch []models.Article) error {
	return Encode(ctx, path, batch)
}

// Encode пишет батч в Parquet-файл path через Appender API DuckDB.
func Encode(ctx context.Context, path string, batch []models.Article) error {
	const op = "columnar/Encode"

	if len(batch) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyBatch)
	}

	db, closeFn, err := openMemory()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeFn()

	if _, err := db.ExecContext(ctx, batchDDL); err != nil {
		return fmt.Errorf("%s: create_table: %w", op, err)
	}

	if err := appendBatch(ctx, db, batch); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	copySQL := fmt.Sprintf("COPY %s TO %s (FORMAT PARQUET)", batchTable, quoteLiteral(path))
	if _, err := db.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("%s: copy: %w", op, err)
	}

	return nil
}

// appendBatch добавляет строки через нативное соединение того же пула.
func appendBatch(ctx context.Context, db *sql.DB, batch []models.Article) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("conn: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(dc any) error {
		driverConn, ok := dc.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver conn %T", dc)
		}

		app, err := duckdb.NewAppenderFromConn(driverConn, "", batchTable)
		if err != nil {
			return fmt.Errorf("new_appender: %w", err)
		}

		for i, a := range batch {
			if err := app.AppendRow(rowValues(a)...); err != nil {
				_ = app.Close()
				return fmt.Errorf("append_row %d: %w", i, err)
			}
		}

		if err := app.Close(); err != nil {
			return fmt.Errorf("appender_close: %w", err)
		}

		return nil
	})
}

func rowValues(a models.Article) []driver.Value {
	vals := a.Values()
	out := make([]driver.Value, len(vals))
	for i, v := range vals {
		out[i] = v
	}

	return out
}

// Describe возвращает схему Parquet-файла.
//
// Ошибки:
//   - ErrEmpty — файл нулевой длины или без колонок;
//   - ErrUnreadable — DuckDB не смог прочитать файл.
func Describe(ctx context.Context, path string) ([]Column, error) {
	const op = "columnar/Describe"

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnreadable, err)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmpty)
	}

	db, closeFn, err := openMemory()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer closeFn()

	rows, err := db.QueryContext(ctx, "DESCRIBE SELECT * FROM read_parquet("+quoteLiteral(path)+")")
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnreadable, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnreadable, err)
	}

	var out []Column
	for rows.Next() {
		// column_name, column_type, null, key, default, extra
		cells := make([]sql.NullString, len(names))
		dest := make([]any, len(names))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}

		col := Column{Name: cells[0].String, Nullable: true}
		if len(cells) > 1 {
			col.Type = cells[1].String
		}
		if len(cells) > 2 {
			col.Nullable = !strings.EqualFold(cells[2].String, "NO")
		}
		out = append(out, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnreadable, err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmpty)
	}

	return out, nil
}

// ReadRows читает все строки файла в порядке колонок columns.
// NULL возвращается как nil, TIMESTAMP — как time.Time.
func ReadRows(ctx context.Context, path string, columns []string) ([][]any, error) {
	const op = "columnar/ReadRows"

	if len(columns) == 0 {
		return nil, fmt.Errorf("%s: no columns", op)
	}

	db, closeFn, err := openMemory()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer closeFn()

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}

	query := fmt.Sprintf("SELECT %s FROM read_parquet(%s)", strings.Join(quoted, ", "), quoteLiteral(path))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnreadable, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnreadable, err)
	}

	return out, nil
}

// openMemory открывает in-memory DuckDB. closeFn закрывает пул и коннектор.
func openMemory() (*sql.DB, func(), error) {
	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("new_connector: %w", err)
	}

	db := sql.OpenDB(connector)
	// Одно соединение: Appender и COPY должны видеть одну и ту же транзакционную историю.
	db.SetMaxOpenConns(1)

	return db, func() {
		_ = db.Close()
		_ = connector.Close()
	}, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
