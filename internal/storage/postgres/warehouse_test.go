package postgres

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pribylovaa/news-etl/internal/columnar"
	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/internal/storage"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Интеграционные тесты для пакета postgres:
// — поднимают реальный PostgreSQL через testcontainers-go (образ postgres:16-alpine);
// — применяют встроенные миграции через Migrate;
// — выложенные объекты подменяются локальными файлами (dirSource);
// — проверяют:
//    CreateTableInferred: схему из Parquet-файла и ErrSchemaInference на пустом файле;
//    CopyInto: загрузку ровно один раз по ключу (ErrAlreadyLoaded на повторе);
//    ExecTx: атомарность набора операторов.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/postgres -v -race -count=1

// dirSource — storage.ObjectSource поверх локального каталога.
type dirSource struct{ dir string }

func (d dirSource) Download(_ context.Context, key, localPath string) error {
	src, err := os.Open(filepath.Join(d.dir, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return err
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// put кладёт Parquet-файл батча под ключ key.
func (d dirSource) put(t *testing.T, key string, batch []models.Article) {
	t.Helper()
	p := filepath.Join(d.dir, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, columnar.Encode(context.Background(), p, batch))
}

func startPostgres(t *testing.T) (*Warehouse, dirSource) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "docker.io/postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	t.Logf("starting postgres container with image=%q", req.Image)
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
		ProviderType:     tc.ProviderDocker,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "5432/tcp")
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	src := dirSource{dir: t.TempDir()}

	// Порт может открыться раньше, чем база примет соединения.
	var wh *Warehouse
	require.Eventually(t, func() bool {
		wh, err = New(ctx, dsn, src)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(wh.Close)

	require.NoError(t, wh.Migrate(ctx))
	require.NoError(t, wh.Migrate(ctx), "migrations must be idempotent")

	return wh, src
}

func strp(s string) *string { return &s }

func batchOf(n int, author *string) []models.Article {
	out := make([]models.Article, 0, n)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out = append(out, models.Article{
			Source:      strp(fmt.Sprintf("src-%d", i%2)),
			Author:      author,
			Title:       fmt.Sprintf("title %d", i),
			Content:     "body.",
			URL:         fmt.Sprintf("https://example.org/%d", i),
			PublishedAt: base.Add(time.Duration(i) * time.Minute),
			FetchedAt:   base.Add(24 * time.Hour),
		})
	}
	return out
}

func TestIntegration_CreateTableInferred_And_CopyInto_Once(t *testing.T) {
	wh, src := startPostgres(t)
	ctx := context.Background()

	const table = "news_api_data"
	key := "news_data_analysis/technology/20240501T000000Z.parquet"
	src.put(t, key, batchOf(5, strp("Jane")))

	ok, err := wh.TableExists(ctx, table)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, wh.CreateTableInferred(ctx, table, key))
	// Повторное создание — no-op.
	require.NoError(t, wh.CreateTableInferred(ctx, table, key))

	ok, err = wh.TableExists(ctx, table)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := wh.CopyInto(ctx, table, key)
	require.NoError(t, err)
	require.EqualValues(t, 5, n)

	_, err = wh.CopyInto(ctx, table, key)
	require.ErrorIs(t, err, storage.ErrAlreadyLoaded)

	var count int
	require.NoError(t, wh.db.QueryRow(ctx, `SELECT count(*) FROM news_api_data`).Scan(&count))
	require.Equal(t, 5, count)

	var logged int64
	require.NoError(t, wh.db.QueryRow(ctx,
		`SELECT rows_loaded FROM etl_loaded_objects WHERE object_key = $1`, key).Scan(&logged))
	require.EqualValues(t, 5, logged)

	// Второй интервал дописывается.
	key2 := "news_data_analysis/technology/20240502T000000Z.parquet"
	src.put(t, key2, batchOf(3, nil))
	n, err = wh.CopyInto(ctx, table, key2)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	require.NoError(t, wh.db.QueryRow(ctx, `SELECT count(*) FROM news_api_data WHERE author IS NULL`).Scan(&count))
	require.Equal(t, 3, count)
}

func TestIntegration_CreateTableInferred_EmptyFile(t *testing.T) {
	wh, src := startPostgres(t)
	ctx := context.Background()

	key := "news_data_analysis/technology/empty.parquet"
	p := filepath.Join(src.dir, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, nil, 0o600))

	err := wh.CreateTableInferred(ctx, "news_api_data", key)
	require.ErrorIs(t, err, storage.ErrSchemaInference)

	ok, err := wh.TableExists(ctx, "news_api_data")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIntegration_CopyInto_MissingObject(t *testing.T) {
	wh, _ := startPostgres(t)

	_, err := wh.CopyInto(context.Background(), "news_api_data", "missing.parquet")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_CreateTableInferred_MissingObject(t *testing.T) {
	wh, _ := startPostgres(t)

	err := wh.CreateTableInferred(context.Background(), "news_api_data", "missing.parquet")
	require.ErrorIs(t, err, storage.ErrSchemaInference)

	ok, err := wh.TableExists(context.Background(), "news_api_data")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIntegration_ExecTx_Atomic(t *testing.T) {
	wh, _ := startPostgres(t)
	ctx := context.Background()

	err := wh.ExecTx(ctx,
		`CREATE TABLE tx_atomic (id INT)`,
		`INSERT INTO tx_atomic VALUES (1)`,
		`SELECT * FROM no_such_table`,
	)
	require.Error(t, err)

	ok, err := wh.TableExists(ctx, "tx_atomic")
	require.NoError(t, err)
	require.False(t, ok, "failed transaction must leave no trace")

	require.NoError(t, wh.ExecTx(ctx, `CREATE TABLE tx_atomic (id INT)`, `INSERT INTO tx_atomic VALUES (1)`))
	ok, err = wh.TableExists(ctx, "tx_atomic")
	require.NoError(t, err)
	require.True(t, ok)
}
