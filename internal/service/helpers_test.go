package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pribylovaa/news-etl/internal/config"
	"github.com/pribylovaa/news-etl/internal/metrics"
	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/mocks"
	"github.com/stretchr/testify/require"
)

// testDeps — моки всех зависимостей сервиса.
type testDeps struct {
	fetcher   *mocks.MockFetcher
	encoder   *mocks.MockEncoder
	secrets   *mocks.MockSecretResolver
	objects   *mocks.MockObjectStore
	warehouse *mocks.MockWarehouse
}

// testConfig — конфиг со значениями по умолчанию и быстрыми повторами.
func testConfig() config.Config {
	return config.Config{
		Env: "local",
		S3: config.S3Config{
			Bucket:        "news",
			Prefix:        "news_data_analysis",
			StagingPrefix: "_staging",
		},
		NewsAPI: config.NewsAPIConfig{
			Query:    "technology",
			Language: "en",
			SortBy:   "popularity",
			PageSize: 100,
			MaxPages: 10,
		},
		Normalizer: config.NormalizerConfig{MaxContentLen: 200},
		Warehouse: config.WarehouseConfig{
			RawTable:     "news_api_data",
			SummaryTable: "summary_news",
			AuthorTable:  "author_activity",
		},
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
		Schedule: config.ScheduleConfig{Interval: 24 * time.Hour},
		Secrets:  config.SecretsConfig{Backend: "env", NewsAPIKeyName: "NEWS_API_KEY"},
	}
}

// newTestService — сервис на моках с фиксированными часами.
func newTestService(t *testing.T, cfg config.Config, m *metrics.Metrics) (*Service, testDeps) {
	t.Helper()

	ctrl := gomock.NewController(t)
	d := testDeps{
		fetcher:   mocks.NewMockFetcher(ctrl),
		encoder:   mocks.NewMockEncoder(ctrl),
		secrets:   mocks.NewMockSecretResolver(ctrl),
		objects:   mocks.NewMockObjectStore(ctrl),
		warehouse: mocks.NewMockWarehouse(ctrl),
	}

	svc := New(cfg, Deps{
		Fetcher:   d.fetcher,
		Encoder:   d.encoder,
		Secrets:   d.secrets,
		Objects:   d.objects,
		Warehouse: d.warehouse,
		Metrics:   m,
	})
	svc.now = func() time.Time { return fetchedAt }

	return svc, d
}

// writeFakeParquet — Encoder-заглушка: пишет непустой файл по пути.
func writeFakeParquet(_ context.Context, path string, batch []models.Article) error {
	return os.WriteFile(path, []byte("PAR1"), 0o600)
}

func testInterval() models.Interval {
	return models.NewInterval(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 24*time.Hour)
}

// requireGone — файл по пути удалён.
func requireGone(t *testing.T, path string) {
	t.Helper()
	require.NotEmpty(t, path)
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "temporary file %s must be removed", path)
}
