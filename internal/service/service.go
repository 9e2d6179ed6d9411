// service содержит оркестрацию news-etl: выгрузку, нормализацию,
// выкладку батча, загрузку в витрину и расписание прогонов.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pribylovaa/news-etl/internal/config"
	"github.com/pribylovaa/news-etl/internal/metrics"
	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/internal/newsapi"
	"github.com/pribylovaa/news-etl/internal/storage"
)

//go:generate mockgen -destination=../../mocks/mock_service.go -package=mocks github.com/pribylovaa/news-etl/internal/service Fetcher,Encoder,SecretResolver

var (
	// ErrSecret — секрет не разрешён на старте прогона.
	ErrSecret = errors.New("secret resolution failed")
	// ErrRunInProgress — в процессе уже идёт прогон.
	// Транспорт: 409 Conflict.
	ErrRunInProgress = errors.New("run in progress")
	// ErrEmptyBatch — попытка выложить пустой батч.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrInvalidArgument — некорректные входные аргументы (например, логическая дата).
	// Транспорт: 400 Bad Request.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Fetcher выгружает сырые записи по запросу.
// Реализация обязана уважать ctx и сама повторять временные сбои.
type Fetcher interface {
	Fetch(ctx context.Context, apiKey string, q models.Query) ([]models.RawArticle, error)
}

// Encoder сериализует батч в колоночный файл path.
type Encoder interface {
	Encode(ctx context.Context, path string, batch []models.Article) error
}

// SecretResolver возвращает значение секрета по имени.
type SecretResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Deps — внешние зависимости сервиса.
type Deps struct {
	Fetcher   Fetcher
	Encoder   Encoder
	Secrets   SecretResolver
	Objects   storage.ObjectStore
	Warehouse storage.Warehouse
	// Metrics может быть nil.
	Metrics *metrics.Metrics
}

// Service — описывает оркестрацию прогонов news-etl.
type Service struct {
	cfg       config.Config
	fetcher   Fetcher
	encoder   Encoder
	secrets   SecretResolver
	objects   storage.ObjectStore
	warehouse storage.Warehouse
	metrics   *metrics.Metrics

	now func() time.Time
	// running сериализует прогоны внутри процесса.
	running sync.Mutex
}

// New создает новый экземпляр Service.
func New(cfg config.Config, deps Deps) *Service {
	return &Service{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		encoder:   deps.Encoder,
		secrets:   deps.Secrets,
		objects:   deps.Objects,
		warehouse: deps.Warehouse,
		metrics:   deps.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Коды терминальной причины прогона (RunResult.Reason, метка news_etl_runs_total).
const (
	ReasonAuth           = "auth_error"
	ReasonRateLimited    = "rate_limited"
	ReasonUpstream       = "upstream_error"
	ReasonStorageWrite   = "storage_write_error"
	ReasonSchema         = "schema_inference_error"
	ReasonTableCreate    = "table_create_error"
	ReasonLoad           = "load_error"
	ReasonSummaryCompute = "summary_compute_error"
	ReasonSecret         = "secret_error"
	ReasonInternal       = "internal"
)

// Reason сводит ошибку прогона к одному коду причины.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSecret):
		return ReasonSecret
	case errors.Is(err, newsapi.ErrAuth):
		return ReasonAuth
	case errors.Is(err, newsapi.ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, newsapi.ErrUpstream):
		return ReasonUpstream
	case errors.Is(err, storage.ErrStorageWrite):
		return ReasonStorageWrite
	case errors.Is(err, storage.ErrSchemaInference):
		return ReasonSchema
	case errors.Is(err, storage.ErrTableCreate):
		return ReasonTableCreate
	case errors.Is(err, storage.ErrLoad):
		return ReasonLoad
	case errors.Is(err, storage.ErrSummaryCompute):
		return ReasonSummaryCompute
	default:
		return ReasonInternal
	}
}
