package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pribylovaa/news-etl/internal/columnar"
	"github.com/pribylovaa/news-etl/internal/config"
	"github.com/pribylovaa/news-etl/internal/metrics"
	"github.com/pribylovaa/news-etl/internal/newsapi"
	"github.com/pribylovaa/news-etl/internal/secrets"
	"github.com/pribylovaa/news-etl/internal/service"
	"github.com/pribylovaa/news-etl/internal/storage/minio"
	"github.com/pribylovaa/news-etl/internal/storage/postgres"
	"github.com/pribylovaa/news-etl/pkg/redact"
)

// readinessTimeout — бюджет ping зависимостей на один запрос /healthz.
const readinessTimeout = 2 * time.Second

// app — собранные зависимости одного процесса.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	svc      *service.Service
	registry *prometheus.Registry

	// pingers — зависимости, проверяемые в /healthz.
	pingers []func(ctx context.Context) error
	closers []func()
}

// close освобождает ресурсы в обратном порядке.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// ping проверяет доступность S3 и витрины.
func (a *app) ping(ctx context.Context) error {
	for _, p := range a.pingers {
		if err := p(ctx); err != nil {
			return err
		}
	}
	return nil
}

// readiness — проверка готовности для /healthz: флаг started взведён
// и все зависимости отвечают на ping.
func (a *app) readiness(ctx context.Context, started *atomic.Bool) func() bool {
	return func() bool {
		if !started.Load() {
			return false
		}
		pingCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		defer cancel()
		if err := a.ping(pingCtx); err != nil {
			a.log.Warn("readiness_ping_failed", slog.String("err", err.Error()))
			return false
		}
		return true
	}
}

// loadEnvAndConfig подхватывает .env (если есть), загружает конфиг и настраивает логгер.
func loadEnvAndConfig(configPath string) (*config.Config, *slog.Logger, error) {
	// .env необязателен: в проде переменные приходят из окружения.
	envErr := godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	if envErr != nil {
		log.Debug("dotenv_not_loaded", slog.String("err", envErr.Error()))
	}

	return cfg, log, nil
}

// newApp поднимает секреты, S3, витрину и сервис.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}

	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	connCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Connect)
	defer cancel()

	resolver, err := a.secretResolver(connCtx)
	if err != nil {
		return nil, err
	}

	accessKey, err := resolver.Resolve(connCtx, cfg.Secrets.S3AccessKeyName)
	if err != nil {
		log.Error("secret_resolve_failed", slog.String("name", cfg.Secrets.S3AccessKeyName), slog.String("err", err.Error()))
		return nil, fmt.Errorf("resolve s3 access key: %w: %w", service.ErrSecret, err)
	}
	secretKey, err := resolver.Resolve(connCtx, cfg.Secrets.S3SecretKeyName)
	if err != nil {
		log.Error("secret_resolve_failed", slog.String("name", cfg.Secrets.S3SecretKeyName), slog.String("err", err.Error()))
		return nil, fmt.Errorf("resolve s3 secret key: %w: %w", service.ErrSecret, err)
	}
	log.Info("s3_credentials_resolved", slog.String("access_key", redact.Secret(accessKey)))

	objects, err := minio.New(connCtx, cfg.S3, accessKey, secretKey)
	if err != nil {
		log.Error("minio_connect_failed", slog.String("endpoint", cfg.S3.Endpoint), slog.String("err", err.Error()))
		return nil, err
	}
	log.Info("minio_connected", slog.String("endpoint", cfg.S3.Endpoint), slog.String("bucket", cfg.S3.Bucket))

	wh, err := postgres.New(connCtx, cfg.DB.URL, objects)
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("dsn", redact.URL(cfg.DB.URL)), slog.String("err", err.Error()))
		return nil, err
	}
	a.closers = append(a.closers, wh.Close)
	a.pingers = append(a.pingers, objects.Ping, wh.Ping)
	log.Info("postgres_connected", slog.String("dsn", redact.URL(cfg.DB.URL)))

	if err := wh.Migrate(connCtx); err != nil {
		log.Error("migrations_failed", slog.String("err", err.Error()))
		return nil, err
	}
	log.Info("migrations_applied")

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	fetcher := newsapi.New(cfg.NewsAPI.BaseURL, &http.Client{Timeout: cfg.NewsAPI.Timeout}, cfg.Retry.Policy())

	a.svc = service.New(*cfg, service.Deps{
		Fetcher:   fetcher,
		Encoder:   columnar.Encoder{},
		Secrets:   resolver,
		Objects:   objects,
		Warehouse: wh,
		Metrics:   metrics.New(a.registry),
	})
	log.Info("service_initialized")

	ok = true
	return a, nil
}

// secretResolver собирает цепочку источников секретов: выбранный бэкенд, затем окружение.
func (a *app) secretResolver(ctx context.Context) (secrets.Resolver, error) {
	switch a.cfg.Secrets.Backend {
	case "redis":
		rdb, err := secrets.NewRedis(ctx, a.cfg.Secrets.RedisURL, a.cfg.Secrets.Prefix)
		if err != nil {
			a.log.Error("redis_connect_failed",
				slog.String("url", redact.URL(a.cfg.Secrets.RedisURL)),
				slog.String("err", err.Error()),
			)
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.log.Info("secrets_backend", slog.String("backend", "redis"))
		return secrets.Chain{rdb, secrets.Env{}}, nil
	case "env":
		a.log.Info("secrets_backend", slog.String("backend", "env"))
		return secrets.Chain{secrets.Env{}}, nil
	default:
		a.log.Error("secrets_backend_unknown", slog.String("backend", a.cfg.Secrets.Backend))
		return nil, errors.New("unknown secrets backend: " + a.cfg.Secrets.Backend)
	}
}
