// config предоставляет структуру конфигурации news-etl
// и функции загрузки из YAML/ENV с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/pribylovaa/news-etl/pkg/retry"
)

// Config — корневая конфигурация задания.
// Приоритет источников:
//  1. явный путь, переданный в Load (флаг --config);
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	HTTP       HTTPConfig       `yaml:"http"`
	DB         DBConfig         `yaml:"db"`
	S3         S3Config         `yaml:"s3"`
	NewsAPI    NewsAPIConfig    `yaml:"newsapi"`
	Normalizer NormalizerConfig `yaml:"normalizer"`
	Warehouse  WarehouseConfig  `yaml:"warehouse"`
	Retry      RetryConfig      `yaml:"retry"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Secrets    SecretsConfig    `yaml:"secrets"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
}

// HTTPConfig — служебный HTTP-сервер режима serve (/livez, /healthz, /metrics, /runs).
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// DBConfig — подключение к хранилищу-витрине (PostgreSQL).
type DBConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
}

// S3Config — объектное хранилище для Parquet-файлов.
// Ключи доступа сюда не входят: они разрешаются через Secrets на старте.
type S3Config struct {
	Endpoint string `yaml:"endpoint" env:"S3_ENDPOINT" env-required:"true"`
	Bucket   string `yaml:"bucket"   env:"S3_BUCKET"   env-required:"true"`
	Region   string `yaml:"region"   env:"S3_REGION"   env-default:"us-east-1"`
	// Prefix — корневой префикс выложенных файлов.
	Prefix string `yaml:"prefix" env:"S3_PREFIX" env-default:"news_data_analysis"`
	// StagingPrefix — префикс временных объектов до атомарной публикации.
	StagingPrefix string `yaml:"staging_prefix" env:"S3_STAGING_PREFIX" env-default:"_staging"`
}

// NewsAPIConfig — параметры выгрузки из NewsAPI.
type NewsAPIConfig struct {
	BaseURL  string        `yaml:"base_url"  env:"NEWSAPI_BASE_URL"  env-default:"https://newsapi.org"`
	Query    string        `yaml:"query"     env:"NEWSAPI_QUERY"     env-default:"technology"`
	Language string        `yaml:"language"  env:"NEWSAPI_LANGUAGE"  env-default:"en"`
	SortBy   string        `yaml:"sort_by"   env:"NEWSAPI_SORT_BY"   env-default:"popularity"`
	PageSize int           `yaml:"page_size" env:"NEWSAPI_PAGE_SIZE" env-default:"100"`
	MaxPages int           `yaml:"max_pages" env:"NEWSAPI_MAX_PAGES" env-default:"10"`
	Timeout  time.Duration `yaml:"timeout"   env:"NEWSAPI_TIMEOUT"   env-default:"30s"`
}

// NormalizerConfig — параметры очистки текста.
type NormalizerConfig struct {
	// MaxContentLen — максимальная длина content в символах.
	MaxContentLen int `yaml:"max_content_len" env:"MAX_CONTENT_LEN" env-default:"200"`
}

// WarehouseConfig — имена таблиц в витрине.
type WarehouseConfig struct {
	RawTable     string `yaml:"raw_table"     env:"WAREHOUSE_RAW_TABLE"     env-default:"news_api_data"`
	SummaryTable string `yaml:"summary_table" env:"WAREHOUSE_SUMMARY_TABLE" env-default:"summary_news"`
	AuthorTable  string `yaml:"author_table"  env:"WAREHOUSE_AUTHOR_TABLE"  env-default:"author_activity"`
}

// RetryConfig — политика повторов сетевых вызовов.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"     env:"RETRY_MAX_ATTEMPTS"     env-default:"5"`
	InitialInterval time.Duration `yaml:"initial_interval" env:"RETRY_INITIAL_INTERVAL" env-default:"1s"`
	MaxInterval     time.Duration `yaml:"max_interval"     env:"RETRY_MAX_INTERVAL"     env-default:"30s"`
}

// Policy переводит конфиг в retry.Policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
	}
}

// ScheduleConfig — периодичность прогонов в режиме serve.
type ScheduleConfig struct {
	Interval   time.Duration `yaml:"interval"     env:"SCHEDULE_INTERVAL"     env-default:"24h"`
	RunOnStart bool          `yaml:"run_on_start" env:"SCHEDULE_RUN_ON_START" env-default:"false"`
}

// SecretsConfig — источник секретов и имена ключей в нём.
type SecretsConfig struct {
	// Backend — env | redis.
	Backend  string `yaml:"backend"   env:"SECRETS_BACKEND"   env-default:"env"`
	RedisURL string `yaml:"redis_url" env:"SECRETS_REDIS_URL"`
	Prefix   string `yaml:"prefix"    env:"SECRETS_PREFIX"    env-default:"news-etl:var:"`

	NewsAPIKeyName  string `yaml:"newsapi_key_name"    env:"SECRET_NAME_NEWSAPI_KEY"    env-default:"NEWS_API_KEY"`
	S3AccessKeyName string `yaml:"s3_access_key_name"  env:"SECRET_NAME_S3_ACCESS_KEY"  env-default:"S3_ACCESS_KEY"`
	S3SecretKeyName string `yaml:"s3_secret_key_name"  env:"SECRET_NAME_S3_SECRET_KEY"  env-default:"S3_SECRET_KEY"`
}

// MetricsConfig — экспорт метрик.
type MetricsConfig struct {
	// PushgatewayURL — если задан, команда run отправляет метрики прогона в Pushgateway.
	PushgatewayURL string `yaml:"pushgateway_url" env:"METRICS_PUSHGATEWAY_URL"`
	Job            string `yaml:"job"             env:"METRICS_JOB" env-default:"news_etl"`
}

// TimeoutConfig — таймауты задания.
type TimeoutConfig struct {
	// Run — верхняя граница длительности одного прогона.
	Run time.Duration `yaml:"run" env:"RUN_TIMEOUT" env-default:"30m"`
	// Connect — подключение к PostgreSQL/MinIO/Redis на старте.
	Connect time.Duration `yaml:"connect" env:"CONNECT_TIMEOUT" env-default:"10s"`
	// Shutdown — грейсфул-остановка режима serve.
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", p)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate — базовая валидация значений.
func (c *Config) validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("db.url is required")
	}
	if c.S3.Endpoint == "" || c.S3.Bucket == "" {
		return fmt.Errorf("s3.endpoint and s3.bucket are required")
	}
	if strings.TrimSpace(c.NewsAPI.Query) == "" {
		return fmt.Errorf("newsapi.query must not be empty")
	}
	if c.NewsAPI.PageSize <= 0 || c.NewsAPI.PageSize > 100 {
		return fmt.Errorf("newsapi.page_size must be in 1..100")
	}
	if c.NewsAPI.MaxPages <= 0 {
		return fmt.Errorf("newsapi.max_pages must be > 0")
	}
	if c.Normalizer.MaxContentLen <= 0 {
		return fmt.Errorf("normalizer.max_content_len must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Schedule.Interval < time.Minute {
		return fmt.Errorf("schedule.interval must be at least 1m")
	}
	switch c.Secrets.Backend {
	case "env":
	case "redis":
		if c.Secrets.RedisURL == "" {
			return fmt.Errorf("secrets.redis_url is required for redis backend")
		}
	default:
		return fmt.Errorf("secrets.backend must be env or redis, got %q", c.Secrets.Backend)
	}
	for _, t := range []string{c.Warehouse.RawTable, c.Warehouse.SummaryTable, c.Warehouse.AuthorTable} {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("warehouse table names must not be empty")
		}
	}
	return nil
}
