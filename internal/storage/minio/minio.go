// minio предоставляет реализацию storage.ObjectStore на базе MinIO/S3.
// minio.go — конструктор клиента: нормализует endpoint, настраивает Secure/creds
// и проверяет наличие целевого бакета.
// objects.go — атомарная публикация, скачивание и удаление объектов.
package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pribylovaa/news-etl/internal/config"
	"github.com/pribylovaa/news-etl/internal/storage"
)

// ObjectStore — адаптер MinIO для выложенных Parquet-файлов.
type ObjectStore struct {
	cfg    config.S3Config
	client *mclient.Client
}

// New создаёт клиент MinIO и выполняет fail-fast-проверку доступности бакета.
// Ключи доступа передаются отдельно: они разрешаются из хранилища секретов.
func New(ctx context.Context, cfg config.S3Config, accessKey, secretKey string) (*ObjectStore, error) {
	const op = "storage/minio/New"

	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	return &ObjectStore{cfg: cfg, client: client}, nil
}

// Ping проверяет доступность бакета.
func (s *ObjectStore) Ping(ctx context.Context) error {
	const op = "storage/minio/Ping"

	if _, err := s.client.BucketExists(ctx, s.cfg.Bucket); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Проверка выполнения контракта верхнего уровня.
var _ storage.ObjectStore = (*ObjectStore)(nil)
