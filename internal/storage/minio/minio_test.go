package minio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pribylovaa/news-etl/internal/config"
	"github.com/pribylovaa/news-etl/internal/storage"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Интеграционные тесты для пакета minio:
// — поднимают реальный MinIO через testcontainers-go;
// — проверяют атомарную публикацию, скачивание, удаление
//   и отсутствие видимого объекта после прерванной записи.
//
// Запуск:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/minio -v -race -count=1

const (
	rootUser     = "root"
	rootPassword = "rootpass"
	bucket       = "news"
)

func startMinio(t *testing.T, createBucket bool) (*ObjectStore, *mclient.Client, error) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image: "docker.io/minio/minio:latest",
		Env: map[string]string{
			"MINIO_ROOT_USER":     rootUser,
			"MINIO_ROOT_PASSWORD": rootPassword,
		},
		Cmd:          []string{"server", "/data"},
		ExposedPorts: []string{"9000/tcp"},
		WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "9000/tcp")

	admin, err := mclient.New(host+":"+port.Port(), &mclient.Options{
		Creds:  credentials.NewStaticV4(rootUser, rootPassword, ""),
		Secure: false,
	})
	require.NoError(t, err)

	if createBucket {
		require.NoError(t, admin.MakeBucket(ctx, bucket, mclient.MakeBucketOptions{Region: "us-east-1"}))
	}

	cfg := config.S3Config{
		Endpoint:      fmt.Sprintf("http://%s:%s", host, port.Port()),
		Bucket:        bucket,
		Region:        "us-east-1",
		Prefix:        "news_data_analysis",
		StagingPrefix: "_staging",
	}

	st, err := New(ctx, cfg, rootUser, rootPassword)
	return st, admin, err
}

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "20240501T000000Z.parquet")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

// listStaging — объекты под staging-префиксом.
func listStaging(t *testing.T, admin *mclient.Client) []string {
	t.Helper()
	var keys []string
	for obj := range admin.ListObjects(context.Background(), bucket, mclient.ListObjectsOptions{Prefix: "_staging/", Recursive: true}) {
		require.NoError(t, obj.Err)
		keys = append(keys, obj.Key)
	}
	return keys
}

// listIncomplete — незавершённые multipart-загрузки под staging-префиксом.
func listIncomplete(t *testing.T, admin *mclient.Client) []string {
	t.Helper()
	var keys []string
	for u := range admin.ListIncompleteUploads(context.Background(), bucket, "_staging/", true) {
		require.NoError(t, u.Err)
		keys = append(keys, u.Key)
	}
	return keys
}

// objectExists сообщает, виден ли объект key в бакете.
func objectExists(t *testing.T, admin *mclient.Client, key string) bool {
	t.Helper()
	_, err := admin.StatObject(context.Background(), bucket, key, mclient.StatObjectOptions{})
	if isNotFound(err) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestIntegration_New_BucketMustExist(t *testing.T) {
	_, _, err := startMinio(t, false)
	require.Error(t, err)
}

func TestIntegration_Put_Download_Delete(t *testing.T) {
	st, admin, err := startMinio(t, true)
	require.NoError(t, err)

	ctx := context.Background()
	key := "news_data_analysis/technology/20240501T000000Z.parquet"

	size, err := st.Put(ctx, key, writeTemp(t, "PAR1-body"))
	require.NoError(t, err)
	require.EqualValues(t, len("PAR1-body"), size)
	require.Empty(t, listStaging(t, admin), "temporary object must be removed")

	require.True(t, objectExists(t, admin, key))

	dst := filepath.Join(t.TempDir(), "out.parquet")
	require.NoError(t, st.Download(ctx, key, dst))
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "PAR1-body", string(b))

	// Повторная публикация того же ключа перезаписывает объект.
	_, err = st.Put(ctx, key, writeTemp(t, "PAR1-v2"))
	require.NoError(t, err)
	require.NoError(t, st.Download(ctx, key, dst))
	b, err = os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "PAR1-v2", string(b))

	require.NoError(t, st.Delete(ctx, key))
	require.False(t, objectExists(t, admin, key))

	// Удаление отсутствующего объекта не ошибка.
	require.NoError(t, st.Delete(ctx, key))
}

func TestIntegration_Download_NotFound(t *testing.T) {
	st, _, err := startMinio(t, true)
	require.NoError(t, err)

	err = st.Download(context.Background(), "missing.parquet", filepath.Join(t.TempDir(), "x"))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestIntegration_Put_Interrupted_NoVisibleObject — прерванная запись не оставляет объект под ключом.
func TestIntegration_Put_Interrupted_NoVisibleObject(t *testing.T) {
	st, admin, err := startMinio(t, true)
	require.NoError(t, err)

	key := "news_data_analysis/technology/20240502T000000Z.parquet"

	// 1) локальный файл исчез до загрузки.
	_, err = st.Put(context.Background(), key, filepath.Join(t.TempDir(), "gone.parquet"))
	require.Error(t, err)

	// 2) контекст отменён до начала записи.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = st.Put(ctx, key, writeTemp(t, "PAR1-body"))
	require.Error(t, err)

	require.False(t, objectExists(t, admin, key))
	require.Empty(t, listStaging(t, admin))
}

// TestIntegration_Put_CancelledMidTransfer_RetryPublishesOnce — отмена во время
// multipart-загрузки не оставляет ни финального, ни временного объекта;
// повторная публикация даёт ровно один объект под префиксом.
func TestIntegration_Put_CancelledMidTransfer_RetryPublishesOnce(t *testing.T) {
	st, admin, err := startMinio(t, true)
	require.NoError(t, err)

	const prefix = "news_data_analysis/technology/"
	key := prefix + "20240503T000000Z.parquet"

	// 96 MiB: больше минимального размера части, загрузка идёт multipart.
	src := filepath.Join(t.TempDir(), "20240503T000000Z.parquet")
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(96<<20))
	require.NoError(t, f.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Отменяем, как только на сервере появилась незавершённая загрузка.
	started := make(chan struct{})
	go func() {
		defer close(started)
		tick := time.NewTicker(5 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
			for u := range admin.ListIncompleteUploads(context.Background(), bucket, "_staging/", true) {
				if u.Err == nil {
					cancel()
					return
				}
			}
		}
	}()

	_, err = st.Put(ctx, key, src)
	cancel()
	<-started
	require.Error(t, err)

	require.False(t, objectExists(t, admin, key))
	require.Empty(t, listStaging(t, admin))
	require.Empty(t, listIncomplete(t, admin), "multipart upload must be aborted")

	size, err := st.Put(context.Background(), key, src)
	require.NoError(t, err)
	require.EqualValues(t, 96<<20, size)

	var keys []string
	for obj := range admin.ListObjects(context.Background(), bucket, mclient.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		require.NoError(t, obj.Err)
		keys = append(keys, obj.Key)
	}
	require.Equal(t, []string{key}, keys)
	require.Empty(t, listStaging(t, admin))
}
