package minio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	"github.com/google/uuid"
	mclient "github.com/minio/minio-go/v7"

	"github.com/pribylovaa/news-etl/internal/storage"
	"github.com/pribylovaa/news-etl/pkg/log"
)

const parquetContentType = "application/vnd.apache.parquet"

// Put публикует localPath под ключом key.
//
// Порядок:
//  1. загрузка во временный объект <staging_prefix>/<uuid>/<basename>;
//  2. серверное копирование в финальный key;
//  3. удаление временного объекта на любом исходе.
//
// Финальный ключ появляется только целиком, поэтому прерванная загрузка
// оставляет в лучшем случае мусор под staging-префиксом, но не под key.
func (s *ObjectStore) Put(ctx context.Context, key, localPath string) (int64, error) {
	const op = "storage/minio/objects/Put"

	tmpKey := path.Join(s.cfg.StagingPrefix, uuid.NewString(), path.Base(key))
	lg := log.From(ctx)

	defer func() {
		// Удаляем на отвязанном контексте: отмена ctx не должна оставлять мусор.
		cctx := context.WithoutCancel(ctx)
		if err := s.client.RemoveObject(cctx, s.cfg.Bucket, tmpKey, mclient.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
			lg.Warn("staging_cleanup_failed",
				slog.String("op", op),
				slog.String("key", tmpKey),
				slog.String("err", err.Error()),
			)
		}
	}()

	if _, err := s.client.FPutObject(ctx, s.cfg.Bucket, tmpKey, localPath, mclient.PutObjectOptions{
		ContentType: parquetContentType,
	}); err != nil {
		cctx := context.WithoutCancel(ctx)
		if rerr := s.client.RemoveIncompleteUpload(cctx, s.cfg.Bucket, tmpKey); rerr != nil && !isNotFound(rerr) {
			lg.Warn("incomplete_upload_cleanup_failed",
				slog.String("op", op),
				slog.String("key", tmpKey),
				slog.String("err", rerr.Error()),
			)
		}
		return 0, fmt.Errorf("%s: upload: %w", op, err)
	}

	info, err := s.client.CopyObject(ctx,
		mclient.CopyDestOptions{Bucket: s.cfg.Bucket, Object: key},
		mclient.CopySrcOptions{Bucket: s.cfg.Bucket, Object: tmpKey},
	)
	if err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	lg.Debug("object_published",
		slog.String("op", op),
		slog.String("key", key),
		slog.Int64("size", info.Size),
	)

	return info.Size, nil
}

// Download сохраняет объект key в localPath.
// Ошибки: storage.ErrNotFound, если объекта нет.
func (s *ObjectStore) Download(ctx context.Context, key, localPath string) error {
	const op = "storage/minio/objects/Download"

	if err := s.client.FGetObject(ctx, s.cfg.Bucket, key, localPath, mclient.GetObjectOptions{}); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Delete удаляет объект key. Отсутствующий объект не ошибка.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	const op = "storage/minio/objects/Delete"

	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, mclient.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// isNotFound распознаёт ответ S3 об отсутствии ключа.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var errResp mclient.ErrorResponse
	if errors.As(err, &errResp) {
		return errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchUpload" || errResp.StatusCode == http.StatusNotFound
	}

	errResp = mclient.ToErrorResponse(err)
	return errResp.Code == "NoSuchKey" || errResp.StatusCode == http.StatusNotFound
}
