package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pribylovaa/news-etl/internal/columnar"
	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/internal/storage"
	"github.com/pribylovaa/news-etl/pkg/log"
	"github.com/pribylovaa/news-etl/pkg/retry"
)

// ObjectKey строит ключ выложенного файла: <prefix>/<query-slug>/<interval-id>.parquet.
// Ключ зависит только от запроса и окна, поэтому повтор того же окна
// перезаписывает тот же объект, а ключи сортируются по времени.
func ObjectKey(prefix, query string, iv models.Interval) string {
	return path.Join(strings.Trim(prefix, "/"), slug(query), iv.ID()+"."+columnar.Format)
}

// slug приводит запрос к безопасному сегменту ключа.
func slug(q string) string {
	var b strings.Builder
	dash := false

	for _, r := range strings.ToLower(q) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		return "all"
	}

	return s
}

// WriteBatch кодирует батч во временный файл и публикует его под ключом окна iv.
//
// Особенности:
//   - пустой батч не выкладывается (ErrEmptyBatch);
//   - Put повторяется по политике retry, исчерпание — storage.ErrStorageWrite;
//   - временный каталог удаляется на любом исходе.
func (s *Service) WriteBatch(ctx context.Context, iv models.Interval, batch []models.Article) (models.StagedObject, error) {
	const op = "service/batch/WriteBatch"

	if len(batch) == 0 {
		return models.StagedObject{}, fmt.Errorf("%s: %w", op, ErrEmptyBatch)
	}

	key := ObjectKey(s.cfg.S3.Prefix, s.cfg.NewsAPI.Query, iv)
	lg := log.From(ctx)

	dir, err := os.MkdirTemp("", "news-etl-batch-*")
	if err != nil {
		return models.StagedObject{}, fmt.Errorf("%s: mkdir_temp: %w", op, err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			lg.Warn("temp_cleanup_failed",
				slog.String("op", op),
				slog.String("dir", dir),
				slog.String("err", err.Error()),
			)
		}
	}()

	local := filepath.Join(dir, path.Base(key))
	if err := s.encoder.Encode(ctx, local, batch); err != nil {
		return models.StagedObject{}, fmt.Errorf("%s: encode: %w", op, err)
	}

	var size int64
	err = retry.Do(ctx, s.cfg.Retry.Policy(), op, func(ctx context.Context) error {
		n, err := s.objects.Put(ctx, key, local)
		if err != nil {
			return err
		}
		size = n
		return nil
	})
	if err != nil {
		return models.StagedObject{}, fmt.Errorf("%s: %w: %w", op, storage.ErrStorageWrite, err)
	}

	lg.Info("batch_staged",
		slog.String("op", op),
		slog.String("key", key),
		slog.Int("rows", len(batch)),
		slog.Int64("size", size),
	)

	return models.StagedObject{
		Key:    key,
		Size:   size,
		Format: columnar.Format,
		Rows:   len(batch),
	}, nil
}
