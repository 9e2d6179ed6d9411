// retry выполняет сетевые вызовы с экспоненциальным backoff и ограниченным
// числом попыток. Ошибки, помеченные Permanent, не повторяются.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pribylovaa/news-etl/pkg/log"
)

// Policy — параметры повторов одного вызова.
type Policy struct {
	// MaxAttempts — общее число попыток, включая первую. Значения < 1 трактуются как 1.
	MaxAttempts int
	// InitialInterval — пауза перед второй попыткой.
	InitialInterval time.Duration
	// MaxInterval — верхняя граница паузы между попытками.
	MaxInterval time.Duration
}

// Permanent помечает ошибку как неповторяемую.
// Do вернёт исходную ошибку без обёртки.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return backoff.Permanent(err)
}

// Do вызывает fn до успеха, до permanent-ошибки, до исчерпания попыток или отмены ctx.
// Каждая неудачная попытка логируется как retry_scheduled с именем операции op.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	// Ограничиваем только числом попыток.
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	attempt := 0
	lg := log.From(ctx)

	return backoff.RetryNotify(func() error {
		attempt++
		return fn(ctx)
	}, b, func(err error, wait time.Duration) {
		lg.Warn("retry_scheduled",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("wait", wait),
			slog.String("err", err.Error()),
		)
	})
}
