package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis читает секреты из хранилища переменных оркестратора, смоделированного
// ключами Redis вида <prefix><name>.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "news-etl:var:".
func NewRedis(ctx context.Context, redisURL, prefix string) (*Redis, error) {
	const op = "secrets/NewRedis"

	if prefix == "" {
		prefix = "news-etl:var:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Redis{rdb: rdb, prefix: prefix}, nil
}

func (r *Redis) key(name string) string { return r.prefix + name }

// Resolve реализует Resolver.
func (r *Redis) Resolve(ctx context.Context, name string) (string, error) {
	const op = "secrets/Redis/Resolve"

	v, err := r.rdb.Get(ctx, r.key(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %s: %w", op, name, ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s: %s: %w", op, name, ErrNotFound)
	}

	return strings.TrimSpace(v), nil
}

// Close закрывает клиент Redis.
func (r *Redis) Close() error { return r.rdb.Close() }
