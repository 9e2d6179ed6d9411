// secrets разрешает секреты (ключ NewsAPI, ключи S3) по имени в момент старта прогона.
// Значения не кэшируются и не сохраняются: каждый прогон читает их заново.
package secrets

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound — секрет не задан или пуст.
var ErrNotFound = errors.New("secret not found")

// Resolver возвращает значение секрета по имени.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Chain опрашивает резолверы по порядку; побеждает первый, знающий имя.
// ErrNotFound от звена означает «спросить следующего», любая другая ошибка прерывает поиск.
type Chain []Resolver

// Resolve реализует Resolver.
func (c Chain) Resolve(ctx context.Context, name string) (string, error) {
	const op = "secrets/Chain/Resolve"

	for _, r := range c {
		v, err := r.Resolve(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	return "", fmt.Errorf("%s: %s: %w", op, name, ErrNotFound)
}
