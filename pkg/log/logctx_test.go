package log

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// Тесты меняют slog.Default(), поэтому НЕ используют t.Parallel().

func newSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capHandler запоминает атрибуты последней записи, включая накопленные через With.
type capHandler struct {
	base  []slog.Attr
	attrs map[string]any
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	h.attrs = make(map[string]any)
	for _, a := range h.base {
		h.attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		h.attrs[a.Key] = a.Value.Any()
		return true
	})
	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &capHandler{base: append(append([]slog.Attr(nil), h.base...), attrs...)}
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

// TestFrom_ReturnsDefault_WhenNoLoggerInContext — без логгера в контексте возвращается slog.Default().
func TestFrom_ReturnsDefault_WhenNoLoggerInContext(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	def := newSilent()
	slog.SetDefault(def)

	require.Equal(t, def, From(context.Background()))
}

// TestIntoAndFrom_RoundTrip — Into/From возвращают тот же логгер.
func TestIntoAndFrom_RoundTrip(t *testing.T) {
	l := newSilent()
	ctx := Into(context.Background(), l)

	require.Equal(t, l, From(ctx))
}

// TestFrom_WrongTypeOrNil — устойчивость к мусору под нашим ключом и к *slog.Logger(nil).
func TestFrom_WrongTypeOrNil(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	def := newSilent()
	slog.SetDefault(def)

	ctxWrong := context.WithValue(context.Background(), ctxKey{}, "not-a-logger")
	require.Equal(t, def, From(ctxWrong))

	var nilLogger *slog.Logger
	ctxNil := context.WithValue(context.Background(), ctxKey{}, nilLogger)
	require.Equal(t, def, From(ctxNil))
}

// TestWith_AddsAttrsWithoutTouchingParent — With обогащает логгер дочернего контекста.
func TestWith_AddsAttrsWithoutTouchingParent(t *testing.T) {
	h := &capHandler{}
	parent := Into(context.Background(), slog.New(h))

	child := With(parent, "run_id", "r-1")
	From(child).Info("x")

	require.NotEqual(t, From(parent), From(child))

	childHandler, ok := From(child).Handler().(*capHandler)
	require.True(t, ok)
	require.Equal(t, "r-1", childHandler.attrs["run_id"])
}
