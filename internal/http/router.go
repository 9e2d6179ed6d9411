package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/news-etl/internal/http/handlers"
	"github.com/pribylovaa/news-etl/internal/http/middleware"
)

// Options — параметры сборки служебного HTTP-роутера.
type Options struct {
	Logger *slog.Logger
	// Gatherer — источник метрик для /metrics; nil — prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Ready — готовность к работе для /healthz; nil — всегда готов.
	Ready func() bool
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(runner handlers.Runner, opts Options) http.Handler {
	r := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	r.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования, чтобы request_id попал в запись
		middleware.Logging(opts.Logger),
	)

	h := handlers.New(runner, opts.Ready, opts.Gatherer)
	registerRoutes(r, h)

	return r
}

// registerRoutes — единая точка регистрации эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	r.Get("/livez", h.Livez)
	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", h.Metrics())

	r.Post("/runs", h.TriggerRun)
}
