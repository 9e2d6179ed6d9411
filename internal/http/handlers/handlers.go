package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/internal/service"
)

// Runner — то, что служебный HTTP-слой умеет запускать.
type Runner interface {
	Run(ctx context.Context, iv models.Interval) (service.RunResult, error)
	IntervalFor(date string) (models.Interval, error)
}

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	runner   Runner
	ready    func() bool
	gatherer prometheus.Gatherer
}

func New(runner Runner, ready func() bool, g prometheus.Gatherer) *Handlers {
	if ready == nil {
		ready = func() bool { return true }
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}

	return &Handlers{runner: runner, ready: ready, gatherer: g}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
