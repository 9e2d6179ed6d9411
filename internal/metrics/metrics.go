// metrics — счётчики прогонов news-etl.
// В режиме serve отдаются через /metrics, в режиме run отправляются в Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Стадии для news_etl_articles_total.
const (
	StageFetched    = "fetched"
	StageNormalized = "normalized"
	StageDropped    = "dropped"
)

// Metrics — набор метрик одного процесса. Методы безопасны для nil-получателя,
// поэтому сервис можно собрать без метрик.
type Metrics struct {
	runs        *prometheus.CounterVec
	articles    *prometheus.CounterVec
	rowsLoaded  prometheus.Counter
	runDuration prometheus.Histogram
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "news_etl_runs_total",
			Help: "Finished runs by terminal status (success or failure reason).",
		}, []string{"status"}),
		articles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "news_etl_articles_total",
			Help: "Articles seen per pipeline stage.",
		}, []string{"stage"}),
		rowsLoaded: f.NewCounter(prometheus.CounterOpts{
			Name: "news_etl_rows_loaded_total",
			Help: "Rows appended to the raw warehouse table.",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "news_etl_run_duration_seconds",
			Help:    "Wall time of a run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~68min
		}),
	}
}

// RunFinished учитывает завершённый прогон.
func (m *Metrics) RunFinished(status string, d time.Duration) {
	if m == nil {
		return
	}

	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// Articles добавляет n статей к стадии stage.
func (m *Metrics) Articles(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}

	m.articles.WithLabelValues(stage).Add(float64(n))
}

// RowsLoaded добавляет n загруженных строк.
func (m *Metrics) RowsLoaded(n int64) {
	if m == nil || n <= 0 {
		return
	}

	m.rowsLoaded.Add(float64(n))
}

// Push отправляет всё из g в Pushgateway под именем job.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	const op = "metrics/Push"

	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
