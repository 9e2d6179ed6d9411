package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Articles(StageFetched, 250)
	m.Articles(StageNormalized, 245)
	m.Articles(StageDropped, 5)
	m.Articles(StageDropped, 0)
	m.RowsLoaded(245)
	m.RunFinished("success", 3*time.Second)
	m.RunFinished("load_error", time.Second)

	require.Equal(t, 250.0, testutil.ToFloat64(m.articles.WithLabelValues(StageFetched)))
	require.Equal(t, 245.0, testutil.ToFloat64(m.articles.WithLabelValues(StageNormalized)))
	require.Equal(t, 5.0, testutil.ToFloat64(m.articles.WithLabelValues(StageDropped)))
	require.Equal(t, 245.0, testutil.ToFloat64(m.rowsLoaded))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("load_error")))
	require.Equal(t, 1, testutil.CollectAndCount(m.runDuration))

	expected := `
# HELP news_etl_rows_loaded_total Rows appended to the raw warehouse table.
# TYPE news_etl_rows_loaded_total counter
news_etl_rows_loaded_total 245
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "news_etl_rows_loaded_total"))
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.Articles(StageFetched, 1)
		m.RowsLoaded(1)
		m.RunFinished("success", time.Second)
	})
}

func TestPush(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotPath.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	New(reg).RowsLoaded(1)

	require.NoError(t, Push(context.Background(), srv.URL, "news_etl", reg))
	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, "/metrics/job/news_etl", gotPath.Load())
}

func TestPush_Error(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := Push(context.Background(), srv.URL, "news_etl", prometheus.NewRegistry())
	require.Error(t, err)
}
