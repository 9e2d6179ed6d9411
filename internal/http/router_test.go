package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/news-etl/internal/metrics"
	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/internal/service"
	"github.com/pribylovaa/news-etl/internal/storage"
)

// fakeRunner — Runner с заданным исходом прогона.
type fakeRunner struct {
	res    service.RunResult
	err    error
	gotIV  models.Interval
	called int
}

func (f *fakeRunner) IntervalFor(date string) (models.Interval, error) {
	iv, err := models.ParseLogicalDate(date, 24*time.Hour)
	if err != nil {
		return models.Interval{}, fmt.Errorf("%w: %v", service.ErrInvalidArgument, err)
	}
	return iv, nil
}

func (f *fakeRunner) Run(_ context.Context, iv models.Interval) (service.RunResult, error) {
	f.called++
	f.gotIV = iv
	return f.res, f.err
}

func newTestRouter(r *fakeRunner, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewRouter(r, opts)
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestLivez(t *testing.T) {
	t.Parallel()

	rr := do(t, newTestRouter(&fakeRunner{}, Options{}), http.MethodGet, "/livez")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
	require.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestHealthz_Readiness(t *testing.T) {
	t.Parallel()

	ready := false
	h := newTestRouter(&fakeRunner{}, Options{Ready: func() bool { return ready }})

	require.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/healthz").Code)

	ready = true
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz").Code)
}

func TestMetrics_Exposed(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RowsLoaded(7)

	rr := do(t, newTestRouter(&fakeRunner{}, Options{Gatherer: reg}), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "news_etl_rows_loaded_total 7")
}

func TestTriggerRun_OK(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{res: service.RunResult{RunID: "r1", Status: service.StatusSuccess, RowsLoaded: 245}}
	rr := do(t, newTestRouter(r, Options{}), http.MethodPost, "/runs?date=2024-05-01")

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.Equal(t, 1, r.called)
	require.Equal(t, "20240501T000000Z", r.gotIV.ID())

	var got service.RunResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "r1", got.RunID)
	require.EqualValues(t, 245, got.RowsLoaded)
}

func TestTriggerRun_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		runErr     error
		res        service.RunResult
		wantStatus int
		wantCode   string
		wantReason string
		wantCalled int
	}{
		{name: "no date", target: "/runs", wantStatus: http.StatusBadRequest, wantCode: "invalid_argument"},
		{name: "bad date", target: "/runs?date=yesterday", wantStatus: http.StatusBadRequest, wantCode: "invalid_argument"},
		{
			name: "in progress", target: "/runs?date=2024-05-01",
			runErr:     fmt.Errorf("run: %w", service.ErrRunInProgress),
			wantStatus: http.StatusConflict, wantCode: "run_in_progress", wantCalled: 1,
		},
		{
			name: "run failed", target: "/runs?date=2024-05-01",
			runErr:     fmt.Errorf("load: %w", storage.ErrLoad),
			res:        service.RunResult{Status: service.StatusFailed, Reason: service.ReasonLoad},
			wantStatus: http.StatusInternalServerError, wantReason: service.ReasonLoad, wantCalled: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &fakeRunner{res: tt.res, err: tt.runErr}
			rr := do(t, newTestRouter(r, Options{}), http.MethodPost, tt.target)

			require.Equal(t, tt.wantStatus, rr.Code)
			require.Equal(t, tt.wantCalled, r.called)

			var body struct {
				Error struct {
					Code      string `json:"code"`
					RequestID string `json:"request_id"`
				} `json:"error"`
			}
			if tt.wantCode != "" {
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				require.Equal(t, tt.wantCode, body.Error.Code)
				require.NotEmpty(t, body.Error.RequestID)
			}
			if tt.wantReason != "" {
				var res service.RunResult
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
				require.Equal(t, tt.wantReason, res.Reason)
			}
		})
	}
}

func TestRuns_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	rr := do(t, newTestRouter(&fakeRunner{}, Options{}), http.MethodGet, "/runs?date=2024-05-01")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
