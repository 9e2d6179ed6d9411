package handlers

import (
	"net/http"

	"github.com/pribylovaa/news-etl/internal/http/apierror"
	"github.com/pribylovaa/news-etl/internal/http/middleware"
	"github.com/pribylovaa/news-etl/internal/service"
)

// TriggerRun — POST /runs?date=YYYY-MM-DD.
// Синхронный прогон окна, содержащего логическую дату (ручной запуск и бэкфилл).
//
// Ответы:
//   - 200 и RunResult при успехе;
//   - 400, если дата не задана или не разбирается;
//   - 409, если прогон уже идёт;
//   - 500 и RunResult с причиной при сбое прогона.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	rid := middleware.RequestIDFrom(r.Context())

	iv, err := h.runner.IntervalFor(r.URL.Query().Get("date"))
	if err != nil {
		apierror.Write(w, rid, err)
		return
	}

	res, err := h.runner.Run(r.Context(), iv)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case service.IsRunInProgress(err):
		apierror.Write(w, rid, err)
	default:
		writeJSON(w, http.StatusInternalServerError, res)
	}
}
