package scanner

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lzjever/lgu-integrity/internal/api/middleware"
)

// AdminHandler serves the scanner's operational endpoints. Metrics and health
// are open for scrapers and health checks; the scan routes require an operator token.
func AdminHandler(s *Scheduler, gatherer prometheus.Gatherer, auth middleware.AuthConfig) http.Handler {
	operator := middleware.RequireOperator(auth)
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.Handle("POST /scan", operator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := s.RunNow(TriggerManual)
		switch {
		case errors.Is(err, ErrScanInProgress):
			writeJSON(w, http.StatusConflict, map[string]any{
				"success": false,
				"error":   map[string]string{"code": "scan_in_progress", "message": err.Error()},
			})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   map[string]string{"code": "internal_error", "message": err.Error()},
			})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
		}
	})))

	mux.Handle("GET /scan", operator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"success": true, "nextRun": s.Next()}
		if last, ok := s.Last(); ok {
			body["lastRun"] = last
		}
		writeJSON(w, http.StatusOK, body)
	})))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
