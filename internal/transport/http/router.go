// Package http is the thin HTTP layer: it decodes requests, delegates to the
// engine and services, and translates domain errors to JSON responses.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credbridge/pkg/platform/httputil"
)

// HealthChecker reports the liveness of an attached resource.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewRouter mounts every handler plus the operational endpoints.
func NewRouter(events *EventsHandler, admin *AdminHandler, checks map[string]HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(req.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"failed": name,
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.Handler())

	events.Register(r)
	admin.Register(r)

	return r
}
