package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the trigger endpoints plus health and metrics.
func NewRouter(h *FollowupHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.RealIP)
	r.Use(chi_middleware.Recoverer)

	r.Post("/schedule-followups", h.ScheduleFollowups)
	r.Post("/cancel-followups", h.CancelFollowups)
	r.Post("/process-pending-followups", h.ProcessPendingFollowups)
	r.Post("/retry-failed-followups", h.RetryFailedFollowups)
	r.Get("/followups", h.ListFollowups)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
