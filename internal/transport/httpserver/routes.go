package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"gym-batches-go/internal/config"
	"gym-batches-go/internal/metrics"
	"gym-batches-go/internal/transport/httpserver/handler"
	"gym-batches-go/internal/transport/httpserver/middleware"
)

func NewRouter(cfg config.Config, handlers *handler.Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.NewCORS(cfg.CORSAllowedOrigins))
	if m != nil {
		r.Use(middleware.NewMetrics(m))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		r.Route("/enrollment", func(r chi.Router) {
			r.Get("/test", handlers.Test)
			r.Get("/available-batches", handlers.ListAvailableBatches)
			r.Post("/enroll", handlers.Enroll)
			r.Get("/unpaid", handlers.ListUnpaid)
			r.Get("/outstanding-dues", handlers.ListOutstandingDues)
			r.Post("/change-batch", handlers.ChangeBatch)
			r.Get("/member/{id}/current-batch", handlers.CurrentBatch)
			r.Post("/enrollments/{id}/pay", handlers.PayEnrollment)
		})
	})

	return r
}

// NewMetricsRouter serves the Prometheus exposition on its own listener.
func NewMetricsRouter(m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Handle("/metrics", m.Handler())
	return r
}
