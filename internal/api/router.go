package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the handlers into a chi router
func NewRouter(h *Handler, mw *Middleware) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS()) // global so OPTIONS preflight is answered
	r.Use(Instrument)

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit())

		r.Post("/predict/concentration", h.PredictConcentration)

		r.Route("/api", func(r chi.Router) {
			r.Post("/health-metrics", h.StoreHealthMetrics)
			r.Get("/user/{user_id}/predictions", h.UserPredictions)
			r.Delete("/user/{user_id}/predictions/{date}", h.InvalidatePrediction)
			r.Get("/user/{user_id}/profile", h.UserProfile)
			r.Post("/model/reload", h.ReloadModel)
		})
	})

	return r
}
