package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps carries the handlers the engine's HTTP surface is built
// from.
type RouterDeps struct {
	Admin       *AdminHandler
	Webhooks    *WebhookHandler
	Unsubscribe *UnsubscribeHandler
}

// NewRouter assembles the engine's HTTP surface: webhook intake, the
// admin callable surface, unsubscribe links, health and metrics.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/webhooks", deps.Webhooks.RegisterRoutes)
	r.Route("/admin", deps.Admin.RegisterRoutes)
	r.Route("/unsubscribe", deps.Unsubscribe.RegisterRoutes)

	return r
}
