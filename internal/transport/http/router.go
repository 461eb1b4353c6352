// Package httptransport assembles the HTTP surface: middleware chain, health
// and metrics endpoints, and the public and administrative route groups.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apphandler "visaflow/internal/application/handler"
	cataloghandler "visaflow/internal/catalog/handler"
	directoryhandler "visaflow/internal/directory/handler"
	"visaflow/internal/platform/metrics"
	"visaflow/internal/platform/middleware"
)

const requestTimeout = 30 * time.Second

// Deps carries everything the router mounts.
type Deps struct {
	Catalog      *cataloghandler.Handler
	Applications *apphandler.Handler
	Directory    *directoryhandler.Handler

	// AdminGuard wraps the administrative route group; the guard injects
	// the acting subject into the request context.
	AdminGuard func(http.Handler) http.Handler

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// NewRouter builds the full route tree.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ContentTypeJSON)
	if d.Metrics != nil {
		r.Use(middleware.Latency(d.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	d.Catalog.Register(r)
	d.Applications.Register(r)
	d.Directory.Register(r)

	r.Group(func(admin chi.Router) {
		admin.Use(d.AdminGuard)
		d.Catalog.RegisterAdmin(admin)
		d.Applications.RegisterAdmin(admin)
	})

	return r
}
