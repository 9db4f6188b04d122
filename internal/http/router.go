package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/jw6ventures/fleetcal/internal/config"
	"github.com/jw6ventures/fleetcal/internal/http/csrf"
	"github.com/jw6ventures/fleetcal/internal/http/ratelimit"
	"github.com/jw6ventures/fleetcal/internal/metrics"
	"github.com/jw6ventures/fleetcal/internal/scheduler"
)

// HealthChecker reports whether the backing database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the collaborators the router serves.
type Deps struct {
	Engine    *scheduler.Engine
	Health    HealthChecker
	Refresher Refresher
	// Now overrides the clock used for "today"; nil means time.Now.
	Now func() time.Time
}

// NewRouter wires the calendar API, health probes and metrics. Background
// work started here ends with ctx.
func NewRouter(ctx context.Context, cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	apiRateLimiter := ratelimit.NewIPRateLimiter(ctx, rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Health.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	h := &api{
		engine:         deps.Engine,
		refresher:      deps.Refresher,
		loc:            loc,
		maintenanceURL: cfg.MaintenanceURL,
		now:            now,
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())
		if cfg.CSRFEnabled {
			r.Use(csrf.Middleware(cfg.TrustedProxies))
		}

		r.Get("/categories", h.categories)
		r.Get("/slots", h.slots)
		r.Get("/calendar/month", h.month)
		r.Get("/calendar/day/{date}", h.day)
		r.Get("/calendar.ics", h.exportICS)

		// Event CRUD
		r.Post("/events/draft", h.createDraft)
		r.Post("/events", h.saveEvent)
		r.Put("/events/{id}", h.saveEvent)
		r.Delete("/events/{id}", h.deleteEvent)
		r.Post("/events/{id}/open", h.openEvent)
		r.Post("/events/{id}/complete", h.toggleComplete)

		r.Get("/editor", h.currentEditor)
		r.Post("/editor/close", h.closeEditor)

		r.Route("/drag", func(r chi.Router) {
			r.Get("/", h.dragState)
			r.Post("/begin", h.beginDrag)
			r.Post("/hover", h.hoverDrag)
			r.Post("/drop", h.dropDrag)
			r.Post("/cancel", h.cancelDrag)
		})

		r.Post("/maintenance", h.setMaintenance)
		r.Post("/refresh", h.refresh)
	})

	return r
}
