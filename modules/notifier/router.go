package notifier

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Healthcheck probes one dependency.
type Healthcheck func(ctx context.Context) error

// RouterOptions configures the notifier HTTP surface. Stats and
// Healthchecks are optional; their endpoints are only mounted when
// provided.
type RouterOptions struct {
	Service      *Service
	Stats        QueueStats
	Healthchecks map[string]Healthcheck
}

// Router builds the notifier API router.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/", notifier.Router(notifier.RouterOptions{
//	    Service: svc,
//	    Stats:   storage,
//	    Healthchecks: map[string]notifier.Healthcheck{
//	        "postgres": pgHealth,
//	        "redis":    redisHealth,
//	    },
//	}))
func Router(opts RouterOptions) chi.Router {
	h := NewHandler(opts.Service, opts.Stats)

	r := chi.NewRouter()

	r.Route("/notifications", func(api chi.Router) {
		api.Post("/", h.createNotification)
		api.Get("/{id}", h.getNotification)
		api.Get("/{id}/history", h.getHistory)
		api.Post("/{id}/retry", h.retryNotification)
		api.Get("/user/{userID}", h.listByUser)
	})

	if opts.Stats != nil {
		r.Get("/queue/stats", h.queueStats)
	}

	if len(opts.Healthchecks) > 0 {
		r.Get("/health", healthHandler(opts.Healthchecks))
	}

	return r
}

// healthHandler probes every dependency and reports per-check status.
// Any failing check turns the response into 503.
func healthHandler(checks map[string]Healthcheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		writeJSON(w, status, report)
	}
}
