package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/moinfo/MoBilling-sub001/internal/billing/followups"
	"github.com/moinfo/MoBilling-sub001/internal/observability"
	"github.com/moinfo/MoBilling-sub001/internal/payments"
	"github.com/moinfo/MoBilling-sub001/internal/subscriptions"
	"github.com/moinfo/MoBilling-sub001/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	FollowupsHandler     *followups.Handler
	PaymentsHandler      *payments.Handler
	SubscriptionsHandler *subscriptions.Handler
	JobsHandler          *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter assembles the HTTP router.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  p.Logger,
		Config:  p.Config,
		Metrics: p.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.NoCache)
		if p.FollowupsHandler != nil {
			p.FollowupsHandler.MountRoutes(r)
		}
		if p.PaymentsHandler != nil {
			p.PaymentsHandler.MountRoutes(r)
		}
		if p.SubscriptionsHandler != nil {
			p.SubscriptionsHandler.MountRoutes(r)
		}
		if p.JobsHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				p.JobsHandler.MountRoutes(r)
			})
		}
	})

	return r
}
