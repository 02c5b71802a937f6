package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/redraftlabs/redraft/pkg/httpserver"
)

// RouterConfig wires the services behind the router.
type RouterConfig struct {
	Billing *BillingHandlers
	Rewrite *RewriteHandlers

	Logger       *slog.Logger
	HealthProbes []func(context.Context) error
}

// NewRouter mounts the API surface.
func NewRouter(cfg RouterConfig) chi.Router {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", httpserver.HealthCheckHandler(log, cfg.HealthProbes...))

	if cfg.Billing != nil {
		r.Post("/webhooks/paddle", cfg.Billing.HandleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/billing/plan", cfg.Billing.ChangePlan)
			r.Post("/billing/portal", cfg.Billing.PortalSession)
		})
	}

	if cfg.Rewrite != nil {
		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/rewrite", cfg.Rewrite.Start)
		})
		r.Get("/rewrite/{id}/events", cfg.Rewrite.Events)
		r.Get("/rewrite/{id}/result", cfg.Rewrite.Result)
	}

	return r
}

// defaultSubscribeGrace bounds how long the events stream waits for
// the next record before falling back to Await.
const defaultSubscribeGrace = 30 * time.Second
