// Package handler exposes engine sessions over HTTP.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/pocketbudget/entitlement-engine/pkg/session"
	"github.com/pocketbudget/entitlement-engine/pkg/usage"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck interface {
	Check(ctx context.Context) error
}

// Options are the collaborators of a Handler. Only Manager is required.
type Options struct {
	Manager *session.Manager
	// Usage refreshes counts for sessions whose account carries a user id.
	Usage usage.Source
	// Claims overrides request account state from a bearer token when set.
	Claims *ClaimsParser
	Health HealthCheck
}

// Handler serves the session API.
type Handler struct {
	manager  *session.Manager
	usage    usage.Source
	claims   *ClaimsParser
	health   HealthCheck
	validate *validator.Validate
}

// New creates a Handler.
func New(opts Options) *Handler {
	return &Handler{
		manager:  opts.Manager,
		usage:    opts.Usage,
		claims:   opts.Claims,
		health:   opts.Health,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.Healthz)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Put("/account", h.UpdateAccount)
			r.Put("/usage", h.UpdateUsage)
			r.Post("/checks", h.Check)
			r.Post("/restriction-hits", h.TrackRestrictionHit)
			r.Post("/interactions", h.RecordInteraction)
			r.Post("/triggers/next", h.NextTrigger)
			r.Post("/banners/{bannerID}/dismiss", h.DismissBanner)
			r.Post("/banners/{bannerID}/click", h.ClickBanner)
			r.Get("/experiments/{testID}", h.GetVariant)
			r.Post("/experiments/{testID}/conversions", h.TrackConversion)
			r.Post("/experiments/{testID}/interactions", h.TrackExperimentInteraction)
		})
	})
}
