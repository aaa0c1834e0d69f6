// Package outreach provides the follow-up automation bounded context module.
// This file defines the module that encapsulates all outreach setup and route
// registration.
package outreach

import (
	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/outreach/handler"
	"outreach_backend/internal/outreach/planner"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/outreach/service"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the outreach bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the outreach module with its dependencies.
// Templates are loaded and validated by the composition root so a broken
// template map fails the process at startup.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, templates planner.Templates, val *validator.Validator, cfg *config.Config, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, planner.New(templates), cfg, log)
	svc.SetEventBus(eventBus)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Service exposes the run engine for the scheduler worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// SetChannel attaches the messaging channel provider.
func (m *Module) SetChannel(channel service.Channel) {
	m.service.SetChannel(channel)
}

// SetTagger attaches the contact tagging provider.
func (m *Module) SetTagger(tagger service.Tagger) {
	m.service.SetTagger(tagger)
}

// SetRunEnqueuer routes manual run requests through the task queue.
func (m *Module) SetRunEnqueuer(enqueuer handler.RunEnqueuer) {
	m.handler.SetRunEnqueuer(enqueuer)
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "outreach"
}

// RegisterRoutes mounts the outreach routes on the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/outreach"))
}
