package app

import (
	"github.com/gofiber/fiber/v2"

	httptransport "github.com/spec-kit/ticket-triage/internal/api/http"
	"github.com/spec-kit/ticket-triage/internal/api/http/handlers"
	"github.com/spec-kit/ticket-triage/internal/auth"
)

// HTTPServer builds the fiber application with every route registered.
func (a *App) HTTPServer() *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:      a.Config.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(server, a.Logger, a.HTTPMetrics, a.Config.App.RequestTimeout())

	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:            handlers.NewHealthHandler(a.Config.App.Name, a.Config.App.Version, a.readinessProbes()...),
		Auth:              handlers.NewAuthHandler(a.Auth),
		Tickets:           handlers.NewTicketsHandler(a.Tickets),
		Agent:             handlers.NewAgentHandler(a.Orchestrator),
		KB:                handlers.NewKBHandler(a.KB),
		Config:            handlers.NewConfigHandler(a.RuntimeConfig),
		AuthMiddleware:    auth.NewAuthMiddleware(a.Auth.TokenManager(), a.Stores.Users),
		Gatherer:          a.Registry,
		AuthPerMinute:     a.Config.RateLimit.AuthPerMinute,
		MutationPerMinute: a.Config.RateLimit.MutationPerMinute,
	})
	return server
}

func (a *App) readinessProbes() []handlers.Dependency {
	deps := []handlers.Dependency{{Name: "postgres"}, {Name: "redis"}}
	if a.Postgres != nil {
		deps[0].Pinger = a.Postgres
	}
	if a.Redis != nil && a.Redis.Client != nil {
		deps[1].Pinger = a.Redis
	}
	if a.KBStore != nil {
		deps = append(deps, handlers.Dependency{Name: "sqlite", Pinger: a.KBStore})
	}
	return deps
}
