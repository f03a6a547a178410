package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/ticket-triage/internal/api/http/handlers"
	"github.com/spec-kit/ticket-triage/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Agent          *handlers.AgentHandler
	KB             *handlers.KBHandler
	Config         *handlers.ConfigHandler
	AuthMiddleware *auth.AuthMiddleware
	// Gatherer serves /metrics; nil leaves the route unregistered.
	Gatherer          prometheus.Gatherer
	AuthPerMinute     int
	MutationPerMinute int
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth", RateLimiter(cfg.AuthPerMinute))
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	mutations := RateLimiter(cfg.MutationPerMinute)
	authed := cfg.AuthMiddleware.Handle

	tickets := app.Group("/tickets", authed)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", mutations, cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/audit", auth.RequireStaff(), cfg.Tickets.Audit)
	tickets.Post("/:id/reply", auth.RequireStaff(), mutations, cfg.Tickets.Reply)
	tickets.Post("/:id/assign", auth.RequireStaff(), mutations, cfg.Tickets.Assign)

	agent := app.Group("/agent", authed, auth.RequireStaff())
	agent.Post("/triage", mutations, cfg.Agent.Triage)
	agent.Get("/suggestion/:ticketId", cfg.Agent.LatestSuggestion)

	kb := app.Group("/kb", authed)
	kb.Get("/", cfg.KB.List)
	kb.Get("/:id", cfg.KB.Get)
	kb.Post("/", auth.RequireAdmin(), mutations, cfg.KB.Create)
	kb.Put("/:id", auth.RequireAdmin(), mutations, cfg.KB.Update)
	kb.Delete("/:id", auth.RequireAdmin(), mutations, cfg.KB.Delete)

	configGroup := app.Group("/config", authed)
	configGroup.Get("/", auth.RequireStaff(), cfg.Config.Get)
	configGroup.Put("/", auth.RequireAdmin(), mutations, cfg.Config.Update)
}
