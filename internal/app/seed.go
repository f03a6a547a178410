package app

import (
	"context"

	"github.com/spec-kit/ticket-triage/internal/seed"
)

// Seed loads fixtures through the services so audit events and ticket
// events fire as they would for real traffic.
func (a *App) Seed(ctx context.Context, fixtures *seed.Fixtures) (seed.Summary, error) {
	return seed.Run(ctx, seed.Dependencies{
		Auth:    a.Auth,
		Users:   a.Stores.Users,
		KB:      a.KB,
		Tickets: a.Tickets,
		Logger:  a.Logger,
	}, fixtures)
}
