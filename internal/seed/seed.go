// Package seed loads demo users, articles and tickets from YAML fixtures.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/service"
)

//go:embed fixtures/default.yaml
var defaultFixtures []byte

// Fixtures is the seed file layout.
type Fixtures struct {
	Users    []UserFixture    `yaml:"users"`
	Articles []ArticleFixture `yaml:"articles"`
	Tickets  []TicketFixture  `yaml:"tickets"`
}

// UserFixture is an account to create.
type UserFixture struct {
	Name     string      `yaml:"name"`
	Email    string      `yaml:"email"`
	Password string      `yaml:"password"`
	Role     domain.Role `yaml:"role"`
}

// ArticleFixture is a knowledge base article to create.
type ArticleFixture struct {
	Title  string               `yaml:"title"`
	Body   string               `yaml:"body"`
	Tags   []string             `yaml:"tags"`
	Status domain.ArticleStatus `yaml:"status"`
}

// TicketFixture is a ticket filed by the user with email CreatedBy.
type TicketFixture struct {
	Title       string                `yaml:"title"`
	Description string                `yaml:"description"`
	Category    domain.TicketCategory `yaml:"category"`
	CreatedBy   string                `yaml:"created_by"`
}

// Summary counts what a seed run created.
type Summary struct {
	Users    int
	Articles int
	Tickets  []string
	Skipped  bool
}

// Dependencies wires a Seeder.
type Dependencies struct {
	Auth    *service.AuthService
	Users   repository.UserRepository
	KB      *service.KBService
	Tickets *service.TicketService
	Logger  *zap.Logger
}

// Default returns the embedded fixtures.
func Default() (*Fixtures, error) {
	return Parse(defaultFixtures)
}

// Load reads fixtures from path.
func Load(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(raw)
}

// Parse decodes fixtures and rejects unknown fields.
func Parse(raw []byte) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, u := range f.Users {
		if !u.Role.Valid() {
			return nil, fmt.Errorf("user %d: invalid role %q", i, u.Role)
		}
	}
	return &f, nil
}

// Run creates the fixtures. A store whose first fixture user already exists
// is treated as seeded and left untouched.
func Run(ctx context.Context, deps Dependencies, f *Fixtures) (Summary, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var sum Summary
	if len(f.Users) > 0 {
		_, err := deps.Users.GetByEmail(ctx, f.Users[0].Email)
		switch {
		case err == nil:
			logger.Info("store already seeded", zap.String("email", f.Users[0].Email))
			sum.Skipped = true
			return sum, nil
		case !errors.Is(err, domain.ErrNotFound):
			return sum, fmt.Errorf("check seed state: %w", err)
		}
	}

	userIDs := make(map[string]string, len(f.Users))
	for _, u := range f.Users {
		created, err := deps.Auth.CreateUser(ctx, u.Name, u.Email, u.Password, u.Role)
		if err != nil {
			return sum, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		userIDs[created.Email] = created.ID
		sum.Users++
	}

	for _, a := range f.Articles {
		if _, err := deps.KB.Create(ctx, service.ArticleInput{Title: a.Title, Body: a.Body, Tags: a.Tags, Status: a.Status}); err != nil {
			return sum, fmt.Errorf("seed article %q: %w", a.Title, err)
		}
		sum.Articles++
	}

	for _, t := range f.Tickets {
		ownerID, ok := userIDs[t.CreatedBy]
		if !ok {
			owner, err := deps.Users.GetByEmail(ctx, t.CreatedBy)
			if err != nil {
				return sum, fmt.Errorf("seed ticket %q: owner %s: %w", t.Title, t.CreatedBy, err)
			}
			ownerID = owner.ID
		}
		ticket, _, err := deps.Tickets.CreateTicket(ctx, ownerID, service.TicketCreateInput{
			Title:       t.Title,
			Description: t.Description,
			Category:    t.Category,
		})
		if err != nil {
			return sum, fmt.Errorf("seed ticket %q: %w", t.Title, err)
		}
		sum.Tickets = append(sum.Tickets, ticket.ID)
	}

	logger.Info("seed completed",
		zap.Int("users", sum.Users),
		zap.Int("articles", sum.Articles),
		zap.Int("tickets", len(sum.Tickets)))
	return sum, nil
}
