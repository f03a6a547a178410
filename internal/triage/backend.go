package triage

import (
	"context"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// Classification is the predicted intent of a ticket.
type Classification struct {
	Category   domain.TicketCategory
	Confidence float64
}

// Reference is an article handed to the drafter.
type Reference struct {
	ID    string
	Title string
}

// Draft is a suggested reply. Citations are a subsequence of the reference ids
// the draft was produced from, in the same order.
type Draft struct {
	Reply     string
	Citations []string
}

// Backend classifies ticket text and drafts replies.
type Backend interface {
	Classify(ctx context.Context, text string) (Classification, error)
	Draft(ctx context.Context, text string, refs []Reference) (Draft, error)
	// Info identifies the provider, model and prompt version. LatencyMs is
	// filled in by the orchestrator.
	Info() domain.ModelInfo
}

// ReferencesFrom converts retrieved articles into drafter references.
func ReferencesFrom(articles []domain.Article) []Reference {
	refs := make([]Reference, 0, len(articles))
	for _, a := range articles {
		refs = append(refs, Reference{ID: a.ID, Title: a.Title})
	}
	return refs
}
