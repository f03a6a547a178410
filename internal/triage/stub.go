package triage

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

const (
	stubProvider      = "stub"
	stubModel         = "stub-1"
	stubPromptVersion = "v1"

	noMatchConfidence = 0.3
)

// keyword sets in tie-break priority order.
var stubKeywords = []struct {
	category domain.TicketCategory
	words    []string
}{
	{domain.CategoryBilling, []string{"refund", "invoice", "payment", "charge"}},
	{domain.CategoryTech, []string{"error", "bug", "stack", "crash", "500"}},
	{domain.CategoryShipping, []string{"delivery", "shipment", "package", "tracking"}},
}

// StubBackend is the deterministic keyword classifier and template drafter.
type StubBackend struct{}

// NewStubBackend returns the offline backend.
func NewStubBackend() *StubBackend {
	return &StubBackend{}
}

// Classify scores each category by keyword occurrences in the lower-cased text.
func (StubBackend) Classify(_ context.Context, text string) (Classification, error) {
	lower := strings.ToLower(text)

	best := Classification{Category: domain.CategoryOther, Confidence: noMatchConfidence}
	bestHits := 0
	for _, set := range stubKeywords {
		hits := 0
		for _, w := range set.words {
			hits += strings.Count(lower, w)
		}
		if hits > bestHits {
			bestHits = hits
			best.Category = set.category
		}
	}
	if bestHits == 0 {
		return best, nil
	}
	best.Confidence = math.Min(1, math.Round((0.5+0.1*float64(bestHits))*100)/100)
	return best, nil
}

// Draft lists every reference as a numbered line and cites all of them.
func (StubBackend) Draft(_ context.Context, _ string, refs []Reference) (Draft, error) {
	if len(refs) == 0 {
		return Draft{
			Reply:     "Thanks for reaching out. We could not find a help article that matches your message yet; a member of our team will follow up shortly.",
			Citations: []string{},
		}, nil
	}

	var b strings.Builder
	b.WriteString("Thanks for reaching out. Based on your message, here are helpful references:\n")
	citations := make([]string, 0, len(refs))
	for i, ref := range refs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ref.Title)
		citations = append(citations, ref.ID)
	}
	b.WriteString("\nPlease review the above and let us know if you need more help.")
	return Draft{Reply: b.String(), Citations: citations}, nil
}

// Info implements Backend.
func (StubBackend) Info() domain.ModelInfo {
	return domain.ModelInfo{Provider: stubProvider, Model: stubModel, PromptVersion: stubPromptVersion}
}
