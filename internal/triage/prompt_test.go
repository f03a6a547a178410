package triage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

func TestParseClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		raw        string
		category   domain.TicketCategory
		confidence float64
	}{
		{"plain", `{"category":"billing","confidence":0.82}`, domain.CategoryBilling, 0.82},
		{"fenced", "```json\n{\"category\": \"Tech\", \"confidence\": 0.5}\n```", domain.CategoryTech, 0.5},
		{"unknown category", `{"category":"legal","confidence":0.9}`, domain.CategoryOther, 0.9},
		{"clamped high", `{"category":"shipping","confidence":7}`, domain.CategoryShipping, 1},
		{"clamped low", `{"category":"shipping","confidence":-2}`, domain.CategoryShipping, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseClassification(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.category, got.Category)
			assert.InDelta(t, tc.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestParseClassificationRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "billing", `{"category":"billing"}`, `{"category":`} {
		_, err := ParseClassification(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrBackendUnavailable), raw)
	}
}

func TestComposeDraftKeepsCitationsInReferenceOrder(t *testing.T) {
	t.Parallel()

	refs := []Reference{{ID: "a", Title: "Alpha"}, {ID: "b", Title: "Beta"}, {ID: "c", Title: "Gamma"}}
	draft := ComposeDraft("Try these.", refs, []int{3, 1, 3, 9, 0, -1})

	assert.Equal(t, []string{"a", "c"}, draft.Citations)
	assert.Equal(t, "Try these.\n\nReferences:\n1. Alpha\n2. Gamma", draft.Reply)
	assertSubsequence(t, draft.Citations, refIDs(refs))
}

func TestComposeDraftWithoutCitations(t *testing.T) {
	t.Parallel()

	draft := ComposeDraft("Nothing relevant.", []Reference{{ID: "a", Title: "Alpha"}}, nil)
	assert.Equal(t, "Nothing relevant.", draft.Reply)
	assert.Empty(t, draft.Citations)
}

func TestParseDraft(t *testing.T) {
	t.Parallel()

	refs := []Reference{{ID: "a", Title: "Alpha"}, {ID: "b", Title: "Beta"}}
	draft, err := ParseDraft(`Sure: {"reply":"Update your card.","citations":[2]}`, refs)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, draft.Citations)
	assert.Contains(t, draft.Reply, "1. Beta")

	_, err = ParseDraft(`{"reply":"","citations":[]}`, refs)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestDraftUserPromptNumbersReferences(t *testing.T) {
	t.Parallel()

	prompt := DraftUserPrompt("Where is my package?", []Reference{{ID: "a", Title: "Tracking"}})
	assert.Contains(t, prompt, "Where is my package?")
	assert.Contains(t, prompt, "1. Tracking")
	assert.Contains(t, DraftUserPrompt("x", nil), "(none)")
}

func refIDs(refs []Reference) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}

func assertSubsequence(t *testing.T, sub, seq []string) {
	t.Helper()
	i := 0
	for _, s := range seq {
		if i < len(sub) && sub[i] == s {
			i++
		}
	}
	assert.Equal(t, len(sub), i, "%v is not a subsequence of %v", sub, seq)
}
