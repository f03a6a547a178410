package triage

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// ModelPromptVersion identifies the prompts below in suggestion provenance.
const ModelPromptVersion = "v1"

// ClassifySystemPrompt instructs a model to classify a ticket as JSON.
const ClassifySystemPrompt = `You classify customer support tickets.
Reply with a single JSON object and nothing else:
{"category": "billing" | "tech" | "shipping" | "other", "confidence": number between 0 and 1}`

// DraftSystemPrompt instructs a model to draft a reply as JSON.
const DraftSystemPrompt = `You draft replies to customer support tickets using the numbered help articles provided.
Reply with a single JSON object and nothing else:
{"reply": "short reply without a reference list", "citations": [article numbers you relied on]}`

// DraftUserPrompt renders the ticket text and numbered references.
func DraftUserPrompt(text string, refs []Reference) string {
	var b strings.Builder
	b.WriteString("Ticket:\n")
	b.WriteString(text)
	b.WriteString("\n\nHelp articles:\n")
	if len(refs) == 0 {
		b.WriteString("(none)\n")
	}
	for i, ref := range refs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ref.Title)
	}
	return b.String()
}

// ParseClassification reads a model's classification JSON. Unknown categories
// map to other and confidence is clamped to [0,1].
func ParseClassification(raw string) (Classification, error) {
	obj, err := extractJSON(raw)
	if err != nil {
		return Classification{}, err
	}

	category := domain.TicketCategory(strings.ToLower(strings.TrimSpace(obj.Get("category").String())))
	if !category.Valid() {
		category = domain.CategoryOther
	}
	confidence := obj.Get("confidence")
	if !confidence.Exists() {
		return Classification{}, fmt.Errorf("%w: classification missing confidence", ErrBackendUnavailable)
	}
	return Classification{Category: category, Confidence: clamp01(confidence.Float())}, nil
}

// ParseDraft reads a model's draft JSON and appends the cited references.
func ParseDraft(raw string, refs []Reference) (Draft, error) {
	obj, err := extractJSON(raw)
	if err != nil {
		return Draft{}, err
	}
	reply := strings.TrimSpace(obj.Get("reply").String())
	if reply == "" {
		return Draft{}, fmt.Errorf("%w: draft missing reply", ErrBackendUnavailable)
	}

	var picked []int
	for _, c := range obj.Get("citations").Array() {
		picked = append(picked, int(c.Int()))
	}
	return ComposeDraft(reply, refs, picked), nil
}

// ComposeDraft keeps the valid 1-based indexes in picked, in reference order,
// and appends them to body as a numbered list.
func ComposeDraft(body string, refs []Reference, picked []int) Draft {
	seen := make(map[int]struct{}, len(picked))
	indexes := make([]int, 0, len(picked))
	for _, n := range picked {
		if n < 1 || n > len(refs) {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		indexes = append(indexes, n)
	}
	sort.Ints(indexes)

	citations := make([]string, 0, len(indexes))
	if len(indexes) == 0 {
		return Draft{Reply: body, Citations: citations}
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\nReferences:\n")
	for i, n := range indexes {
		ref := refs[n-1]
		fmt.Fprintf(&b, "%d. %s\n", i+1, ref.Title)
		citations = append(citations, ref.ID)
	}
	return Draft{Reply: strings.TrimRight(b.String(), "\n"), Citations: citations}
}

// extractJSON finds the outermost object in raw, tolerating code fences and prose.
func extractJSON(raw string) (gjson.Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return gjson.Result{}, fmt.Errorf("%w: model reply is not JSON", ErrBackendUnavailable)
	}
	body := raw[start : end+1]
	if !gjson.Valid(body) {
		return gjson.Result{}, fmt.Errorf("%w: model reply is not valid JSON", ErrBackendUnavailable)
	}
	return gjson.Parse(body), nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
