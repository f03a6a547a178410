package llm

import (
	"context"
	"errors"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/triage"
)

const providerAnthropic = "anthropic"

// Anthropic classifies and drafts with the Messages API.
type Anthropic struct {
	client    anthropicsdk.Client
	model     string
	maxTokens int64
}

var _ triage.Backend = (*Anthropic)(nil)

// NewAnthropic builds the adapter. Retries are disabled; the orchestrator
// owns the per-call deadline.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: api key required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient()),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		client:    anthropicsdk.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.maxTokens(),
	}, nil
}

func (a *Anthropic) Classify(ctx context.Context, text string) (triage.Classification, error) {
	raw, err := a.complete(ctx, triage.ClassifySystemPrompt, text)
	if err != nil {
		return triage.Classification{}, err
	}
	return triage.ParseClassification(raw)
}

func (a *Anthropic) Draft(ctx context.Context, text string, refs []triage.Reference) (triage.Draft, error) {
	raw, err := a.complete(ctx, triage.DraftSystemPrompt, triage.DraftUserPrompt(text, refs))
	if err != nil {
		return triage.Draft{}, err
	}
	return triage.ParseDraft(raw, refs)
}

func (a *Anthropic) Info() domain.ModelInfo {
	return domain.ModelInfo{Provider: providerAnthropic, Model: a.model, PromptVersion: triage.ModelPromptVersion}
}

func (a *Anthropic) complete(ctx context.Context, system, user string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropicsdk.TextBlockParam{{Text: system}},
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", callError(providerAnthropic, err)
	}
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, ""), nil
}
