package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/triage"
)

const providerOpenAI = "openai"

// OpenAI classifies and drafts with the Chat Completions API.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int64
}

var _ triage.Backend = (*OpenAI)(nil)

// NewOpenAI builds the adapter with retries disabled.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient()),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.maxTokens(),
	}, nil
}

func (o *OpenAI) Classify(ctx context.Context, text string) (triage.Classification, error) {
	raw, err := o.complete(ctx, triage.ClassifySystemPrompt, text)
	if err != nil {
		return triage.Classification{}, err
	}
	return triage.ParseClassification(raw)
}

func (o *OpenAI) Draft(ctx context.Context, text string, refs []triage.Reference) (triage.Draft, error) {
	raw, err := o.complete(ctx, triage.DraftSystemPrompt, triage.DraftUserPrompt(text, refs))
	if err != nil {
		return triage.Draft{}, err
	}
	return triage.ParseDraft(raw, refs)
}

func (o *OpenAI) Info() domain.ModelInfo {
	return domain.ModelInfo{Provider: providerOpenAI, Model: o.model, PromptVersion: triage.ModelPromptVersion}
}

func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(o.model),
		MaxCompletionTokens: openai.Int(o.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", callError(providerOpenAI, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s: %w: empty choices", providerOpenAI, triage.ErrBackendUnavailable)
	}
	return completion.Choices[0].Message.Content, nil
}
