// Package llm adapts hosted model APIs to triage.Backend. Both adapters send
// the same prompts and parse the same JSON replies.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/spec-kit/ticket-triage/internal/triage"
)

const defaultMaxTokens = 512

// Config is shared by both adapters.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	// HTTPClient defaults to a client with an otelhttp transport.
	HTTPClient *http.Client
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

func (c Config) maxTokens() int64 {
	if c.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return int64(c.MaxTokens)
}

// callError maps an SDK error onto the triage sentinels.
func callError(provider string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", provider, triage.ErrBackendTimeout)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", provider, err)
	default:
		return fmt.Errorf("%s: %w: %v", provider, triage.ErrBackendUnavailable, err)
	}
}
