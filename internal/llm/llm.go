// Package llm holds HTTP clients for the text generation backends used to
// draft reminder emails. Every client exposes the same single-shot
// Complete(ctx, prompt) call.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 60 * time.Second

// Provider names accepted by New.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Completer is implemented by every backend client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	IsConfigured() bool
}

// New returns the client for provider.
func New(provider, apiKey, model string) (Completer, error) {
	switch provider {
	case "", ProviderGemini:
		return NewGeminiClient(apiKey, model), nil
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, model), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", provider)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}
