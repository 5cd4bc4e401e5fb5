// Package llm provides AI-backed leak classification over an abstract
// completion capability. The capability returns free text with no
// structured-output guarantee; all parsing here is tolerant.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Client defines the completion interface for AI providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for an AI provider client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewClient creates a provider client from configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return newAnthropicClient(cfg)
	case "openai":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}
