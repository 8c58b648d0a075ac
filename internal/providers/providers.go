package providers

import (
	"context"
)

// Config represents a single completion request to an LLM provider
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	// JSON asks the provider to constrain its answer to a JSON document
	JSON bool
}

// Provider defines the interface for an LLM provider
type Provider interface {
	Complete(ctx context.Context, config Config) (string, error)
}

// DefaultModel returns the model used when none is configured for provider
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "gemini":
		return "gemini-1.5-flash"
	default:
		return "llama3.2"
	}
}
