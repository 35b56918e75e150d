// Package llm scores batches of papers against a research profile using a
// chat-completion service with a structured JSON response.
package llm

import (
	"context"

	"github.com/ppiankov/digestrank/internal/model"
)

// Provider defines the interface for scoring services
type Provider interface {
	// Name returns the provider name
	Name() string

	// Score sends one scoring conversation and returns the raw reply content.
	// Failures to obtain a reply are reported as *TransportError.
	Score(ctx context.Context, req ScoreRequest) (*ScoreResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ScoreRequest is one structured scoring call
type ScoreRequest struct {
	// SystemPrompt carries the rubric and the exact-count instruction
	SystemPrompt string

	// UserPrompt carries the profile and the numbered paper list
	UserPrompt string

	// BatchSize is the number of scores the response schema demands
	BatchSize int

	// Model is the specific model to use (provider-specific)
	Model string

	// APIKey is the credential for this call. Empty falls back to Config.APIKey.
	APIKey string

	MaxTokens   int
	Temperature float32
}

// ScoreResponse is the unvalidated service reply
type ScoreResponse struct {
	// Content is the reply text, expected to be a JSON object with a "scores" array
	Content string

	// Model is the model that generated the response
	Model string

	// Usage tracks token consumption
	Usage model.TokenUsage
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey used when a call does not carry its own credential
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for each scoring call
	Timeout int // seconds

	MaxTokens   int
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// Scoring call defaults
const (
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.1
	DefaultTimeout     = 30
)

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		Timeout:     DefaultTimeout,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}

// credential picks the per-call key over the configured one
func credential(req ScoreRequest, config Config) string {
	if req.APIKey != "" {
		return req.APIKey
	}
	return config.APIKey
}

func modelOrDefault(req ScoreRequest, config Config, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if config.Model != "" {
		return config.Model
	}
	return fallback
}
