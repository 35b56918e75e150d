package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ppiankov/digestrank/internal/logger"
	"github.com/ppiankov/digestrank/internal/util"
)

const (
	defaultAnthropicURL   = "https://api.anthropic.com"
	defaultAnthropicModel = "claude-3-5-haiku-20241022"
	anthropicVersion      = "2023-06-01"
)

// AnthropicProvider scores batches with the Messages API. It has no
// response schema, so the system prompt alone constrains the reply shape.
type AnthropicProvider struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float32            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}

	return &AnthropicProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: util.NewHTTPClient(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		config:     config,
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable looks up the configured model, which needs a valid key
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	if p.config.APIKey == "" {
		logger.Warn("anthropic check failed: %v", ErrMissingAPIKey)
		return false
	}

	model := modelOrDefault(ScoreRequest{}, p.config, defaultAnthropicModel)
	err := doJSON(ctx, p.httpClient, apiCall{
		method:       http.MethodGet,
		url:          p.baseURL + "/v1/models/" + model,
		header:       p.headers(p.config.APIKey),
		errorMessage: anthropicErrorMessage,
	}, nil)
	if err != nil {
		logger.Warn("anthropic check failed: %v", err)
		return false
	}
	return true
}

// Score sends the batch as a single user message
func (p *AnthropicProvider) Score(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	apiKey := credential(req, p.config)
	if apiKey == "" {
		return nil, &TransportError{Provider: p.Name(), Err: ErrMissingAPIKey}
	}

	var resp anthropicResponse
	err := doJSON(ctx, p.httpClient, apiCall{
		method: http.MethodPost,
		url:    p.baseURL + "/v1/messages",
		header: p.headers(apiKey),
		body: anthropicRequest{
			Model:       modelOrDefault(req, p.config, defaultAnthropicModel),
			MaxTokens:   req.MaxTokens,
			System:      req.SystemPrompt,
			Messages:    []anthropicMessage{{Role: "user", Content: req.UserPrompt}},
			Temperature: req.Temperature,
		},
		errorMessage: anthropicErrorMessage,
	}, &resp)
	if err != nil {
		return nil, &TransportError{Provider: p.Name(), Err: err}
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &TransportError{Provider: p.Name(), Err: errors.New("no text content in response")}
	}
	if resp.StopReason == "max_tokens" {
		logger.Debug("anthropic reply hit max_tokens (%d)", req.MaxTokens)
	}

	return &ScoreResponse{
		Content: strings.TrimSpace(text.String()),
		Model:   resp.Model,
		Usage:   modelUsage(resp.Usage.InputTokens, resp.Usage.OutputTokens, 0),
	}, nil
}

func (p *AnthropicProvider) headers(apiKey string) http.Header {
	h := http.Header{}
	h.Set("x-api-key", apiKey)
	h.Set("anthropic-version", anthropicVersion)
	return h
}

func anthropicErrorMessage(body []byte) string {
	var apiErr struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return ""
	}
	return apiErr.Error.Type + " - " + apiErr.Error.Message
}
