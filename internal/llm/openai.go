package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/digestrank/internal/logger"
	"github.com/ppiankov/digestrank/internal/util"
)

// OpenAIProvider implements the Provider interface for OpenAI models
type OpenAIProvider struct {
	config     Config
	httpClient *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider. The API key may be
// supplied later, per call.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	return &OpenAIProvider{
		config:     config,
		httpClient: util.NewHTTPClient(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) client(apiKey string) *openai.Client {
	clientConfig := openai.DefaultConfig(apiKey)
	if p.config.BaseURL != "" {
		clientConfig.BaseURL = p.config.BaseURL
	}
	clientConfig.HTTPClient = p.httpClient
	return openai.NewClientWithConfig(clientConfig)
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	if p.config.APIKey == "" {
		logger.Warn("openai check failed: %v", ErrMissingAPIKey)
		return false
	}

	// Simple check: try to list models (lightweight API call)
	_, err := p.client(p.config.APIKey).ListModels(ctx)
	if err != nil {
		logger.Warn("openai check failed: %v", err)
		return false
	}
	return true
}

// Score sends the batch to the Chat Completions API with a strict JSON schema
func (p *OpenAIProvider) Score(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	apiKey := credential(req, p.config)
	if apiKey == "" {
		return nil, &TransportError{Provider: p.Name(), Err: ErrMissingAPIKey}
	}

	model := modelOrDefault(req, p.config, openai.GPT4oMini)

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.UserPrompt,
			},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   SchemaName,
				Schema: ScoresSchema(req.BatchSize),
				Strict: true,
			},
		},
	}

	resp, err := p.client(apiKey).CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, &TransportError{Provider: p.Name(), Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &TransportError{Provider: p.Name(), Err: errors.New("no choices in response")}
	}

	return &ScoreResponse{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:   resp.Model,
		Usage:   modelUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens),
	}, nil
}
