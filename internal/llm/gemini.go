package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/ppiankov/digestrank/internal/logger"
	"github.com/ppiankov/digestrank/internal/model"
	"github.com/ppiankov/digestrank/internal/util"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider implements the Provider interface for Google Gemini models
type GeminiProvider struct {
	config     Config
	httpClient *http.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(config Config) (*GeminiProvider, error) {
	return &GeminiProvider{
		config:     config,
		httpClient: util.NewHTTPClient(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.config.BaseURL}
	}
	return genai.NewClient(ctx, cc)
}

// IsAvailable checks that the configured model can be looked up
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	if p.config.APIKey == "" {
		logger.Warn("gemini check failed: %v", ErrMissingAPIKey)
		return false
	}

	client, err := p.client(ctx, p.config.APIKey)
	if err != nil {
		logger.Warn("gemini check failed: %v", err)
		return false
	}

	if _, err := client.Models.Get(ctx, modelOrDefault(ScoreRequest{}, p.config, defaultGeminiModel), nil); err != nil {
		logger.Warn("gemini check failed: %v", err)
		return false
	}
	return true
}

// Score sends the batch to GenerateContent with a JSON response schema
func (p *GeminiProvider) Score(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	apiKey := credential(req, p.config)
	if apiKey == "" {
		return nil, &TransportError{Provider: p.Name(), Err: ErrMissingAPIKey}
	}

	client, err := p.client(ctx, apiKey)
	if err != nil {
		return nil, &TransportError{Provider: p.Name(), Err: fmt.Errorf("create client: %w", err)}
	}

	modelName := modelOrDefault(req, p.config, defaultGeminiModel)

	userContent := &genai.Content{
		Parts: []*genai.Part{
			{Text: req.UserPrompt},
		},
		Role: "user",
	}

	temperature := req.Temperature
	resp, err := client.Models.GenerateContent(ctx, modelName, []*genai.Content{userContent}, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: req.SystemPrompt},
			},
		},
		Temperature:      &temperature,
		MaxOutputTokens:  int32(req.MaxTokens),
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiScoresSchema(req.BatchSize),
	})
	if err != nil {
		return nil, &TransportError{Provider: p.Name(), Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, &TransportError{Provider: p.Name(), Err: errors.New("no content in response")}
	}

	out := &ScoreResponse{
		Content: text,
		Model:   modelName,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.Usage = modelUsage(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
			int(resp.UsageMetadata.TotalTokenCount),
		)
	}

	return out, nil
}

// geminiScoresSchema mirrors ScoresSchema in the genai schema dialect
func geminiScoresSchema(n int) *genai.Schema {
	count := int64(n)
	lo, hi := float64(model.MinScore), float64(model.MaxScore)

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"scores": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type:    genai.TypeNumber,
					Minimum: &lo,
					Maximum: &hi,
				},
				MinItems:    &count,
				MaxItems:    &count,
				Description: fmt.Sprintf("Exactly %d relevance scores, one per paper, in order.", n),
			},
		},
		Required: []string{"scores"},
	}
}
