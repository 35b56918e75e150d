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

// DefaultOllamaURL is used when no base URL is configured
const DefaultOllamaURL = "http://localhost:11434"

// ErrOllamaModelRequired is returned when no local model is named
var ErrOllamaModelRequired = errors.New("ollama model must be specified (e.g., llama3.1:8b, mistral)")

// OllamaProvider scores batches with a local Ollama server. The scores
// schema is passed as the structured output format.
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

type ollamaRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system,omitempty"`
	Prompt  string          `json:"prompt"`
	Format  json.RawMessage `json:"format,omitempty"`
	Stream  bool            `json:"stream"`
	Options ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}

	return &OllamaProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: util.NewHTTPClient(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		config:     config,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks that the server answers and, when a model is
// configured, that it has been pulled
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}

	err := doJSON(ctx, p.httpClient, apiCall{
		method:       http.MethodGet,
		url:          p.baseURL + "/api/tags",
		errorMessage: ollamaErrorMessage,
	}, &tags)
	if err != nil {
		logger.Warn("ollama check failed (%s): %v", p.baseURL, err)
		return false
	}

	if p.config.Model == "" {
		return true
	}
	for _, m := range tags.Models {
		if m.Name == p.config.Model || strings.TrimSuffix(m.Name, ":latest") == p.config.Model {
			return true
		}
	}
	logger.Warn("ollama model %q is not pulled on %s", p.config.Model, p.baseURL)
	return false
}

// Score sends the batch to /api/generate. Local models need no credential.
func (p *OllamaProvider) Score(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	model := modelOrDefault(req, p.config, "")
	if model == "" {
		return nil, &TransportError{Provider: p.Name(), Err: ErrOllamaModelRequired}
	}

	var resp ollamaResponse
	err := doJSON(ctx, p.httpClient, apiCall{
		method: http.MethodPost,
		url:    p.baseURL + "/api/generate",
		body: ollamaRequest{
			Model:  model,
			System: req.SystemPrompt,
			Prompt: req.UserPrompt,
			Format: ScoresSchema(req.BatchSize),
			Options: ollamaOptions{
				Temperature: req.Temperature,
				NumPredict:  req.MaxTokens,
			},
		},
		errorMessage: ollamaErrorMessage,
	}, &resp)
	if err != nil {
		return nil, &TransportError{Provider: p.Name(), Err: err}
	}

	return &ScoreResponse{
		Content: strings.TrimSpace(resp.Response),
		Model:   resp.Model,
		Usage:   modelUsage(resp.PromptEvalCount, resp.EvalCount, 0),
	}, nil
}

func ollamaErrorMessage(body []byte) string {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return ""
	}
	return apiErr.Error
}
