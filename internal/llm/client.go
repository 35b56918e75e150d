package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/digestrank/internal/cache"
	"github.com/ppiankov/digestrank/internal/logger"
	"github.com/ppiankov/digestrank/internal/model"
)

// BatchScores is the validated outcome of scoring one batch
type BatchScores struct {
	Scores []int // Aligned with the batch papers, each within [MinScore, MaxScore]
	Model  string
	Usage  model.TokenUsage
	Cached bool // Served from cache; no service call was made
}

// ScoreClient turns a batch of papers into validated scores: it builds the
// prompts, calls the provider, and normalizes the reply.
type ScoreClient struct {
	provider Provider
	config   Config
	cache    cache.Cache
	cacheTTL time.Duration
}

// Option configures a ScoreClient
type Option func(*ScoreClient)

// WithCache stores validated batch scores in c
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(sc *ScoreClient) {
		sc.cache = c
		sc.cacheTTL = ttl
	}
}

// NewScoreClient wraps a provider
func NewScoreClient(provider Provider, config Config, opts ...Option) *ScoreClient {
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	sc := &ScoreClient{
		provider: provider,
		config:   config,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// ProviderName returns the underlying provider name
func (c *ScoreClient) ProviderName() string {
	return c.provider.Name()
}

// Model returns the configured default model
func (c *ScoreClient) Model() string {
	return c.config.Model
}

// ScoreBatch scores every paper in batch against profile. The returned
// scores are aligned with batch.Papers. Errors are *TransportError,
// *ProtocolError, or *ValidationError.
func (c *ScoreClient) ScoreBatch(ctx context.Context, batch model.ScoreBatch, profile, modelName, apiKey string) (*BatchScores, error) {
	n := batch.Size()
	if n == 0 {
		return nil, &ValidationError{Reason: "empty batch"}
	}
	if modelName == "" {
		modelName = c.config.Model
	}

	key := c.cacheKey(batch, profile, modelName)
	if c.cache != nil {
		if scores, ok := c.cached(key, n); ok {
			logger.Debug("batch %d served from cache", batch.Number)
			return &BatchScores{Scores: scores, Model: modelName, Cached: true}, nil
		}
	}

	req := ScoreRequest{
		SystemPrompt: BuildSystemPrompt(n),
		UserPrompt:   BuildUserPrompt(batch, profile),
		BatchSize:    n,
		Model:        modelName,
		APIKey:       apiKey,
		MaxTokens:    c.config.MaxTokens,
		Temperature:  c.config.Temperature,
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(c.config.Timeout)*time.Second)
	defer cancel()

	resp, err := c.provider.Score(callCtx, req)
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Provider: c.provider.Name(), Err: err}
		}
		return nil, err
	}

	scores, err := ParseScores(resp.Content, n)
	if err != nil {
		var pe *ProtocolError
		if errors.As(err, &pe) {
			pe.Provider = c.provider.Name()
		}
		return nil, err
	}

	if c.cache != nil {
		if data, err := json.Marshal(scores); err == nil {
			if err := c.cache.Set(key, data, c.cacheTTL); err != nil {
				logger.Warn("failed to cache batch %d scores: %v", batch.Number, err)
			}
		}
	}

	usedModel := resp.Model
	if usedModel == "" {
		usedModel = modelName
	}

	return &BatchScores{
		Scores: scores,
		Model:  usedModel,
		Usage:  resp.Usage,
	}, nil
}

// cacheKey covers everything that determines the reply except the credential
func (c *ScoreClient) cacheKey(batch model.ScoreBatch, profile, modelName string) string {
	parts := make([]string, 0, batch.Size()+3)
	parts = append(parts, c.provider.Name(), modelName, profile)
	for _, p := range batch.Papers {
		parts = append(parts, p.Link)
	}
	return cache.CacheKey(parts...)
}

func (c *ScoreClient) cached(key string, n int) ([]int, bool) {
	data, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	var scores []int
	if err := json.Unmarshal(data, &scores); err != nil || len(scores) != n {
		return nil, false
	}
	return scores, true
}

// ParseScores validates a reply against the score contract: a JSON object
// whose "scores" array holds exactly n numeric values. Each value is rounded
// half-up and clamped into [MinScore, MaxScore].
func ParseScores(content string, n int) ([]int, error) {
	content = stripCodeFence(content)

	var payload struct {
		Scores json.RawMessage `json:"scores"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, &ProtocolError{Content: content, Err: err}
	}

	if len(payload.Scores) == 0 || string(payload.Scores) == "null" {
		return nil, &ValidationError{Expected: n, Reason: "missing scores array"}
	}

	var raw []any
	if err := json.Unmarshal(payload.Scores, &raw); err != nil {
		return nil, &ValidationError{Expected: n, Reason: "scores is not an array"}
	}

	if len(raw) != n {
		return nil, &ValidationError{Expected: n, Got: len(raw)}
	}

	scores := make([]int, n)
	for i, v := range raw {
		score, err := NormalizeScore(v)
		if err != nil {
			return nil, &ValidationError{Expected: n, Got: len(raw), Reason: fmt.Sprintf("score %d: %v", i, err)}
		}
		scores[i] = score
	}

	return scores, nil
}

// NormalizeScore coerces a decoded JSON value to an integer score.
// Numbers and numeric strings are accepted; anything else is rejected.
func NormalizeScore(v any) (int, error) {
	var x float64
	switch val := v.(type) {
	case float64:
		x = val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric value %q", val)
		}
		x = f
	default:
		return 0, fmt.Errorf("non-numeric value %v", v)
	}

	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("non-finite value %v", x)
	}

	return clamp(math.Floor(x + 0.5)), nil
}

func clamp(x float64) int {
	if x < model.MinScore {
		return model.MinScore
	}
	if x > model.MaxScore {
		return model.MaxScore
	}
	return int(x)
}

// stripCodeFence removes a Markdown code fence around a JSON reply
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
