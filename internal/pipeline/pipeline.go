// Package pipeline wires digest loading, extraction, and ranking into a
// single run and renders its report.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/digestrank/internal/cache"
	"github.com/ppiankov/digestrank/internal/digest"
	"github.com/ppiankov/digestrank/internal/llm"
	"github.com/ppiankov/digestrank/internal/logger"
	"github.com/ppiankov/digestrank/internal/model"
	"github.com/ppiankov/digestrank/internal/rank"
	"github.com/ppiankov/digestrank/internal/worker"
)

// Pipeline runs one digest through extraction and ranking
type Pipeline struct {
	extractor    *digest.Extractor
	scorer       *llm.ScoreClient
	orchestrator *rank.Orchestrator
	renderer     *Renderer
	config       *model.Config
	profile      string
	now          func() time.Time
}

// Options adjust a pipeline beyond the config file
type Options struct {
	// ScoreSingle scores a digest holding a single paper instead of returning it as-is
	ScoreSingle bool

	// Pacer is shared by concurrent runs; nil builds one from the config
	Pacer *worker.Pacer
}

// NewPipeline creates a pipeline for the configured provider
func NewPipeline(cfg *model.Config, profile string, opts Options) (*Pipeline, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return NewPipelineWithProvider(cfg, provider, profile, opts), nil
}

// NewPipelineWithProvider creates a pipeline around an existing provider
func NewPipelineWithProvider(cfg *model.Config, provider llm.Provider, profile string, opts Options) *Pipeline {
	var clientOpts []llm.Option
	if cfg.Cache.Enabled && cfg.Cache.Dir != "" {
		c := cache.New(cfg.Cache.Dir, cfg.Cache.MemoryTTL, cfg.Cache.TTL)
		clientOpts = append(clientOpts, llm.WithCache(c, cfg.Cache.TTL))
	}
	scorer := llm.NewScoreClient(provider, llm.ConfigFromModel(cfg.LLM), clientOpts...)

	pacer := opts.Pacer
	if pacer == nil {
		pacer = worker.NewPacer(cfg.Ranking.RequestsPerSecond, cfg.Ranking.Burst, cfg.Ranking.BatchDelay)
	}

	return &Pipeline{
		extractor: digest.NewExtractor(),
		scorer:    scorer,
		orchestrator: rank.NewOrchestrator(scorer, pacer, rank.Options{
			BatchSize:   cfg.Ranking.BatchSize,
			ScoreSingle: opts.ScoreSingle,
		}),
		renderer: NewRenderer(cfg.Output.IncludeFooter, cfg.Output.AbstractWidth),
		config:   cfg,
		profile:  profile,
		now:      time.Now,
	}
}

// Renderer returns the pipeline's renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// ResolveDigest maps a directory to its newest .eml file; files pass through
func ResolveDigest(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat digest: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	return digest.LatestInDir(path)
}

// RankFile ranks the digest at path. A directory selects its newest .eml file.
// Safe for concurrent use.
func (p *Pipeline) RankFile(ctx context.Context, path string) (*model.RankReport, error) {
	resolved, err := ResolveDigest(path)
	if err != nil {
		return nil, err
	}

	msg, err := digest.LoadFile(resolved)
	if err != nil {
		return nil, err
	}

	return p.RankMessage(ctx, msg)
}

// RankMessage extracts and ranks an already loaded digest
func (p *Pipeline) RankMessage(ctx context.Context, msg *digest.Message) (*model.RankReport, error) {
	parsed, err := p.extractor.Parse(msg.Body)
	if err != nil {
		return nil, err
	}

	result, err := p.orchestrator.Rank(ctx, parsed.Papers, p.profile, p.config.Ranking.TopN, p.config.LLM.Model, p.config.LLM.APIKey)
	if err != nil {
		return nil, fmt.Errorf("rank %s: %w", displaySource(msg), err)
	}

	now := p.now()
	report := &model.RankReport{
		RunID:       uuid.NewString(),
		Date:        now.Format("2006-01-02"),
		GeneratedAt: now.UTC(),
		Source:      msg.Path,
		Subject:     msg.Subject,
		Provider:    p.scorer.ProviderName(),
		Model:       p.config.LLM.Model,
		TopN:        p.config.Ranking.TopN,
		Stats: model.RunStats{
			Entries:       parsed.Entries,
			Skipped:       len(parsed.Skipped),
			Papers:        len(parsed.Papers),
			Batches:       result.Batches,
			FailedBatches: len(result.Failures),
			CachedBatches: result.CachedBatches,
			Scored:        len(result.Scores),
		},
		TokenUsage:      result.Usage,
		Recommendations: result.Papers,
		Failures:        result.Failures,
		Skipped:         parsed.Skipped,
	}
	if result.Model != "" {
		report.Model = result.Model
	}
	report.CostUSD = llm.EstimateCost(report.Model, report.TokenUsage)

	logger.Info("ranked %s: %d recommendations, %d/%d batches failed",
		displaySource(msg), len(report.Recommendations), report.Stats.FailedBatches, report.Stats.Batches)

	return report, nil
}

// RenderReport writes the JSON and Markdown outputs that have a path and
// prints the summary table to w
func (p *Pipeline) RenderReport(w io.Writer, report *model.RankReport, jsonPath, mdPath string) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		logger.Info("wrote JSON: %s", jsonPath)
	}

	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		logger.Info("wrote Markdown: %s", mdPath)
	}

	p.renderer.RenderSummary(w, report)

	return nil
}

func displaySource(msg *digest.Message) string {
	if msg.Path != "" {
		return msg.Path
	}
	return "digest"
}
