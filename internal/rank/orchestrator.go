// Package rank scores papers in sequential batches and returns the best
// matches for a research profile.
package rank

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ppiankov/digestrank/internal/llm"
	"github.com/ppiankov/digestrank/internal/logger"
	"github.com/ppiankov/digestrank/internal/model"
)

var (
	// ErrNoPapers is returned for an empty paper sequence
	ErrNoPapers = errors.New("no papers to rank")

	// ErrNoScores is returned when every batch failed
	ErrNoScores = errors.New("no batch produced usable scores")

	// ErrInvalidTopN is returned when fewer than one result is requested
	ErrInvalidTopN = errors.New("top N must be at least 1")
)

// Scorer scores one batch; *llm.ScoreClient implements it
type Scorer interface {
	ScoreBatch(ctx context.Context, batch model.ScoreBatch, profile, modelName, apiKey string) (*llm.BatchScores, error)
	ProviderName() string
}

// Pacer spaces batches; *worker.Pacer implements it
type Pacer interface {
	Wait(ctx context.Context, key string) error
	Pause(ctx context.Context) error
}

// Options tune a ranking run
type Options struct {
	// BatchSize is the maximum number of papers per scoring call
	BatchSize int

	// ScoreSingle sends a lone paper to the scorer instead of returning it unscored
	ScoreSingle bool
}

// Result is the outcome of a ranking run
type Result struct {
	Papers        []model.RankedPaper  // Descending score, at most topN
	Scores        []model.ScoreResult  // Every validated score, in encounter order
	Failures      []model.BatchFailure // Batches that contributed nothing
	Batches       int
	CachedBatches int
	Usage         model.TokenUsage
	Model         string // Model reported by the service, if any
}

// Orchestrator runs the batch loop
type Orchestrator struct {
	scorer Scorer
	pacer  Pacer
	opts   Options
}

// NewOrchestrator creates an orchestrator. A nil pacer means no pacing.
func NewOrchestrator(scorer Scorer, pacer Pacer, opts Options) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = model.DefaultBatchSize
	}
	if pacer == nil {
		pacer = noPacer{}
	}
	return &Orchestrator{
		scorer: scorer,
		pacer:  pacer,
		opts:   opts,
	}
}

// Rank scores papers against profile and returns up to topN of them in
// descending score order. Batches run strictly one after another; a failed
// batch is recorded and skipped. Cancellation is observed between batches.
func (o *Orchestrator) Rank(ctx context.Context, papers []model.PaperRecord, profile string, topN int, modelName, apiKey string) (*Result, error) {
	if len(papers) == 0 {
		return nil, ErrNoPapers
	}
	if topN < 1 {
		return nil, ErrInvalidTopN
	}

	if len(papers) == 1 && !o.opts.ScoreSingle {
		logger.Debug("single paper, returning unscored")
		return &Result{
			Papers: []model.RankedPaper{{PaperRecord: papers[0]}},
		}, nil
	}

	batches := Partition(papers, o.opts.BatchSize)
	result := &Result{Batches: len(batches)}

	logger.Section("Ranking")
	logger.Info("scoring %d papers in %d batches of up to %d", len(papers), len(batches), o.opts.BatchSize)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ranking stopped before batch %d: %w", batch.Number, err)
		}

		if err := o.pacer.Wait(ctx, o.scorer.ProviderName()); err != nil {
			return nil, fmt.Errorf("ranking stopped before batch %d: %w", batch.Number, err)
		}

		scored, err := o.scorer.ScoreBatch(ctx, batch, profile, modelName, apiKey)
		if err == nil && len(scored.Scores) != batch.Size() {
			err = &llm.ValidationError{Expected: batch.Size(), Got: len(scored.Scores)}
			scored = nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("ranking stopped during batch %d: %w", batch.Number, ctxErr)
			}
			logger.Warn("batch %d (papers %d-%d) failed: %v", batch.Number, batch.Offset+1, batch.Offset+batch.Size(), err)
			result.Failures = append(result.Failures, model.BatchFailure{
				BatchNumber: batch.Number,
				Offset:      batch.Offset,
				Size:        batch.Size(),
				Kind:        llm.Kind(err),
				Error:       err.Error(),
			})
		} else {
			for local, score := range scored.Scores {
				result.Scores = append(result.Scores, model.ScoreResult{
					GlobalIndex: batch.Offset + local,
					Score:       score,
					BatchNumber: batch.Number,
				})
			}
			result.Usage.Add(scored.Usage)
			if scored.Model != "" {
				result.Model = scored.Model
			}
			if scored.Cached {
				result.CachedBatches++
			}
			logger.Debug("batch %d scored %d papers", batch.Number, len(scored.Scores))
		}

		if i < len(batches)-1 && (scored == nil || !scored.Cached) {
			if err := o.pacer.Pause(ctx); err != nil {
				return nil, fmt.Errorf("ranking stopped after batch %d: %w", batch.Number, err)
			}
		}
	}

	if len(result.Scores) == 0 {
		return nil, fmt.Errorf("%w (%d of %d batches failed)", ErrNoScores, len(result.Failures), len(batches))
	}

	result.Papers = SelectTop(papers, result.Scores, topN)
	return result, nil
}

// Partition splits papers into consecutive batches of at most size papers
func Partition(papers []model.PaperRecord, size int) []model.ScoreBatch {
	if size <= 0 {
		size = model.DefaultBatchSize
	}

	batches := make([]model.ScoreBatch, 0, (len(papers)+size-1)/size)
	for offset := 0; offset < len(papers); offset += size {
		end := offset + size
		if end > len(papers) {
			end = len(papers)
		}
		batches = append(batches, model.ScoreBatch{
			Number: len(batches) + 1,
			Offset: offset,
			Papers: papers[offset:end],
		})
	}
	return batches
}

// SelectTop orders scores descending, keeping encounter order among ties,
// and merges the first topN with their papers. scores is not modified.
func SelectTop(papers []model.PaperRecord, scores []model.ScoreResult, topN int) []model.RankedPaper {
	ordered := make([]model.ScoreResult, len(scores))
	copy(ordered, scores)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	if topN > len(ordered) {
		topN = len(ordered)
	}

	ranked := make([]model.RankedPaper, 0, topN)
	for _, r := range ordered[:topN] {
		ranked = append(ranked, model.RankedPaper{
			PaperRecord: papers[r.GlobalIndex],
			Score:       r.Score,
			BatchNumber: r.BatchNumber,
		})
	}
	return ranked
}

type noPacer struct{}

func (noPacer) Wait(ctx context.Context, key string) error { return ctx.Err() }
func (noPacer) Pause(ctx context.Context) error            { return ctx.Err() }
