package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/digestrank/internal/model"
)

// Ranker ranks a single digest file as one self-contained run
type Ranker interface {
	RankFile(ctx context.Context, path string) (*model.RankReport, error)
}

// RankJob ranks one digest file
type RankJob struct {
	Index  int
	Path   string
	Ranker Ranker
}

// Execute executes the rank job
func (j *RankJob) Execute(ctx context.Context) Result {
	report, err := j.Ranker.RankFile(ctx, j.Path)
	return &RankResult{
		Index:  j.Index,
		Path:   j.Path,
		Report: report,
		Error:  err,
	}
}

// RankResult is the outcome of one digest run
type RankResult struct {
	Index  int // Position in the submitted list
	Path   string
	Report *model.RankReport
	Error  error
}

// GetError returns the error from the run
func (r *RankResult) GetError() error {
	return r.Error
}

// BatchProcessor ranks several digests concurrently. Each digest is an
// independent run; batches inside a run stay sequential.
type BatchProcessor struct {
	ranker      Ranker
	concurrency int
	progress    func(*RankResult)
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(ranker Ranker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		ranker:      ranker,
		concurrency: concurrency,
	}
}

// OnProgress registers fn to be called as each digest finishes
func (b *BatchProcessor) OnProgress(fn func(*RankResult)) {
	b.progress = fn
}

// ProcessFiles ranks every path and returns one result per path, in input order
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*RankResult {
	if len(paths) == 0 {
		return []*RankResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	if b.progress != nil {
		pool.OnResult(func(r Result) {
			b.progress(r.(*RankResult))
		})
	}
	pool.Start()

	rankResults := make([]*RankResult, 0, len(paths))
	for i, path := range paths {
		job := &RankJob{Index: i, Path: path, Ranker: b.ranker}
		if err := pool.Submit(job); err != nil {
			rankResults = append(rankResults, &RankResult{Index: i, Path: path, Error: err})
		}
	}

	for _, result := range pool.Wait() {
		rankResults = append(rankResults, result.(*RankResult))
	}
	sort.Slice(rankResults, func(i, j int) bool {
		return rankResults[i].Index < rankResults[j].Index
	})

	return rankResults
}

// ReadPathsFromFile reads digest paths from a file (one per line)
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
