package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/digestrank/internal/model"
	"github.com/ppiankov/digestrank/internal/pipeline"
	"github.com/ppiankov/digestrank/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	listFile     string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <digest>...",
	Short: "Rank several digests in parallel",
	Long: `Batch ranks several digests as independent runs:
- Digests come from the arguments and/or a list file (one path per line)
- Runs execute in parallel; batches within one digest stay sequential
- All runs share one request pacer per provider
- A JSON and Markdown report is written for each digest

Example:
  digestrank batch mon.eml tue.eml wed.eml --profile profile.txt
  digestrank batch --list digests.txt --profile profile.txt --concurrency 4 --output-dir ./reports`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of digests ranked at once (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./digestrank-reports", "output directory for reports")
	batchCmd.Flags().StringVar(&listFile, "list", "", "file listing digest paths, one per line")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")

	// Shared with rank
	batchCmd.Flags().StringVar(&profileFile, "profile", "", "file containing your research profile")
	batchCmd.Flags().StringVar(&profileText, "profile-text", "", "research profile given inline")
	batchCmd.Flags().IntVar(&topN, "top", model.DefaultTopN, "number of papers to recommend per digest")
	batchCmd.Flags().StringVar(&provider, "provider", "", "scoring provider (openai, anthropic, ollama, gemini)")
	batchCmd.Flags().StringVar(&modelName, "model", "", "model name")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the batch score cache")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	batchCmd.Flags().BoolVar(&scoreSingle, "score-single", false, "score digests that list a single paper")
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths := append([]string{}, args...)
	if listFile != "" {
		listed, err := worker.ReadPathsFromFile(listFile)
		if err != nil {
			return fmt.Errorf("read digest list: %w", err)
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no digests given (pass paths or --list FILE)")
	}

	cfg, err := rankConfig(cmd)
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}

	profile, err := readProfile(profileFile, profileText)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, batchTimeout)
	defer cancelTimeout()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Digestrank Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Digests:      %d\n", len(paths))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Provider:     %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)

	// One pacer for every run so concurrent digests respect a single rate cap
	pacer := worker.NewPacer(cfg.Ranking.RequestsPerSecond, cfg.Ranking.Burst, cfg.Ranking.BatchDelay)
	fmt.Fprintf(os.Stderr, "  Batch delay:  %v\n", pacer.Delay())
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := pipeline.NewPipeline(cfg, profile, pipeline.Options{
		ScoreSingle: scoreSingle,
		Pacer:       pacer,
	})
	if err != nil {
		return err
	}

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)

	finished := 0
	processor.OnProgress(func(r *worker.RankResult) {
		finished++
		if verbose {
			fmt.Fprintf(os.Stderr, "  [%d/%d] %s\n", finished, len(paths), r.Path)
		}
	})

	fmt.Fprintf(os.Stderr, "⚙️  Ranking %d digests with %d workers...\n\n", len(paths), cfg.Concurrency.Workers)
	results := processor.ProcessFiles(ctx, paths)

	successCount := 0
	failureCount := 0
	renderer := p.Renderer()
	used := make(map[string]int)

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		slug := uniqueSlug(used, sanitizeFilename(result.Path))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(result.Report, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Report, mdPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Path, err)
			continue
		}

		successCount++
		stats := result.Report.Stats
		fmt.Fprintf(os.Stderr, "✓ %s (%d papers, %d/%d batches failed)\n",
			result.Path, stats.Papers, stats.FailedBatches, stats.Batches)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d digests\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if successCount == 0 {
		return fmt.Errorf("all %d digests failed", len(results))
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename turns a digest path into a report file stem
func sanitizeFilename(s string) string {
	s = filepath.Base(s)
	s = strings.TrimSuffix(s, filepath.Ext(s))
	s = filenameReplacer.Replace(s)

	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" || s == "." {
		s = "digest"
	}

	return s
}

// uniqueSlug appends a counter when two digests share a file name
func uniqueSlug(used map[string]int, slug string) string {
	used[slug]++
	if n := used[slug]; n > 1 {
		return fmt.Sprintf("%s-%d", slug, n)
	}
	return slug
}
