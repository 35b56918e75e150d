package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/digestrank/internal/model"
	"github.com/ppiankov/digestrank/internal/notify"
	"github.com/ppiankov/digestrank/internal/pipeline"
)

var (
	profileFile string
	profileText string
	topN        int
	provider    string
	modelName   string
	outJSON     string
	outMD       string
	noCache     bool
	noFooter    bool
	sendEmail   bool
	scoreSingle bool
	runTimeout  time.Duration
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank <digest.eml|dir>",
	Short: "Rank the papers of one digest against your research profile",
	Long: `Rank extracts every paper from an arXiv digest and scores it against
your research profile, printing the best matches.

The digest may be a plain-text file, an .eml message, or a directory,
in which case the most recently modified .eml file is used.

Example:
  digestrank rank digest.eml --profile profile.txt
  digestrank rank ~/Mail/arxiv --profile-text "graph neural networks" --top 10
  digestrank rank digest.eml --profile profile.txt --provider gemini --md top.md`,
	Args: cobra.ExactArgs(1),
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringVar(&profileFile, "profile", "", "file containing your research profile")
	rankCmd.Flags().StringVar(&profileText, "profile-text", "", "research profile given inline")
	rankCmd.Flags().IntVar(&topN, "top", model.DefaultTopN, "number of papers to recommend")

	rankCmd.Flags().StringVar(&provider, "provider", "", "scoring provider (openai, anthropic, ollama, gemini)")
	rankCmd.Flags().StringVar(&modelName, "model", "", "model name")

	rankCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default from config)")
	rankCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	rankCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the batch score cache")
	rankCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	rankCmd.Flags().BoolVar(&sendEmail, "email", false, "email the recommendations (requires email config)")
	rankCmd.Flags().BoolVar(&scoreSingle, "score-single", false, "score a digest that lists a single paper")
	rankCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "overall run timeout")
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg, err := rankConfig(cmd)
	if err != nil {
		return err
	}

	profile, err := readProfile(profileFile, profileText)
	if err != nil {
		return err
	}

	path, err := pipeline.ResolveDigest(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, runTimeout)
	defer cancelTimeout()

	if verbose {
		fmt.Fprintf(os.Stderr, "Digest:   %s\n", path)
		fmt.Fprintf(os.Stderr, "Provider: %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintf(os.Stderr, "Batch:    %d papers, %v delay\n", cfg.Ranking.BatchSize, cfg.Ranking.BatchDelay)
		fmt.Fprintf(os.Stderr, "Cache:    %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	p, err := pipeline.NewPipeline(cfg, profile, pipeline.Options{ScoreSingle: scoreSingle})
	if err != nil {
		return err
	}

	report, err := p.RankFile(ctx, path)
	if err != nil {
		return fmt.Errorf("rank failed: %w", err)
	}

	printRunDiagnostics(report)

	if err := p.RenderReport(os.Stdout, report, cfg.Output.JSONPath, cfg.Output.MarkdownPath); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if cfg.Email.Enabled {
		if err := emailReport(cfg.Email, report); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Emailed recommendations to %s\n", cfg.Email.ToEmail)
	}

	return nil
}

// rankConfig loads the config and applies the flags the user set
func rankConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.LLM.Provider = provider
		cfg.LLM.APIKey = ""
		if !flags.Changed("model") {
			cfg.LLM.Model = ""
		}
		applyProviderEnv(cfg)
	}
	if flags.Changed("model") {
		cfg.LLM.Model = modelName
	}
	if flags.Changed("top") {
		cfg.Ranking.TopN = topN
	}
	if flags.Changed("json") {
		cfg.Output.JSONPath = outJSON
	}
	if flags.Changed("md") {
		cfg.Output.MarkdownPath = outMD
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if sendEmail {
		cfg.Email.Enabled = true
	}
	cfg.Output.Verbose = verbose

	if cfg.Ranking.TopN < 1 {
		return nil, fmt.Errorf("--top must be at least 1, got %d", cfg.Ranking.TopN)
	}
	if err := requireCredential(cfg); err != nil {
		return nil, err
	}
	if cfg.Email.Enabled {
		if err := notify.NewEmailSender(cfg.Email).Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// readProfile returns the research profile from a file or inline text
func readProfile(file, text string) (string, error) {
	if file != "" && text != "" {
		return "", fmt.Errorf("use either --profile or --profile-text, not both")
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read profile: %w", err)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("a research profile is required (--profile FILE or --profile-text TEXT)")
	}
	return text, nil
}

func printRunDiagnostics(report *model.RankReport) {
	stats := report.Stats
	fmt.Fprintf(os.Stderr, "✓ Extracted %d papers from %d entries\n", stats.Papers, stats.Entries)
	if stats.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "✗ Skipped %d malformed entries\n", stats.Skipped)
	}
	fmt.Fprintf(os.Stderr, "✓ Scored %d papers in %d batches", stats.Scored, stats.Batches)
	if stats.CachedBatches > 0 {
		fmt.Fprintf(os.Stderr, " (%d cached)", stats.CachedBatches)
	}
	fmt.Fprintln(os.Stderr)

	for _, f := range report.Failures {
		fmt.Fprintf(os.Stderr, "✗ Batch %d (papers %d-%d) failed [%s]: %s\n",
			f.BatchNumber, f.Offset+1, f.Offset+f.Size, f.Kind, f.Error)
	}
	fmt.Fprintln(os.Stderr)
}

func emailReport(cfg model.EmailConfig, report *model.RankReport) error {
	msg, err := notify.NewReportRenderer().Render(report)
	if err != nil {
		return err
	}
	return notify.NewEmailSender(cfg).Send(msg)
}
