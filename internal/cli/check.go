package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/digestrank/internal/llm"
	"github.com/ppiankov/digestrank/internal/logger"
)

var checkTimeout time.Duration

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the configured scoring provider is reachable",
	Long: `Check verifies credentials and connectivity for the configured provider
without scoring anything.

Example:
  digestrank check
  digestrank check --provider ollama --model llama3.1`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&provider, "provider", "", "scoring provider (openai, anthropic, ollama, gemini)")
	checkCmd.Flags().StringVar(&modelName, "model", "", "model name")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 15*time.Second, "check timeout")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("provider") {
		cfg.LLM.Provider = provider
		cfg.LLM.APIKey = ""
		cfg.LLM.Model = ""
		applyProviderEnv(cfg)
	}
	if cmd.Flags().Changed("model") {
		cfg.LLM.Model = modelName
	}
	if err := requireCredential(cfg); err != nil {
		return err
	}

	p, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	if !p.IsAvailable(ctx) {
		if !logger.IsVerbose() {
			return fmt.Errorf("provider %s is not available (rerun with --verbose for details)", p.Name())
		}
		return fmt.Errorf("provider %s is not available", p.Name())
	}

	fmt.Fprintf(os.Stderr, "✓ %s is available\n", p.Name())
	return nil
}
