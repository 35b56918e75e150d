package cli

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/ppiankov/digestrank/internal/model"
)

// setDefaults registers every config key with viper so that environment
// variables and the config file can override each of them
func setDefaults(cfg *model.Config) {
	defaults := map[string]any{
		"llm.provider":    cfg.LLM.Provider,
		"llm.model":       cfg.LLM.Model,
		"llm.api_key":     cfg.LLM.APIKey,
		"llm.base_url":    cfg.LLM.BaseURL,
		"llm.timeout":     cfg.LLM.Timeout,
		"llm.max_tokens":  cfg.LLM.MaxTokens,
		"llm.temperature": cfg.LLM.Temperature,
		"llm.http_proxy":  cfg.LLM.HTTPProxy,
		"llm.https_proxy": cfg.LLM.HTTPSProxy,
		"llm.no_proxy":    cfg.LLM.NoProxy,

		"ranking.batch_size":          cfg.Ranking.BatchSize,
		"ranking.batch_delay":         cfg.Ranking.BatchDelay,
		"ranking.top_n":               cfg.Ranking.TopN,
		"ranking.requests_per_second": cfg.Ranking.RequestsPerSecond,
		"ranking.burst":               cfg.Ranking.Burst,

		"cache.enabled":    cfg.Cache.Enabled,
		"cache.dir":        cfg.Cache.Dir,
		"cache.ttl":        cfg.Cache.TTL,
		"cache.memory_ttl": cfg.Cache.MemoryTTL,

		"concurrency.workers": cfg.Concurrency.Workers,

		"output.verbose":        cfg.Output.Verbose,
		"output.json":           cfg.Output.JSONPath,
		"output.markdown":       cfg.Output.MarkdownPath,
		"output.abstract_width": cfg.Output.AbstractWidth,
		"output.include_footer": cfg.Output.IncludeFooter,

		"email.enabled":     cfg.Email.Enabled,
		"email.smtp_server": cfg.Email.SMTPServer,
		"email.smtp_port":   cfg.Email.SMTPPort,
		"email.smtp_user":   cfg.Email.SMTPUser,
		"email.smtp_pass":   cfg.Email.SMTPPass,
		"email.from":        cfg.Email.FromEmail,
		"email.to":          cfg.Email.ToEmail,
	}

	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// loadConfig builds the effective configuration from defaults, the config
// file, and DIGESTRANK_* variables, then fills provider credentials from
// their conventional environment variables
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyProviderEnv(cfg)
	return cfg, nil
}

// applyProviderEnv reads the provider's own environment variables when the
// config does not already set them
func applyProviderEnv(cfg *model.Config) {
	switch cfg.LLM.Provider {
	case "openai", "":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "gemini", "google":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

// requireCredential fails early when a hosted provider has no API key
func requireCredential(cfg *model.Config) error {
	if cfg.LLM.APIKey != "" {
		return nil
	}
	switch cfg.LLM.Provider {
	case "openai", "":
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	case "anthropic", "claude":
		return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	case "gemini", "google":
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	return nil
}
