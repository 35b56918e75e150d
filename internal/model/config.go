package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete digestrank configuration
type Config struct {
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Ranking     RankingConfig     `yaml:"ranking" mapstructure:"ranking"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Email       EmailConfig       `yaml:"email" mapstructure:"email"`
}

// LLMConfig configures the scoring service
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`         // openai, anthropic, ollama, gemini
	Model       string  `yaml:"model" mapstructure:"model"`               // Provider-specific model name
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"` // Prefer env vars
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds, per call
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy     string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// RankingConfig controls batching and pacing
type RankingConfig struct {
	BatchSize         int           `yaml:"batch_size" mapstructure:"batch_size"`
	BatchDelay        time.Duration `yaml:"batch_delay" mapstructure:"batch_delay"`
	TopN              int           `yaml:"top_n" mapstructure:"top_n"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables the limiter
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig controls the batch score cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
}

// ConcurrencyConfig controls how many digests the batch command ranks at once
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
	JSONPath      string `yaml:"json" mapstructure:"json"`
	MarkdownPath  string `yaml:"markdown" mapstructure:"markdown"`
	AbstractWidth int    `yaml:"abstract_width" mapstructure:"abstract_width"` // Display truncation only
	IncludeFooter bool   `yaml:"include_footer" mapstructure:"include_footer"`
}

// EmailConfig holds SMTP settings for mailing recommendations
type EmailConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	SMTPServer string `yaml:"smtp_server" mapstructure:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port" mapstructure:"smtp_port"`
	SMTPUser   string `yaml:"smtp_user" mapstructure:"smtp_user"`
	SMTPPass   string `yaml:"smtp_pass,omitempty" mapstructure:"smtp_pass"`
	FromEmail  string `yaml:"from" mapstructure:"from"`
	ToEmail    string `yaml:"to" mapstructure:"to"`
}

// Defaults
const (
	DefaultBatchSize  = 15
	DefaultBatchDelay = 500 * time.Millisecond
	DefaultTopN       = 5
)

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     30,
			MaxTokens:   150,
			Temperature: 0.1,
		},
		Ranking: RankingConfig{
			BatchSize:  DefaultBatchSize,
			BatchDelay: DefaultBatchDelay,
			TopN:       DefaultTopN,
			Burst:      1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultCacheDir(),
			TTL:       24 * time.Hour,
			MemoryTTL: time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 2,
		},
		Output: OutputConfig{
			JSONPath:      "recommendations.json",
			AbstractWidth: 150,
			IncludeFooter: true,
		},
		Email: EmailConfig{
			SMTPPort: 587,
		},
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "digestrank-cache")
	}
	return filepath.Join(home, ".digestrank", "cache")
}
