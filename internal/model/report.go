package model

import "time"

// RankReport is the complete result of one ranking run
type RankReport struct {
	RunID           string         `json:"run_id"`
	Date            string         `json:"date"`              // YYYY-MM-DD
	GeneratedAt     time.Time      `json:"generated_at"`      // When the run finished
	Source          string         `json:"source"`            // Digest file path
	Subject         string         `json:"subject,omitempty"` // Digest email subject, if any
	Provider        string         `json:"provider"`          // Scoring provider name
	Model           string         `json:"model"`             // Model identifier
	TopN            int            `json:"top_n"`             // Requested number of recommendations
	Stats           RunStats       `json:"stats"`             // Counts for diagnostics
	TokenUsage      TokenUsage     `json:"token_usage"`
	CostUSD         float64        `json:"estimated_cost_usd"`
	Recommendations []RankedPaper  `json:"recommendations"`
	Failures        []BatchFailure `json:"batch_failures,omitempty"`
	Skipped         []SkippedEntry `json:"skipped_entries,omitempty"`
}

// RunStats summarizes a run
type RunStats struct {
	Entries       int `json:"entries"`        // Raw entries found in the paper section
	Skipped       int `json:"skipped"`        // Entries dropped for missing title or id
	Papers        int `json:"papers"`         // Records handed to ranking
	Batches       int `json:"batches"`        // Batches attempted
	FailedBatches int `json:"failed_batches"` // Batches that produced no scores
	CachedBatches int `json:"cached_batches"` // Batches answered from cache
	Scored        int `json:"scored"`         // Papers with a validated score
}

// BatchFailure records a batch that contributed no scores
type BatchFailure struct {
	BatchNumber int    `json:"batch_number"`
	Offset      int    `json:"offset"`
	Size        int    `json:"size"`
	Kind        string `json:"kind"` // transport, protocol, validation
	Error       string `json:"error"`
}

// SkippedEntry records a digest entry dropped before the record stage
type SkippedEntry struct {
	Index   int    `json:"index"`   // Position among raw entries (0-based)
	Reason  string `json:"reason"`  // "missing title", "missing arxiv id"
	Preview string `json:"preview"` // First characters of the entry text
}
