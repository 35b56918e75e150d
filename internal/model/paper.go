package model

// PaperRecord is a single announcement extracted from a digest
type PaperRecord struct {
	ArxivID    string `json:"arxiv_id"`   // Numeric-dotted identifier (e.g., "2401.01234")
	Title      string `json:"title"`      // Always present
	Authors    string `json:"authors"`    // "Unknown" when the entry has no Authors field
	Abstract   string `json:"abstract"`   // Best-effort, may be empty
	Link       string `json:"link"`       // Canonical abs URL built from ArxivID
	Categories string `json:"categories"` // Raw category line (e.g., "cs.LG cs.AI")
}

// UnknownAuthors is used when an entry carries no Authors field
const UnknownAuthors = "Unknown"

// ArxivAbsURL builds the canonical abstract page URL for an identifier
func ArxivAbsURL(id string) string {
	return "https://arxiv.org/abs/" + id
}

// ScoreBatch is a contiguous slice of papers scored in one service call.
// Offset is the global index of Papers[0] in the full sequence.
type ScoreBatch struct {
	Number int // 1-based
	Offset int
	Papers []PaperRecord
}

// Size returns the number of papers in the batch
func (b ScoreBatch) Size() int {
	return len(b.Papers)
}

// ScoreResult ties a validated score back to a paper by global index
type ScoreResult struct {
	GlobalIndex int `json:"global_index"`
	Score       int `json:"score"`        // Always within [MinScore, MaxScore]
	BatchNumber int `json:"batch_number"` // 1-based batch that produced the score
}

// Score bounds accepted from the scoring service
const (
	MinScore = 1
	MaxScore = 10
)

// RankedPaper is a paper merged with its score for final output.
// Score and BatchNumber are zero when the paper was returned unscored.
type RankedPaper struct {
	PaperRecord
	Score       int `json:"score,omitempty"`
	BatchNumber int `json:"batch_number,omitempty"`
}

// Scored reports whether the paper went through the scoring service
func (p RankedPaper) Scored() bool {
	return p.Score > 0
}

// TokenUsage tracks token consumption across scoring calls
type TokenUsage struct {
	PromptTokens     int `json:"input_tokens"`
	CompletionTokens int `json:"output_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage sample
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
