package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/digestrank/internal/model"
)

// SchemaName names the structured response format
const SchemaName = "paper_scores_schema"

// BuildSystemPrompt states the rubric and demands exactly n scores
func BuildSystemPrompt(n int) string {
	example := strings.TrimSuffix(strings.Repeat("7, ", n), ", ")

	return fmt.Sprintf(`You are a research paper scorer. Return a JSON object with a "scores" array containing EXACTLY %d numbers between 1-10.

Score based on relevance:
10: Perfect match - Essential reading
7-9: Highly relevant - Strong overlap
4-6: Moderately relevant - Some relevance
1-3: Minimally relevant - Limited connection

Example format for %d papers:
{"scores": [%s]}`, n, n, example)
}

// BuildUserPrompt lists the batch papers, numbered by their position in the
// whole run so the numbering stays stable across batches
func BuildUserPrompt(batch model.ScoreBatch, profile string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Score these %d papers based on relevance to the profile.\n\n", batch.Size())
	b.WriteString("User Profile:\n")
	b.WriteString(profile)
	b.WriteString("\n\nPapers to Score:\n")

	for i, p := range batch.Papers {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Paper %d:\n    Title: %s\n    Categories: %s\n    Abstract: %s",
			batch.Offset+i+1, p.Title, p.Categories, p.Abstract)
	}

	return b.String()
}

// ScoresSchema is the JSON schema of a reply carrying exactly n scores
func ScoresSchema(n int) json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scores": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":    "number",
					"minimum": model.MinScore,
					"maximum": model.MaxScore,
				},
				"minItems": n,
				"maxItems": n,
			},
		},
		"required":             []string{"scores"},
		"additionalProperties": false,
	}

	// A map of plain values always marshals
	data, _ := json.Marshal(schema)
	return data
}
