package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ppiankov/digestrank/internal/model"
)

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(3)

	if !strings.Contains(prompt, `containing EXACTLY 3 numbers between 1-10`) {
		t.Errorf("Missing exact count instruction: %s", prompt)
	}
	if !strings.Contains(prompt, `{"scores": [7, 7, 7]}`) {
		t.Errorf("Missing example: %s", prompt)
	}
	for _, band := range []string{"10: Perfect match", "7-9: Highly relevant", "4-6: Moderately relevant", "1-3: Minimally relevant"} {
		if !strings.Contains(prompt, band) {
			t.Errorf("Missing rubric band %q", band)
		}
	}
}

func TestBuildUserPrompt_NumbersByGlobalIndex(t *testing.T) {
	batch := model.ScoreBatch{
		Number: 2,
		Offset: 15,
		Papers: []model.PaperRecord{
			{Title: "First", Categories: "cs.LG", Abstract: "A1"},
			{Title: "Second", Categories: "cs.CL", Abstract: "A2"},
		},
	}

	prompt := BuildUserPrompt(batch, "I study transformers.")

	if !strings.HasPrefix(prompt, "Score these 2 papers based on relevance to the profile.\n\nUser Profile:\nI study transformers.\n\nPapers to Score:\n") {
		t.Errorf("Unexpected prompt header: %q", prompt)
	}
	if !strings.Contains(prompt, "Paper 16:\n    Title: First\n    Categories: cs.LG\n    Abstract: A1") {
		t.Errorf("First paper not numbered 16: %q", prompt)
	}
	if !strings.Contains(prompt, "A1\n\nPaper 17:\n    Title: Second") {
		t.Errorf("Second paper not numbered 17 or not blank-line separated: %q", prompt)
	}
}

func TestScoresSchema(t *testing.T) {
	var schema struct {
		Type       string `json:"type"`
		Properties struct {
			Scores struct {
				Type     string `json:"type"`
				MinItems int    `json:"minItems"`
				MaxItems int    `json:"maxItems"`
				Items    struct {
					Type    string  `json:"type"`
					Minimum float64 `json:"minimum"`
					Maximum float64 `json:"maximum"`
				} `json:"items"`
			} `json:"scores"`
		} `json:"properties"`
		Required             []string `json:"required"`
		AdditionalProperties bool     `json:"additionalProperties"`
	}

	if err := json.Unmarshal(ScoresSchema(4), &schema); err != nil {
		t.Fatalf("Schema is not valid JSON: %v", err)
	}

	s := schema.Properties.Scores
	if s.Type != "array" || s.MinItems != 4 || s.MaxItems != 4 {
		t.Errorf("Unexpected scores schema: %+v", s)
	}
	if s.Items.Type != "number" || s.Items.Minimum != 1 || s.Items.Maximum != 10 {
		t.Errorf("Unexpected item schema: %+v", s.Items)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "scores" || schema.AdditionalProperties {
		t.Errorf("Unexpected object constraints: %+v", schema)
	}
}

func TestGeminiScoresSchema(t *testing.T) {
	schema := geminiScoresSchema(3)

	scores, ok := schema.Properties["scores"]
	if !ok {
		t.Fatal("Missing scores property")
	}
	if scores.MinItems == nil || *scores.MinItems != 3 || scores.MaxItems == nil || *scores.MaxItems != 3 {
		t.Errorf("Unexpected item bounds: %v, %v", scores.MinItems, scores.MaxItems)
	}
	if *scores.Items.Minimum != 1 || *scores.Items.Maximum != 10 {
		t.Errorf("Unexpected numeric bounds")
	}
}

func TestEstimateCost(t *testing.T) {
	usage := model.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}

	if got := EstimateCost("gpt-4o-mini", usage); got < 0.749 || got > 0.751 {
		t.Errorf("gpt-4o-mini cost = %v, want 0.75", got)
	}
	if got := EstimateCost("gpt-4o-2024-08-06", usage); got < 12.49 || got > 12.51 {
		t.Errorf("gpt-4o versioned cost = %v, want 12.50", got)
	}
	if got := EstimateCost("gpt-4o-mini-2024-07-18", usage); got < 0.749 || got > 0.751 {
		t.Errorf("longest prefix should win, got %v", got)
	}
	if got := EstimateCost("llama3.1:8b", usage); got != 0 {
		t.Errorf("unknown model should cost 0, got %v", got)
	}
}
