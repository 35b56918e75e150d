package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/digestrank/internal/digest"
	"github.com/ppiankov/digestrank/internal/model"
	"github.com/ppiankov/digestrank/internal/pipeline"
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <digest.eml|dir>",
	Short: "Extract papers from a digest without scoring them",
	Long: `Parse runs only the extraction stage and prints the paper records as JSON.
Entries dropped for a missing title or identifier are listed on stderr.

Example:
  digestrank parse digest.eml
  digestrank parse digest.eml > papers.json`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

type parseOutput struct {
	Source  string               `json:"source"`
	Subject string               `json:"subject,omitempty"`
	Entries int                  `json:"entries"`
	Papers  []model.PaperRecord  `json:"papers"`
	Skipped []model.SkippedEntry `json:"skipped_entries,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	path, err := pipeline.ResolveDigest(args[0])
	if err != nil {
		return err
	}

	msg, err := digest.LoadFile(path)
	if err != nil {
		return err
	}

	result, err := digest.NewExtractor().Parse(msg.Body)
	if err != nil {
		return err
	}

	for _, s := range result.Skipped {
		fmt.Fprintf(os.Stderr, "✗ Entry %d skipped (%s): %.60q\n", s.Index, s.Reason, s.Preview)
	}
	fmt.Fprintf(os.Stderr, "✓ %s\n", result)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(parseOutput{
		Source:  path,
		Subject: msg.Subject,
		Entries: result.Entries,
		Papers:  result.Papers,
		Skipped: result.Skipped,
	})
}
