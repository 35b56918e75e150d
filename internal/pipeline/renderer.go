package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/ppiankov/digestrank/internal/model"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// Renderer turns a RankReport into files and terminal output.
// Abstract truncation happens here only; reports are never modified.
type Renderer struct {
	includeFooter bool
	abstractWidth int
}

// NewRenderer creates a renderer. abstractWidth <= 0 disables truncation.
func NewRenderer(includeFooter bool, abstractWidth int) *Renderer {
	return &Renderer{
		includeFooter: includeFooter,
		abstractWidth: abstractWidth,
	}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.RankReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the recommendations as a Markdown reading list
func (r *Renderer) RenderMarkdown(report *model.RankReport, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// Markdown returns the Markdown reading list for report
func (r *Renderer) Markdown(report *model.RankReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Top %d Papers of %s for You\n\n", len(report.Recommendations), report.Date)

	for _, p := range report.Recommendations {
		fmt.Fprintf(&b, "## %s\n", p.Title)
		if p.Scored() {
			fmt.Fprintf(&b, "**Score:** %d/10\n", p.Score)
		}
		fmt.Fprintf(&b, "### Link\n%s\n", p.Link)
		fmt.Fprintf(&b, "### Authors\n%s\n", p.Authors)
		fmt.Fprintf(&b, "### Abstract\n%s\n\n", p.Abstract)
	}

	if r.includeFooter {
		b.WriteString("---\n")
		fmt.Fprintf(&b, "_Ranked %d of %d papers with %s/%s", report.Stats.Scored, report.Stats.Papers, report.Provider, report.Model)
		if report.Stats.FailedBatches > 0 {
			fmt.Fprintf(&b, "; %d of %d batches failed", report.Stats.FailedBatches, report.Stats.Batches)
		}
		b.WriteString("._\n")
	}

	return b.String()
}

// RenderSummary prints the recommendations table and run statistics
func (r *Renderer) RenderSummary(w io.Writer, report *model.RankReport) {
	colorize := shouldColorize(w)

	header := fmt.Sprintf("Top %d papers for %s", len(report.Recommendations), report.Date)
	if colorize {
		header = ansiBlue + header + ansiReset
	}
	fmt.Fprintln(w, header)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Score", "Title", "Link"})

	for i, p := range report.Recommendations {
		score := "-"
		if p.Scored() {
			score = strconv.Itoa(p.Score)
			if colorize {
				score = scoreColor(p.Score) + score + ansiReset
			}
		}
		tw.AppendRow(table.Row{i + 1, score, p.Title, p.Link})
		if abstract := Truncate(p.Abstract, r.abstractWidth); abstract != "" {
			tw.AppendRow(table.Row{"", "", abstract, ""})
		}
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, WidthMax: 60},
	})
	tw.Render()

	fmt.Fprintf(w, "Papers: %d (skipped %d)  Batches: %d (failed %d, cached %d)  Tokens: %d  Cost: $%.4f\n",
		report.Stats.Papers, report.Stats.Skipped,
		report.Stats.Batches, report.Stats.FailedBatches, report.Stats.CachedBatches,
		report.TokenUsage.TotalTokens, report.CostUSD)
}

// Truncate shortens s to width runes, appending "..." when cut
func Truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return strings.TrimRight(string(runes[:width]), " ") + "..."
}

func scoreColor(score int) string {
	switch {
	case score >= 7:
		return ansiGreen
	case score >= 4:
		return ansiYellow
	default:
		return ""
	}
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
