package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/ppiankov/digestrank/internal/model"
)

// ReportRenderer renders a RankReport as an HTML email with a plain text fallback
type ReportRenderer struct {
	tmpl *template.Template
}

// NewReportRenderer creates a renderer with the default email template
func NewReportRenderer() *ReportRenderer {
	t := template.Must(template.New("email").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(emailHTMLTemplate))
	return &ReportRenderer{tmpl: t}
}

// Subject returns the email subject for report
func Subject(report *model.RankReport) string {
	return fmt.Sprintf("Top %d Papers of %s for You", len(report.Recommendations), report.Date)
}

// Render produces the HTML and plain text versions of report
func (r *ReportRenderer) Render(report *model.RankReport) (*RenderedMessage, error) {
	var htmlBuf bytes.Buffer
	if err := r.tmpl.Execute(&htmlBuf, report); err != nil {
		return nil, fmt.Errorf("render HTML template: %w", err)
	}

	return &RenderedMessage{
		Subject: Subject(report),
		Text:    renderPlainText(report),
		HTML:    htmlBuf.String(),
	}, nil
}

func renderPlainText(report *model.RankReport) string {
	var sb strings.Builder

	sb.WriteString(Subject(report) + "\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	for i, p := range report.Recommendations {
		if p.Scored() {
			fmt.Fprintf(&sb, "%d. %s [%d/10]\n", i+1, p.Title, p.Score)
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, p.Title)
		}
		fmt.Fprintf(&sb, "   %s\n", p.Link)
		fmt.Fprintf(&sb, "   %s\n", p.Authors)
		if p.Abstract != "" {
			fmt.Fprintf(&sb, "\n   %s\n", p.Abstract)
		}
		sb.WriteString("\n")
	}

	if report.Stats.FailedBatches > 0 {
		fmt.Fprintf(&sb, "Note: %d of %d batches could not be scored.\n", report.Stats.FailedBatches, report.Stats.Batches)
	}

	return sb.String()
}
