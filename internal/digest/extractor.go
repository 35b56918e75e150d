// Package digest turns an arXiv announcement digest into ordered paper records.
package digest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/digestrank/internal/logger"
	"github.com/ppiankov/digestrank/internal/model"
)

// Digest format markers
const (
	// SectionDelimiter separates the digest header from the paper listing.
	// Only the text after its last occurrence is searched for papers.
	SectionDelimiter = "------------------------------------------------------------------------------\\\\"

	// ArxivMarker starts every paper entry line
	ArxivMarker = "arXiv:"

	// FieldSeparator splits an entry into header fields, abstract, and link trailer
	FieldSeparator = `\\`

	titleMarker      = "Title:"
	authorsMarker    = "Authors:"
	categoriesMarker = "Categories:"
	commentsMarker   = "Comments:"
	linkTrailer      = "( https://arxiv.org"

	previewLength = 100
)

var (
	// ErrNoPaperSection is returned when the section delimiter is absent
	ErrNoPaperSection = errors.New("no papers section found in digest")

	// ErrNoArxivMarker is returned when the paper section lists no arXiv identifiers
	ErrNoArxivMarker = errors.New("papers section contains no arXiv identifier")
)

var (
	arxivIDPattern      = regexp.MustCompile(`arXiv:(\d+\.\d+)`)
	continuationPattern = regexp.MustCompile(`\n\s+`)
)

// ParseError reports a digest without a discoverable paper section
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse digest: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Result is the outcome of parsing one digest
type Result struct {
	Papers  []model.PaperRecord  // In order of first appearance
	Entries int                  // Raw entries found before field extraction
	Skipped []model.SkippedEntry // Entries dropped for missing title or identifier
}

// Extractor parses plain-text digests
type Extractor struct {
	delimiter string
}

// NewExtractor creates an extractor for the standard digest format
func NewExtractor() *Extractor {
	return &Extractor{
		delimiter: SectionDelimiter,
	}
}

// Extract returns the paper records found in raw, in digest order
func (e *Extractor) Extract(raw string) ([]model.PaperRecord, error) {
	result, err := e.Parse(raw)
	if err != nil {
		return nil, err
	}
	return result.Papers, nil
}

// Parse extracts paper records along with per-entry diagnostics.
// Entry-level problems never abort the parse; only a missing paper
// section does.
func (e *Extractor) Parse(raw string) (*Result, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	if !strings.Contains(raw, e.delimiter) {
		return nil, &ParseError{Err: ErrNoPaperSection}
	}

	sections := strings.Split(raw, e.delimiter)
	papersSection := sections[len(sections)-1]

	if !strings.Contains(papersSection, ArxivMarker) {
		return nil, &ParseError{Err: ErrNoArxivMarker}
	}

	entries := splitEntries(papersSection)
	result := &Result{
		Papers:  make([]model.PaperRecord, 0, len(entries)),
		Entries: len(entries),
	}

	for i, entry := range entries {
		paper, reason := parseEntry(entry)
		if reason != "" {
			logger.Debug("skipping digest entry %d (%s): %s", i, reason, preview(entry))
			result.Skipped = append(result.Skipped, model.SkippedEntry{
				Index:   i,
				Reason:  reason,
				Preview: preview(entry),
			})
			continue
		}
		result.Papers = append(result.Papers, paper)
	}

	logger.Info("parsed %d papers from %d entries (%d skipped)", len(result.Papers), result.Entries, len(result.Skipped))

	return result, nil
}

// splitEntries groups lines into entries, each starting at an arXiv marker line.
// Lines before the first marker belong to no entry.
func splitEntries(section string) []string {
	var entries []string
	var current strings.Builder
	started := false

	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(line, ArxivMarker) {
			if started {
				entries = append(entries, current.String())
			}
			current.Reset()
			started = true
		}
		if started {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if started {
		entries = append(entries, current.String())
	}

	return entries
}

// parseEntry extracts the fields of a single entry. A non-empty reason
// means the entry must be dropped.
func parseEntry(text string) (model.PaperRecord, string) {
	idMatch := arxivIDPattern.FindStringSubmatch(text)
	if idMatch == nil {
		return model.PaperRecord{}, "missing arxiv id"
	}

	title, ok := fieldBetween(text, titleMarker, authorsMarker)
	if !ok || title == "" {
		return model.PaperRecord{}, "missing title"
	}

	authors, ok := fieldBetween(text, authorsMarker, categoriesMarker, commentsMarker)
	if !ok || authors == "" {
		authors = model.UnknownAuthors
	}

	id := idMatch[1]

	return model.PaperRecord{
		ArxivID:    id,
		Title:      title,
		Authors:    authors,
		Abstract:   extractAbstract(text),
		Link:       model.ArxivAbsURL(id),
		Categories: extractCategories(text),
	}, ""
}

// fieldBetween returns the collapsed text following marker up to the
// earliest of the terminators, or the end of text.
func fieldBetween(text, marker string, terminators ...string) (string, bool) {
	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(marker):]

	end := len(rest)
	for _, t := range terminators {
		if idx := strings.Index(rest, t); idx >= 0 && idx < end {
			end = idx
		}
	}

	return collapse(rest[:end]), true
}

func extractCategories(text string) string {
	start := strings.Index(text, categoriesMarker)
	if start < 0 {
		return ""
	}
	rest := text[start+len(categoriesMarker):]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}

// extractAbstract returns the second FieldSeparator segment, without the
// trailing link parenthetical. Missing segments yield an empty abstract.
func extractAbstract(text string) string {
	parts := strings.Split(text, FieldSeparator)
	if len(parts) < 2 {
		return ""
	}

	abstract := strings.TrimSpace(parts[1])
	if idx := strings.LastIndex(abstract, linkTrailer); idx != -1 {
		abstract = abstract[:idx]
	}

	return collapse(abstract)
}

// collapse trims s and folds line continuations into single spaces
func collapse(s string) string {
	return continuationPattern.ReplaceAllString(strings.TrimSpace(s), " ")
}

func preview(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return string(runes)
}

// String implements fmt.Stringer for diagnostics output
func (r *Result) String() string {
	return fmt.Sprintf("%d papers (%d entries, %d skipped)", len(r.Papers), r.Entries, len(r.Skipped))
}
