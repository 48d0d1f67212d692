package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/audifyhq/audify/internal/errs"
)

// Page is one extracted unit of text, numbered by position in the
// source document starting at 1.
type Page struct {
	Number int
	Text   string
}

type Extractor interface {
	Extract(ctx context.Context, data []byte) ([]Page, error)
}

// PDFExtractor splits a PDF into per-page plain text suitable for
// speech synthesis. Extraction is all-or-nothing: any unreadable page
// fails the whole document rather than producing a ragged page set.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte) ([]Page, error) {
	if len(data) == 0 {
		return nil, errs.Errorf(errs.KindInvalidInput, "empty document")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.Errorf(errs.KindExtraction, "open PDF: %w", err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, errs.Errorf(errs.KindExtraction, "document has no pages")
	}

	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errs.Errorf(errs.KindExtraction, "extraction canceled: %w", err)
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			// Image-only or empty pages keep their slot so numbering
			// stays contiguous.
			pages = append(pages, Page{Number: i})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, errs.Errorf(errs.KindExtraction, "page %d: %w", i, err)
		}

		pages = append(pages, Page{Number: i, Text: NormalizeText(text)})
	}

	return pages, nil
}

// NormalizeText collapses raw extractor output into a markdown-like
// plain form: trimmed lines, single spaces inside lines, blank lines
// reduced to paragraph breaks.
func NormalizeText(raw string) string {
	lines := strings.Split(raw, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			if !blank {
				out = append(out, "")
				blank = true
			}
			continue
		}
		out = append(out, strings.Join(fields, " "))
		blank = false
	}
	// Drop a trailing paragraph break.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// PageSummary renders a short log-friendly description of a page set.
func PageSummary(pages []Page) string {
	empty := 0
	for _, p := range pages {
		if p.Text == "" {
			empty++
		}
	}
	return fmt.Sprintf("%d pages (%d empty)", len(pages), empty)
}
