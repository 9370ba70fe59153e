// Package statement assembles extracted page text into a model-ready
// payload: boilerplate repeated on every page is stripped, pages are joined
// under explicit page markers, and long documents are split into chunks that
// never cut a page in half.
package statement

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gsoares/extratorio/internal/pdftext"
)

// ErrEmptyDocument marks a document with no usable text on any page.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// Bank headers and footers sit at the page edges; only lines this close to
// the top or bottom of a page are candidates for frequency stripping, so a
// repetitive transaction row in the middle of a page is never touched.
const edgeLines = 5

// Stripping needs enough pages for "repeats on most pages" to mean
// something; shorter documents keep every line.
const minPagesForStripping = 3

// Page is one page of cleaned statement text.
type Page struct {
	Number int
	Text   string
}

// Payload is the cleaned text of a whole document, in page order. Pages that
// lost all content to extraction or stripping are absent.
type Payload struct {
	Pages []Page
}

// BuildPayload cleans the extracted pages and drops header/footer lines that
// repeat across pages. Lines are compared by a fingerprint with digit runs
// masked, so "Página 1 de 4" matches "Página 2 de 4". A fingerprint seen at
// the edge of more than half the pages is treated as boilerplate.
func BuildPayload(pages []pdftext.PageText) (*Payload, error) {
	nonEmpty := 0
	for _, p := range pages {
		if pageHasText(p) {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil, fmt.Errorf("BuildPayload: %d pages, none with text: %w", len(pages), ErrEmptyDocument)
	}

	drop := repeatedEdgeFingerprints(pages, nonEmpty)

	out := make([]Page, 0, nonEmpty)
	for _, p := range pages {
		if !pageHasText(p) {
			continue
		}
		lines := strings.Split(p.Text, "\n")
		kept := make([]string, 0, len(lines))
		for i, line := range lines {
			if isEdge(i, len(lines)) && drop[fingerprint(line)] {
				continue
			}
			kept = append(kept, line)
		}
		text := strings.TrimSpace(strings.Join(kept, "\n"))
		if text == "" {
			continue
		}
		out = append(out, Page{Number: p.Page, Text: text})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("BuildPayload: only boilerplate text found: %w", ErrEmptyDocument)
	}
	return &Payload{Pages: out}, nil
}

func pageHasText(p pdftext.PageText) bool {
	return !p.Empty && strings.TrimSpace(p.Text) != ""
}

// repeatedEdgeFingerprints counts, per fingerprint, how many pages carry
// that line in their edge zone, and returns the ones present on more than
// half of the non-empty pages.
func repeatedEdgeFingerprints(pages []pdftext.PageText, nonEmpty int) map[string]bool {
	if nonEmpty < minPagesForStripping {
		return nil
	}

	counts := make(map[string]int)
	for _, p := range pages {
		if !pageHasText(p) {
			continue
		}
		lines := strings.Split(p.Text, "\n")
		seen := make(map[string]bool)
		for i, line := range lines {
			if !isEdge(i, len(lines)) {
				continue
			}
			fp := fingerprint(line)
			if fp == "" || seen[fp] {
				continue
			}
			seen[fp] = true
			counts[fp]++
		}
	}

	drop := make(map[string]bool)
	for fp, c := range counts {
		if c*2 > nonEmpty {
			drop[fp] = true
		}
	}
	return drop
}

func isEdge(i, total int) bool {
	return i < edgeLines || i >= total-edgeLines
}

var digitRuns = regexp.MustCompile(`\d+`)

func fingerprint(line string) string {
	return digitRuns.ReplaceAllString(strings.ToLower(strings.TrimSpace(line)), "#")
}
