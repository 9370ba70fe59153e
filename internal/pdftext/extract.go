// Package pdftext turns statement PDFs into per-page text. Real statements
// defeat any single PDF library, so extraction runs interchangeable backends
// in a fixed preference order and falls back per page.
package pdftext

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/gsoares/extratorio/internal/domain"
	"github.com/gsoares/extratorio/internal/logger"
)

// Extractor runs the configured backends with per-page fallback: the first
// backend that opens the document fixes the page count, and each page keeps
// the first non-empty text any backend produced for it.
type Extractor struct {
	backends []Backend
}

// New builds an Extractor from backend names ("layout", "stream"), tried in
// the given order. Unknown names are rejected so a typo in the configured
// order fails at startup, not mid-run.
func New(order []string) (*Extractor, error) {
	if len(order) == 0 {
		order = []string{"layout", "stream"}
	}
	backends := make([]Backend, 0, len(order))
	for _, name := range order {
		switch name {
		case "layout":
			backends = append(backends, LayoutBackend{})
		case "stream":
			backends = append(backends, StreamBackend{})
		default:
			return nil, fmt.Errorf("pdftext.New: unknown backend %q", name)
		}
	}
	return &Extractor{backends: backends}, nil
}

// Extract produces one PageText per page of doc. A page that is empty under
// every backend is returned marked Empty rather than failing the document.
// It returns ErrNoText only when no backend could open the document or every
// page came back empty.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) ([]PageText, error) {
	log := logger.FromContext(ctx)

	var (
		results   []PageText
		pageCount int
		anyOpened bool
		anyText   bool
	)

	for _, backend := range e.backends {
		pages, err := backend.Pages(ctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			log.Warn().Err(err).
				Str("backend", backend.Name()).
				Str("file", doc.Filename).
				Msg("backend could not open document")
			continue
		}

		if !anyOpened {
			anyOpened = true
			pageCount = len(pages)
			results = make([]PageText, pageCount)
			for i := range results {
				results[i] = PageText{Page: i + 1, Empty: true}
			}
		}

		filled := 0
		for i := 0; i < pageCount && i < len(pages); i++ {
			if !results[i].Empty {
				continue
			}
			text := Normalize(pages[i])
			if text == "" {
				results[i].Backend = backend.Name()
				continue
			}
			results[i] = PageText{Page: i + 1, Text: text, Backend: backend.Name()}
			anyText = true
			filled++
		}
		log.Debug().
			Str("backend", backend.Name()).
			Str("file", doc.Filename).
			Int("pages_filled", filled).
			Msg("extraction pass finished")

		if allFilled(results) {
			break
		}
	}

	if !anyOpened {
		return nil, fmt.Errorf("Extract: %s: every backend failed to open document: %w", doc.Filename, ErrNoText)
	}
	if !anyText {
		return nil, fmt.Errorf("Extract: %s: all %d pages empty: %w", doc.Filename, pageCount, ErrNoText)
	}
	return results, nil
}

func allFilled(pages []PageText) bool {
	for _, p := range pages {
		if p.Empty {
			return false
		}
	}
	return len(pages) > 0
}

// Normalize applies NFKC and collapses horizontal whitespace while keeping
// line structure. Backends disagree on spacing and ligatures; normalizing
// here makes emptiness checks and downstream line matching stable.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
