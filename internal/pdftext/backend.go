package pdftext

import (
	"context"
	"errors"

	"github.com/gsoares/extratorio/internal/domain"
)

// ErrNoText marks a document that produced no text on any page under any
// backend. Scanned-image statements land here.
var ErrNoText = errors.New("no extractable text in document")

// PageText is the extraction output for a single page. Page is 1-based.
// Backend names the backend whose output was accepted; an Empty page keeps
// the name of the last backend that tried it.
type PageText struct {
	Page    int
	Text    string
	Backend string
	Empty   bool
}

// Backend extracts per-page text from a PDF. Implementations must be safe
// for concurrent use and must not retain doc.Data.
type Backend interface {
	Name() string
	// Pages returns one string per page, in page order. An error means the
	// backend could not open the document at all; per-page trouble surfaces
	// as an empty string for that page.
	Pages(ctx context.Context, doc *domain.Document) ([]string, error)
}
