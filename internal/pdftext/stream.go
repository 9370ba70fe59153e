package pdftext

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dslipak/pdf"

	"github.com/gsoares/extratorio/internal/domain"
)

// StreamBackend reads raw content-stream text. Less faithful to layout than
// LayoutBackend but tolerant of files the layout parser rejects.
type StreamBackend struct{}

// Name implements Backend.
func (StreamBackend) Name() string { return "stream" }

// Pages implements Backend.
func (StreamBackend) Pages(ctx context.Context, doc *domain.Document) (pages []string, err error) {
	// The reader panics on some malformed cross-reference tables instead of
	// returning an error; treat that as "could not open".
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("StreamBackend: open %s: %v", doc.Filename, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, fmt.Errorf("StreamBackend: open %s: %w", doc.Filename, err)
	}

	numPages := reader.NumPage()
	pages = make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, terr := page.GetPlainText(nil)
		if terr != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages, nil
}
