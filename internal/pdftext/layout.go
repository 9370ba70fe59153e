package pdftext

import (
	"bytes"
	"context"
	"fmt"

	"github.com/finalversus/doc/pdf/extractor"
	"github.com/finalversus/doc/pdf/model"

	"github.com/gsoares/extratorio/internal/domain"
)

// LayoutBackend extracts text with the layout-aware PDF toolkit. It is the
// preferred backend: column ordering survives, so a transaction row comes
// out as one line.
type LayoutBackend struct{}

// Name implements Backend.
func (LayoutBackend) Name() string { return "layout" }

// Pages implements Backend.
func (LayoutBackend) Pages(ctx context.Context, doc *domain.Document) ([]string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(doc.Data))
	if err != nil {
		return nil, fmt.Errorf("LayoutBackend: open %s: %w", doc.Filename, err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("LayoutBackend: page count for %s: %w", doc.Filename, err)
	}

	pages := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := reader.GetPage(i)
		if err != nil {
			continue // page stays empty, another backend may still fill it
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages, nil
}
