package statement

import (
	"fmt"
	"strings"

	"github.com/gsoares/extratorio/internal/domain"
)

// DefaultMaxChars is the chunk budget used when the caller passes a
// non-positive limit. Roughly 3k model tokens of statement text.
const DefaultMaxChars = 12000

// Chunk is a contiguous run of whole pages, small enough for one structuring
// call. Index is the submission order; Pages records provenance.
type Chunk struct {
	Index int
	Text  string
	Pages domain.PageRange
}

// Split packs whole pages into chunks of at most maxChars bytes. A page
// never straddles two chunks; a single page larger than the budget becomes
// its own oversized chunk rather than being cut.
func Split(p *Payload, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var (
		chunks  []Chunk
		blocks  []string
		first   int
		last    int
		curSize int
	)

	flush := func() {
		if len(blocks) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  strings.Join(blocks, "\n\n"),
			Pages: domain.PageRange{First: first, Last: last},
		})
		blocks = nil
		curSize = 0
	}

	for _, page := range p.Pages {
		block := pageBlock(page)
		if curSize > 0 && curSize+len(block)+2 > maxChars {
			flush()
		}
		if len(blocks) == 0 {
			first = page.Number
		}
		last = page.Number
		blocks = append(blocks, block)
		curSize += len(block) + 2
	}
	flush()

	return chunks
}

// pageBlock renders one page under its boundary marker. The marker is plain
// text the model sees; the prompt tells it to treat markers as separators,
// never as transaction data.
func pageBlock(p Page) string {
	return fmt.Sprintf("===== PAGE %d =====\n%s", p.Number, p.Text)
}
