package statement

import (
	"strings"
	"testing"
)

func payloadOf(pages ...Page) *Payload {
	return &Payload{Pages: pages}
}

func TestSplit_SmallPayloadSingleChunk(t *testing.T) {
	p := payloadOf(
		Page{Number: 1, Text: "01/02 PIX 10,00"},
		Page{Number: 2, Text: "02/02 TED 20,00"},
	)

	chunks := Split(p, 0)
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Index != 0 {
		t.Errorf("Index = %d, want 0", c.Index)
	}
	if c.Pages.First != 1 || c.Pages.Last != 2 {
		t.Errorf("Pages = %+v, want 1..2", c.Pages)
	}
	if !strings.Contains(c.Text, "===== PAGE 1 =====") || !strings.Contains(c.Text, "===== PAGE 2 =====") {
		t.Errorf("chunk text missing page markers: %q", c.Text)
	}
}

func TestSplit_NeverCutsMidPage(t *testing.T) {
	long := strings.Repeat("01/02/2024 COMPRA CARTAO SUPERMERCADO -123,45\n", 10)
	p := payloadOf(
		Page{Number: 1, Text: strings.TrimSpace(long)},
		Page{Number: 2, Text: strings.TrimSpace(long)},
		Page{Number: 3, Text: strings.TrimSpace(long)},
	)

	// Budget fits roughly one page per chunk.
	chunks := Split(p, 500)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !strings.HasPrefix(c.Text, "===== PAGE ") {
			t.Errorf("chunk %d does not start at a page boundary: %q", i, c.Text[:40])
		}
		if c.Pages.First != i+1 || c.Pages.Last != i+1 {
			t.Errorf("chunk %d pages = %+v, want %d..%d", i, c.Pages, i+1, i+1)
		}
		if c.Index != i {
			t.Errorf("chunk %d carries index %d", i, c.Index)
		}
	}
}

func TestSplit_OversizedPageBecomesOwnChunk(t *testing.T) {
	huge := strings.TrimSpace(strings.Repeat("linha de transacao com texto 99,99\n", 50))
	p := payloadOf(
		Page{Number: 1, Text: "pequena"},
		Page{Number: 2, Text: huge},
		Page{Number: 3, Text: "pequena"},
	)

	chunks := Split(p, 200)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if chunks[1].Pages.First != 2 || chunks[1].Pages.Last != 2 {
		t.Fatalf("oversized page should be alone in its chunk, got pages %+v", chunks[1].Pages)
	}
	if !strings.Contains(chunks[1].Text, huge) {
		t.Error("oversized page must be carried whole, not cut")
	}
}

func TestSplit_PacksPagesUpToBudget(t *testing.T) {
	mk := func(n int) Page {
		return Page{Number: n, Text: strings.Repeat("x", 90)}
	}
	p := payloadOf(mk(1), mk(2), mk(3), mk(4), mk(5), mk(6))

	// Each block is ~110 bytes with its marker; three fit in 400.
	chunks := Split(p, 400)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Pages.First != 1 || chunks[0].Pages.Last != 3 {
		t.Errorf("first chunk pages = %+v, want 1..3", chunks[0].Pages)
	}
	if chunks[1].Pages.First != 4 || chunks[1].Pages.Last != 6 {
		t.Errorf("second chunk pages = %+v, want 4..6", chunks[1].Pages)
	}
}

func TestSplit_EmptyPayload(t *testing.T) {
	if chunks := Split(payloadOf(), 100); chunks != nil {
		t.Errorf("Expected no chunks for empty payload, got %d", len(chunks))
	}
}
