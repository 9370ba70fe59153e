package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordBatch is the structured output of a single chunk: the records in
// statement order plus metadata about how the call went.
type RecordBatch struct {
	Chunk     int                 `json:"chunk"`
	Pages     PageRange           `json:"pages"`
	Records   []TransactionRecord `json:"records"`
	Truncated bool                `json:"truncated,omitempty"` // model output was cut off and repaired
	Attempts  int                 `json:"attempts"`            // calls made for this chunk, including the successful one
}

// ChunkFailure marks a chunk whose structuring exhausted all retries.
// The surviving chunks still produce a usable, partial result.
type ChunkFailure struct {
	Chunk    int       `json:"chunk"`
	Pages    PageRange `json:"pages"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason"`
}

// Warning is a non-fatal reconciliation finding, e.g. a duplicate dropped on
// a chunk boundary or a truncated model response.
type Warning struct {
	Chunk   int    `json:"chunk"`
	Message string `json:"message"`
}

// Totals aggregates the merged records. Debits is the absolute sum of
// outgoing amounts. FinalBalance comes from the last record that reported a
// running balance, otherwise Credits minus Debits.
type Totals struct {
	Debits       decimal.Decimal `json:"debits"`
	Credits      decimal.Decimal `json:"credits"`
	FinalBalance decimal.Decimal `json:"final_balance"`
}

// StatementResult is the outcome of one pipeline run over one document.
type StatementResult struct {
	ID           string              `json:"id"`
	SourceFile   string              `json:"source_file"`
	ChecksumSHA  string              `json:"checksum_sha256,omitempty"`
	Records      []TransactionRecord `json:"records"`
	Totals       Totals              `json:"totals"`
	Warnings     []Warning           `json:"warnings,omitempty"`
	FailedChunks []ChunkFailure      `json:"failed_chunks,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Partial reports whether any chunk failed to structure.
func (r *StatementResult) Partial() bool {
	return len(r.FailedChunks) > 0
}
