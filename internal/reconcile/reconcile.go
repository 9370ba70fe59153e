// Package reconcile reassembles per-chunk record batches into a single
// statement result: statement order, boundary duplicates dropped,
// aggregate totals computed.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gsoares/extratorio/internal/domain"
)

// Merge flattens batches in chunk order, in-chunk order within. Failed
// chunks propagate untouched; truncated batches and dropped boundary
// duplicates surface as warnings. Identity fields of the result (ID,
// source file, timestamps) are left for the caller to stamp.
func Merge(batches []domain.RecordBatch, failures []domain.ChunkFailure, tolerance decimal.Decimal) *domain.StatementResult {
	ordered := make([]domain.RecordBatch, len(batches))
	copy(ordered, batches)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Chunk < ordered[j].Chunk })

	var (
		records  []domain.TransactionRecord
		warnings []domain.Warning
	)
	for _, b := range ordered {
		if b.Truncated {
			warnings = append(warnings, domain.Warning{
				Chunk:   b.Chunk,
				Message: "model output hit the token limit; trailing records of this chunk may be missing",
			})
		}
		for _, r := range b.Records {
			if n := len(records); n > 0 {
				last := records[n-1]
				// Dedupe applies on chunk boundaries only. Inside one chunk
				// two identical lines are two real transactions.
				if last.Chunk != r.Chunk && sameTransaction(last, r, tolerance) {
					warnings = append(warnings, domain.Warning{
						Chunk:   r.Chunk,
						Message: fmt.Sprintf("dropped boundary duplicate: %s %q %s", r.Date, r.Description, r.Amount),
					})
					continue
				}
			}
			records = append(records, r)
		}
	}

	failed := make([]domain.ChunkFailure, len(failures))
	copy(failed, failures)
	sort.SliceStable(failed, func(i, j int) bool { return failed[i].Chunk < failed[j].Chunk })

	return &domain.StatementResult{
		Records:      records,
		Totals:       totalsOf(records),
		Warnings:     warnings,
		FailedChunks: failed,
	}
}

// sameTransaction reports whether two records describe the same statement
// line: same date, same normalized description, amounts equal within
// tolerance.
func sameTransaction(a, b domain.TransactionRecord, tolerance decimal.Decimal) bool {
	if a.Date != b.Date {
		return false
	}
	if normalizeDescription(a.Description) != normalizeDescription(b.Description) {
		return false
	}
	return a.Amount.Sub(b.Amount).Abs().Cmp(tolerance) <= 0
}

func normalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func totalsOf(records []domain.TransactionRecord) domain.Totals {
	debits := decimal.Zero
	credits := decimal.Zero
	for _, r := range records {
		if r.IsDebit() {
			debits = debits.Add(r.Amount.Abs())
		} else {
			credits = credits.Add(r.Amount)
		}
	}

	// The statement's own closing balance wins when any record reported
	// one; a pure net otherwise.
	final := credits.Sub(debits)
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].BalanceAfter != nil {
			final = *records[i].BalanceAfter
			break
		}
	}

	return domain.Totals{Debits: debits, Credits: credits, FinalBalance: final}
}
