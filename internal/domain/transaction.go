package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// PageRange identifies the span of statement pages (1-based, inclusive) a
// chunk or record was produced from.
type PageRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// TransactionRecord is one normalized statement line produced by the model.
// Amounts are signed: debits negative, credits positive. Chunk and Pages
// record where in the source document the line came from, so duplicates on
// chunk boundaries can be traced back.
type TransactionRecord struct {
	Date         civil.Date       `json:"date"`                    // from "date" (YYYY-MM-DD)
	Description  string           `json:"description"`             // from "description"
	DocumentNo   string           `json:"document_no,omitempty"`   // from "document_no", cheque/doc number when present
	Amount       decimal.Decimal  `json:"amount"`                  // from "amount" (credit = positive, debit = negative)
	BalanceAfter *decimal.Decimal `json:"balance_after,omitempty"` // from "balance_after" or nil
	Counterparty string           `json:"counterparty,omitempty"`  // from "counterparty" (transfer origin/destination)
	Bank         string           `json:"bank,omitempty"`          // from "bank", issuing institution when stated
	Category     string           `json:"category,omitempty"`      // from "category", empty when not in the taxonomy

	Chunk int       `json:"chunk"` // index of the source chunk
	Pages PageRange `json:"pages"` // pages the source chunk covered
}

// IsDebit reports whether the record moves money out of the account.
func (t TransactionRecord) IsDebit() bool {
	return t.Amount.IsNegative()
}
