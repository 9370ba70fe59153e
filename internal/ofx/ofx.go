// Package ofx reads the OFX statement exports of Brazilian banks. The
// files are SGML and frequently malformed, so raw bytes pass through a
// normalization step before a tolerant tag scanner maps the transaction
// blocks to records.
package ofx

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/gsoares/extratorio/internal/banks"
	"github.com/gsoares/extratorio/internal/domain"
)

// UnknownBank is the bank name used when neither BANKID nor ORG identify
// the institution.
const UnknownBank = "Banco Desconhecido"

var (
	bankIDRe = regexp.MustCompile(`<BANKID>(\d+)`)
	orgRe    = regexp.MustCompile(`<ORG>([^<\r\n]+)`)
)

// Statement is a parsed OFX file: the issuing bank and its transactions
// in file order.
type Statement struct {
	Bank    string
	BankID  string
	Records []domain.TransactionRecord
}

// Parse decodes, normalizes and scans an OFX file. Transactions keep the
// file's order; every record carries the resolved bank name. A block that
// survives normalization but still has an unreadable date or amount fails
// the whole file.
func Parse(data []byte) (*Statement, error) {
	text, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}
	text = Normalize(text)

	if !strings.Contains(strings.ToUpper(text), "<OFX>") {
		return nil, errors.New("Parse: no <OFX> element found")
	}

	st := &Statement{Bank: UnknownBank}
	if m := bankIDRe.FindStringSubmatch(text); m != nil {
		st.BankID = m[1]
	}
	if name, ok := banks.Name(st.BankID); ok {
		st.Bank = name
	} else if m := orgRe.FindStringSubmatch(text); m != nil {
		st.Bank = strings.TrimSpace(m[1])
	}

	for _, block := range stmtTrnRe.FindAllString(text, -1) {
		rec, err := recordOf(block)
		if err != nil {
			return nil, fmt.Errorf("Parse: transaction %q: %w", tagValue(block, "FITID"), err)
		}
		rec.Bank = st.Bank
		st.Records = append(st.Records, rec)
	}
	return st, nil
}

func recordOf(block string) (domain.TransactionRecord, error) {
	var rec domain.TransactionRecord

	date, err := dateOf(tagValue(block, "DTPOSTED"))
	if err != nil {
		return rec, err
	}
	amount, err := amountOf(tagValue(block, "TRNAMT"))
	if err != nil {
		return rec, err
	}

	// TRNTYPE decides the direction when it is explicit; banks disagree on
	// whether TRNAMT of a debit is already negative.
	trnType := strings.ToUpper(tagValue(block, "TRNTYPE"))
	switch trnType {
	case "DEBIT":
		amount = amount.Abs().Neg()
	case "CREDIT":
		amount = amount.Abs()
	}

	name := tagValue(block, "NAME")
	desc := tagValue(block, "MEMO")
	if desc == "" {
		desc = name
	}

	rec = domain.TransactionRecord{
		Date:         date,
		Description:  desc,
		DocumentNo:   tagValue(block, "CHECKNUM"),
		Amount:       amount,
		Counterparty: name,
	}
	return rec, nil
}

// tagValue returns the trimmed text after <TAG> up to the next tag or line
// break. SGML OFX has no closing tags for leaf values.
func tagValue(block, tag string) string {
	i := strings.Index(block, "<"+tag+">")
	if i < 0 {
		return ""
	}
	rest := block[i+len(tag)+2:]
	if j := strings.IndexAny(rest, "<\r\n"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

func dateOf(s string) (civil.Date, error) {
	if len(s) < 8 {
		return civil.Date{}, fmt.Errorf("invalid DTPOSTED %q", s)
	}
	t, err := time.Parse("20060102", s[:8])
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid DTPOSTED %q", s)
	}
	return civil.DateOf(t), nil
}

func amountOf(s string) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	if dot, comma := strings.LastIndex(v, "."), strings.LastIndex(v, ","); comma > dot {
		// Comma is the decimal marker, dots group thousands.
		v = strings.ReplaceAll(v, ".", "")
		v = strings.Replace(v, ",", ".", 1)
	} else if comma >= 0 {
		v = strings.ReplaceAll(v, ",", "")
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid TRNAMT %q", s)
	}
	return d, nil
}
