package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/gsoares/extratorio/internal/domain"
	"github.com/gsoares/extratorio/internal/statement"
)

// decodeRecords turns cleaned model output into validated records. The
// boundary is strict: an unexpected shape or a record missing a required
// field rejects the whole chunk. Numbers are decoded as json.Number so
// amounts reach decimal.Decimal without a float detour.
func decodeRecords(cleaned string, chunk statement.Chunk) ([]domain.TransactionRecord, error) {
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()

	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decodeRecords: unmarshal JSON: %w", err)
	}

	items, err := recordListOf(parsed)
	if err != nil {
		return nil, err
	}

	records := make([]domain.TransactionRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("decodeRecords: element %d is %T, want object", i, item)
		}
		rec, err := recordOf(obj, chunk)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// recordListOf accepts the array the prompt demands, or tolerates a single
// object wrapping it, like {"transactions": [...]}, which some models emit
// despite instructions.
func recordListOf(parsed interface{}) ([]interface{}, error) {
	switch v := parsed.(type) {
	case []interface{}:
		return v, nil
	case map[string]interface{}:
		for _, key := range []string{"transactions", "records", "data", "items"} {
			if arr, ok := v[key].([]interface{}); ok {
				return arr, nil
			}
		}
		// A single array under any other key still counts.
		var found []interface{}
		n := 0
		for _, val := range v {
			if arr, ok := val.([]interface{}); ok {
				found = arr
				n++
			}
		}
		if n == 1 {
			return found, nil
		}
		return nil, fmt.Errorf("recordListOf: object carries no usable transaction array")
	default:
		return nil, fmt.Errorf("recordListOf: model output is %T, want array", parsed)
	}
}

func recordOf(obj map[string]interface{}, chunk statement.Chunk) (domain.TransactionRecord, error) {
	var rec domain.TransactionRecord

	dateStr, err := getStringField(obj, "date", true)
	if err != nil {
		return rec, err
	}
	date, err := civil.ParseDate(dateStr)
	if err != nil {
		return rec, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	desc, err := getStringField(obj, "description", true)
	if err != nil {
		return rec, err
	}

	amount, err := getDecimalField(obj, "amount", true)
	if err != nil {
		return rec, err
	}

	balance, err := getOptionalDecimalField(obj, "balance_after")
	if err != nil {
		return rec, err
	}
	docNo, err := getOptionalStringField(obj, "document_no")
	if err != nil {
		return rec, err
	}
	counterparty, err := getOptionalStringField(obj, "counterparty")
	if err != nil {
		return rec, err
	}
	bank, err := getOptionalStringField(obj, "bank")
	if err != nil {
		return rec, err
	}
	category, err := getOptionalStringField(obj, "category")
	if err != nil {
		return rec, err
	}

	rec = domain.TransactionRecord{
		Date:         date,
		Description:  desc,
		Amount:       amount,
		BalanceAfter: balance,
		Chunk:        chunk.Index,
		Pages:        chunk.Pages,
	}
	if docNo != nil {
		rec.DocumentNo = *docNo
	}
	if counterparty != nil {
		rec.Counterparty = *counterparty
	}
	if bank != nil {
		rec.Bank = *bank
	}
	if category != nil {
		// Unknown labels are dropped, the record is kept.
		if c, ok := canonicalCategory(*category); ok {
			rec.Category = c
		}
	}
	return rec, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getDecimalField(m map[string]interface{}, key string, required bool) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return decimal.Zero, fmt.Errorf("missing required field %q", key)
		}
		return decimal.Zero, nil
	}
	return decimalOf(v, key)
}

func getOptionalDecimalField(m map[string]interface{}, key string) (*decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	d, err := decimalOf(v, key)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalOf(v interface{}, key string) (decimal.Decimal, error) {
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: invalid number %q", key, val.String())
		}
		return d, nil
	case string:
		// Models sometimes quote numbers; a clean numeric string passes.
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: invalid number %q", key, val)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}
