package llm

import "strings"

// Categories is the fixed classification taxonomy offered to the model.
// Statements are Brazilian; the category names stay English like the rest
// of the API surface.
var Categories = []string{
	"Income",
	"Transfers",
	"Housing",
	"Utilities",
	"Groceries",
	"Restaurants",
	"Transport",
	"Health",
	"Education",
	"Leisure",
	"Shopping",
	"Fees",
	"Taxes",
	"Investments",
	"Other",
}

var categoryByNorm = func() map[string]string {
	m := make(map[string]string, len(Categories))
	for _, c := range Categories {
		m[normalizeCategory(c)] = c
	}
	return m
}()

// canonicalCategory maps a model-reported category onto the taxonomy.
// Unknown categories come back as ok=false; the record is kept, the label
// dropped.
func canonicalCategory(s string) (string, bool) {
	c, ok := categoryByNorm[normalizeCategory(s)]
	return c, ok
}

func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
