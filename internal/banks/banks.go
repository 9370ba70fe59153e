// Package banks resolves Brazilian COMPE clearing codes to institution names.
// Statement files carry the code in the OFX BANKID tag, usually zero-padded,
// sometimes not, so lookups compare codes with leading zeros stripped.
package banks

import "strings"

var compeNames = map[string]string{
	"001": "Banco do Brasil S.A.",
	"033": "Banco Santander (Brasil) S.A.",
	"041": "Banco do Estado do Rio Grande do Sul S.A.",
	"070": "BRB - Banco de Brasília S.A.",
	"077": "Banco Inter S.A.",
	"104": "Caixa Econômica Federal",
	"208": "Banco BTG Pactual S.A.",
	"212": "Banco Original S.A.",
	"237": "Banco Bradesco S.A.",
	"260": "Nu Pagamentos S.A.",
	"290": "PagSeguro Internet S.A.",
	"336": "Banco C6 S.A.",
	"341": "Itaú Unibanco S.A.",
	"422": "Banco Safra S.A.",
	"748": "Banco Cooperativo Sicredi S.A.",
	"756": "Banco Cooperativo Sicoob S.A.",
}

// normalized index, built once: "001" and "1" resolve to the same entry.
var byNormalizedCode = func() map[string]string {
	m := make(map[string]string, len(compeNames))
	for code, name := range compeNames {
		m[strings.TrimLeft(code, "0")] = name
	}
	return m
}()

// Name returns the institution name for a COMPE code. The code may carry
// leading zeros or surrounding whitespace. ok is false for unknown codes.
func Name(code string) (name string, ok bool) {
	norm := strings.TrimLeft(strings.TrimSpace(code), "0")
	if norm == "" {
		return "", false
	}
	name, ok = byNormalizedCode[norm]
	return name, ok
}
