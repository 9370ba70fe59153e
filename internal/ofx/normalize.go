package ofx

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var (
	ofxDateRe = regexp.MustCompile(`<(DTSERVER|DTACCTUP|DTSTART|DTEND|DTPOSTED|DTUSER|DTAVAIL)>\s*(\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}:\d{2})`)

	stmtTrnRe  = regexp.MustCompile(`(?s)<STMTTRN>.*?</STMTTRN>`)
	emptyAmtRe = regexp.MustCompile(`(?m)<TRNAMT>\s*<|<TRNAMT>\s*$`)
	emptyFitRe = regexp.MustCompile(`(?m)<FITID>\s*<|<FITID>\s*$`)

	amtAsteriskRe = regexp.MustCompile(`<TRNAMT>([^<\n]+)\*`)
	amtValueRe    = regexp.MustCompile(`<TRNAMT>([^<\n]+)`)
	brThousandsRe = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+\.\d{2}$`)
)

// decode turns raw file bytes into text. Brazilian bank exports are
// usually Latin-1 even when the header claims otherwise, so invalid UTF-8
// falls back to ISO 8859-1.
func decode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode: latin-1 fallback: %w", err)
	}
	return string(out), nil
}

// Normalize repairs the malformed SGML Brazilian banks emit so the scanner
// can read it: header values lose stray spaces, slash dates become OFX
// timestamps, placeholder transaction blocks are dropped and amounts are
// cleaned up.
func Normalize(s string) string {
	s = normalizeHeader(s)
	s = ofxDateRe.ReplaceAllStringFunc(s, convertSlashDate)

	// Blocks without an amount or an id are balance placeholders
	// ("Saldo anterior"), not transactions.
	s = stmtTrnRe.ReplaceAllStringFunc(s, func(block string) string {
		if emptyAmtRe.MatchString(block) || emptyFitRe.MatchString(block) {
			return ""
		}
		return block
	})

	s = amtAsteriskRe.ReplaceAllString(s, "<TRNAMT>$1")
	s = amtValueRe.ReplaceAllStringFunc(s, collapseThousands)

	return s
}

// normalizeHeader rewrites "KEY: VAL UE" header lines to "KEY:VALUE",
// keeping each line's original ending. The header is everything before the
// first tag.
func normalizeHeader(s string) string {
	headerEnd := strings.Index(s, "<")
	if headerEnd <= 0 {
		return s
	}
	header, body := s[:headerEnd], s[headerEnd:]

	var b strings.Builder
	for _, line := range strings.SplitAfter(header, "\n") {
		ending := ""
		switch {
		case strings.HasSuffix(line, "\r\n"):
			ending = "\r\n"
			line = strings.TrimSuffix(line, "\r\n")
		case strings.HasSuffix(line, "\n"):
			ending = "\n"
			line = strings.TrimSuffix(line, "\n")
		}
		if key, value, found := strings.Cut(line, ":"); found {
			value = strings.ReplaceAll(strings.TrimSpace(value), " ", "")
			line = strings.TrimSpace(key) + ":" + value
		}
		b.WriteString(line + ending)
	}
	return b.String() + body
}

// convertSlashDate rewrites "<DTPOSTED>15/01/2024 10:30:00" style values to
// the OFX timestamp form the date tags require.
func convertSlashDate(m string) string {
	sub := ofxDateRe.FindStringSubmatch(m)
	raw := strings.Join(strings.Fields(sub[2]), " ")
	t, err := time.Parse("02/01/2006 15:04:05", raw)
	if err != nil {
		return m
	}
	return "<" + sub[1] + ">" + t.Format("20060102150405")
}

// collapseThousands fixes amounts where every separator is a dot, like
// "9.500.00" or "-63.592.70": the last dot is the decimal marker, the rest
// are thousands separators.
func collapseThousands(m string) string {
	v := strings.TrimSpace(strings.TrimPrefix(m, "<TRNAMT>"))
	if !brThousandsRe.MatchString(v) {
		return m
	}
	last := strings.LastIndex(v, ".")
	return "<TRNAMT>" + strings.ReplaceAll(v[:last], ".", "") + v[last:]
}
