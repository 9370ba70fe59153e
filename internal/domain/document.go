package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// Document is an in-memory statement file handed to the pipeline. Data is
// never mutated; Checksum identifies the upload in logs and results.
type Document struct {
	Filename string
	Data     []byte
	Checksum string // hex SHA-256 of Data
}

// NewDocument wraps raw file bytes with identity metadata.
func NewDocument(filename string, data []byte) *Document {
	sum := sha256.Sum256(data)
	return &Document{
		Filename: filename,
		Data:     data,
		Checksum: hex.EncodeToString(sum[:]),
	}
}

// Size returns the document size in bytes.
func (d *Document) Size() int64 {
	return int64(len(d.Data))
}

// Format identifies the source format of a statement document.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatOFX Format = "ofx"
)

// DetectFormat guesses the statement format, trusting content over the
// filename extension. It returns "" when neither gives an answer.
func DetectFormat(filename string, data []byte) Format {
	head := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(head, []byte("%PDF-")) {
		return FormatPDF
	}

	// OFX markers sit in the first few lines of both the SGML and XML
	// flavors, so a short probe is enough.
	probe := data
	if len(probe) > 2048 {
		probe = probe[:2048]
	}
	upper := strings.ToUpper(string(probe))
	if strings.Contains(upper, "OFXHEADER") || strings.Contains(upper, "<OFX>") {
		return FormatOFX
	}

	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".ofx", ".qfx":
		return FormatOFX
	}
	return ""
}
