// Package extract turns incoming documents into plain text for ingestion.
// Plain text and markdown pass through; PDFs go through pdfcpu; anything
// else binary is rejected.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrUnsupportedFormat is permanent: retrying the same document cannot help
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Result is the extraction outcome
type Result struct {
	Text string `json:"text"`
	// Confidence is the extractor's own estimate of how much of the
	// document's text it recovered, in [0,1]. Plain text is always 1.
	Confidence float64 `json:"confidence"`
	// Pages is 0 for formats without a page structure
	Pages int `json:"pages"`
}

// Extractor converts documents to text
type Extractor struct {
	logger zerolog.Logger
}

// New creates an extractor
func New(logger zerolog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract reads the document and returns its text. The name's extension
// selects the handler; unnamed input is treated as plain text unless it
// looks binary.
func (e *Extractor) Extract(r io.Reader, name string) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return e.extractPDF(bytes.NewReader(data))
	case ".txt", ".md", ".markdown", "":
		if looksBinary(data) {
			return nil, fmt.Errorf("%w: %s contains binary data", ErrUnsupportedFormat, name)
		}
		return &Result{Text: string(data), Confidence: 1.0}, nil
	default:
		if looksBinary(data) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
		}
		// Unknown but textual extensions pass through as plain text
		return &Result{Text: string(data), Confidence: 1.0}, nil
	}
}

// looksBinary flags content with null bytes or invalid UTF-8 density
func looksBinary(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}
	sample := data
	if len(sample) > 1024 {
		sample = sample[:1024]
	}
	control := 0
	for _, b := range sample {
		if b < 0x09 || (b > 0x0d && b < 0x20) {
			control++
		}
	}
	return len(sample) > 0 && float64(control)/float64(len(sample)) > 0.1
}
