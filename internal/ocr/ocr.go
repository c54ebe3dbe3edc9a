// Package ocr turns binary primary documents (PDF prospectuses) into text.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/etp-tracker/internal/config"
)

// Extractor extracts text content from a PDF body.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "pdftotext", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "none":
		return Noop{}, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// Noop is an Extractor that yields no text, for hosts without pdftotext.
type Noop struct{}

// ExtractText implements Extractor.
func (Noop) ExtractText(context.Context, []byte) (string, error) { return "", nil }
