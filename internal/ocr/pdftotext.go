package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText spools pdf to a temp file, runs pdftotext -layout on it, and
// returns stdout. Empty input yields empty text.
func (p *PdfToText) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", nil
	}
	tmp, err := os.CreateTemp("", "etp-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "ocr: create temp PDF")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(pdf); err != nil {
		_ = tmp.Close()
		return "", eris.Wrap(err, "ocr: write temp PDF")
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "ocr: close temp PDF")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", tmp.Name(), "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed: %s", stderr.String())
	}
	return stdout.String(), nil
}
