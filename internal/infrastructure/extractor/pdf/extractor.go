package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractText(_ context.Context, filename string, data []byte) (string, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", filename, err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", filename, err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, textReader); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", filename, err)
	}
	return strings.TrimSpace(sb.String()), nil
}
