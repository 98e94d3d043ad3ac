package plaintext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractText(_ context.Context, filename string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("binary content in text attachment: %s", filename)
	}
	return strings.TrimSpace(string(data)), nil
}
