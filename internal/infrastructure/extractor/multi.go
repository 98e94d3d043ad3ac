package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ardmere/crmparse/internal/infrastructure/extractor/pdf"
	"github.com/ardmere/crmparse/internal/infrastructure/extractor/plaintext"
)

// Multi routes attachment text extraction by file extension. Unsupported
// formats yield empty text without an error so ingestion can skip them.
type Multi struct {
	plain *plaintext.Extractor
	pdf   *pdf.Extractor
}

func NewMulti() *Multi {
	return &Multi{
		plain: plaintext.New(),
		pdf:   pdf.New(),
	}
}

func (m *Multi) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return m.pdf.ExtractText(ctx, filename, data)
	case ".txt", ".md", ".csv", ".log":
		return m.plain.ExtractText(ctx, filename, data)
	default:
		return "", nil
	}
}
