package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/pyhub-apps/pdftext-golang/pkg/parser"
)

// LedongthucFallback extracts page text with the ledongthuc/pdf library
// from the raw source bytes. The library reader is not safe for
// concurrent use, so calls are serialized.
type LedongthucFallback struct {
	mu     sync.Mutex
	reader *lpdf.Reader
}

// NewLedongthucFallback opens data with ledongthuc/pdf
func NewLedongthucFallback(data []byte) (*LedongthucFallback, error) {
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF with ledongthuc: %w", err)
	}
	return &LedongthucFallback{reader: r}, nil
}

// Name identifies the engine in logs
func (f *LedongthucFallback) Name() string { return "ledongthuc" }

// ExtractText returns the plain text of the given pages joined by
// newlines. The parsed document is not used; the library reads its own
// copy of the file.
func (f *LedongthucFallback) ExtractText(ctx context.Context, _ *parser.Document, pages ...parser.PageEntry) (string, error) {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := f.page(page.Number)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}

func (f *LedongthucFallback) page(n int) (text string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer recoverPanic(f.Name(), n, &err)

	if n < 1 || n > f.reader.NumPage() {
		return "", fmt.Errorf("%w: %d", ErrFallbackPage, n)
	}
	p := f.reader.Page(n)
	if p.V.IsNull() {
		return "", fmt.Errorf("%w: %d", ErrFallbackPage, n)
	}
	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("ledongthuc: page %d: %w", n, err)
	}
	return strings.TrimRight(text, "\n"), nil
}
