package pdf

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	gopdf "github.com/dslipak/pdf"

	"github.com/pyhub-apps/pdftext-golang/pkg/parser"
)

// DslipakFallback extracts page text with the dslipak/pdf library, which
// reports positioned glyph runs that are regrouped into lines here.
type DslipakFallback struct {
	mu     sync.Mutex
	reader *gopdf.Reader

	// YTolerance is the baseline difference that starts a new line
	YTolerance float64
}

// NewDslipakFallback opens data with dslipak/pdf
func NewDslipakFallback(data []byte) (*DslipakFallback, error) {
	r, err := gopdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF with dslipak: %w", err)
	}
	return &DslipakFallback{reader: r, YTolerance: 1}, nil
}

// Name identifies the engine in logs
func (f *DslipakFallback) Name() string { return "dslipak" }

// ExtractText returns the text of the given pages joined by newlines
func (f *DslipakFallback) ExtractText(ctx context.Context, _ *parser.Document, pages ...parser.PageEntry) (string, error) {
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

func (f *DslipakFallback) page(n int) (text string, err error) {
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
	return joinRuns(p.Content().Text, f.YTolerance), nil
}

// joinRuns lays glyph runs out in content order, starting a new line
// when the baseline moves and a word when there is a visible gap
func joinRuns(runs []gopdf.Text, yTolerance float64) string {
	var sb strings.Builder
	var prev *gopdf.Text
	for i := range runs {
		run := &runs[i]
		if prev != nil {
			switch {
			case math.Abs(run.Y-prev.Y) > yTolerance:
				sb.WriteByte('\n')
			case run.X-(prev.X+prev.W) > 0.2*run.FontSize && !strings.HasSuffix(prev.S, " "):
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(run.S)
		prev = run
	}
	return sb.String()
}
