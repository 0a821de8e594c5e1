// Package extract runs a page text service over every page of a loaded
// document in parallel and merges the results into a Report.
package extract

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pyhub-apps/pdftext-golang/pkg/parser"
)

// PageTextService returns the text of the given pages of a document.
// The extractor calls it with exactly one page at a time, from many
// goroutines at once.
type PageTextService interface {
	ExtractText(ctx context.Context, doc *parser.Document, pages ...parser.PageEntry) (string, error)
}

// Option configures an Extractor
type Option func(*Extractor)

// WithWorkers bounds the number of pages extracted at once
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithPageTimeout gives each page call a deadline. The service has to
// honour its context for the deadline to take effect.
func WithPageTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.pageTimeout = d
	}
}

// WithFallback sets a service to try when the primary fails for a page
func WithFallback(svc PageTextService) Option {
	return func(e *Extractor) {
		e.fallback = svc
	}
}

// Extractor fans page extraction out to a bounded worker pool
type Extractor struct {
	svc         PageTextService
	fallback    PageTextService
	workers     int
	pageTimeout time.Duration
}

// New creates an Extractor that uses svc for every page
func New(svc PageTextService, opts ...Option) *Extractor {
	e := &Extractor{
		svc:     svc,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractAll extracts every page of doc. It fails only when the pages
// cannot be enumerated or ctx ends; page failures are collected in the
// returned Report. All units finish before it returns.
func (e *Extractor) ExtractAll(ctx context.Context, doc *parser.Document) (*Report, error) {
	pages, err := doc.Pages()
	if err != nil {
		return nil, fmt.Errorf("enumerate pages: %w", err)
	}

	// Units send outcomes to a single collector that owns the report
	outcomes := make(chan PageOutcome)
	report := newReport()
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for o := range outcomes {
			report.add(o)
		}
	}()

	// A plain group: one page failing must not cancel the others
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, page := range pages {
		if ctx.Err() != nil {
			break
		}
		page := page // per-iteration copy; go.mod targets go1.21 loop semantics
		g.Go(func() error {
			outcomes <- e.extractPage(ctx, doc, page)
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)
	<-collected

	report.finalize()
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("extraction interrupted: %w", err)
	}
	return report, nil
}

func (e *Extractor) extractPage(ctx context.Context, doc *parser.Document, page parser.PageEntry) PageOutcome {
	out := PageOutcome{Page: page.Number, Ref: page.Ref}

	text, err := e.call(ctx, e.svc, doc, page)
	if err != nil && e.fallback != nil {
		if alt, altErr := e.call(ctx, e.fallback, doc, page); altErr == nil {
			text, err = alt, nil
			out.Fallback = true
		}
	}
	if err != nil {
		out.Err = &PageError{Page: page.Number, Ref: page.Ref, Err: err}
		return out
	}

	out.Lines = lowerLines(text)
	return out
}

func (e *Extractor) call(ctx context.Context, svc PageTextService, doc *parser.Document, page parser.PageEntry) (text string, err error) {
	if e.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.pageTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	text, err = svc.ExtractText(ctx, doc, page)
	if err == nil {
		// A service that ignores its context still loses the page
		err = ctx.Err()
	}
	return text, err
}

// lowerLines splits text on "\n" and lower-cases each line. A Caser
// keeps state, so each call gets its own.
func lowerLines(text string) []string {
	caser := cases.Lower(language.Und)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = caser.String(line)
	}
	return lines
}
