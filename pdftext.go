// Package pdftext converts PDF documents into one lower-cased plain text
// string: the document is loaded through the object filter, every page
// is extracted in parallel, and the pages are joined in order.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pyhub-apps/pdftext-golang/pkg/config"
	"github.com/pyhub-apps/pdftext-golang/pkg/content"
	"github.com/pyhub-apps/pdftext-golang/pkg/extract"
	"github.com/pyhub-apps/pdftext-golang/pkg/logging"
	"github.com/pyhub-apps/pdftext-golang/pkg/parser"
	"github.com/pyhub-apps/pdftext-golang/pkg/pdf"
	"github.com/pyhub-apps/pdftext-golang/pkg/storage"
)

// Fatal run errors. Page extraction failures are never fatal.
var (
	ErrLoad  = errors.New("failed to load document")
	ErrWrite = errors.New("failed to write output")
)

// Result summarizes a conversion
type Result struct {
	Loader    string // engine that built the object graph
	Stats     parser.LoadStats
	Pages     int // pages with extracted text
	Errors    int // pages that failed
	Fallbacks int // pages recovered by the fallback engine
	Bytes     int // size of the written text
	Elapsed   time.Duration
}

// Converter runs conversions with one configuration
type Converter struct {
	cfg    *config.Config
	store  storage.Store
	logger *logging.Logger
	text   extract.PageTextService
}

// Option configures a Converter
type Option func(*Converter)

// WithStore replaces the storage used for sources and destinations
func WithStore(s storage.Store) Option {
	return func(c *Converter) { c.store = s }
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// WithPageService replaces the page text service
func WithPageService(svc extract.PageTextService) Option {
	return func(c *Converter) { c.text = svc }
}

// New creates a Converter. A nil cfg means config.Default().
func New(cfg *config.Config, opts ...Option) *Converter {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Converter{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = storage.NewRouter(storage.S3Options{Region: cfg.S3.Region, Endpoint: cfg.S3.Endpoint})
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if c.text == nil {
		c.text = content.NewTextExtractor()
	}
	return c
}

// Convert extracts the text of the PDF at src and writes it to dst.
// Errors wrap ErrLoad or ErrWrite.
func (c *Converter) Convert(ctx context.Context, src, dst string) (*Result, error) {
	start := time.Now()

	c.logger.Info("loading document", "source", src, "loader", c.cfg.Loader.Engine)
	data, err := c.store.Read(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	doc, engine, err := LoadDocument(data, c.cfg.Loader.Engine, c.cfg.Loader.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, src, err)
	}
	c.logger.Info("document loaded",
		"loader", engine,
		"objects", doc.Stats.Kept,
		"dropped", doc.Stats.Dropped,
		"keys_stripped", doc.Stats.KeysStripped,
		"skipped", doc.Stats.Skipped,
		"seconds", time.Since(start).Seconds())

	report, err := c.extractor(data).ExtractAll(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, src, err)
	}
	if len(report.Errors) > 0 {
		c.logger.Warn("some pages could not be extracted", "count", len(report.Errors))
		for _, msg := range report.ErrorMessages(c.cfg.Extract.MaxReportedErrors) {
			c.logger.Warn(msg)
		}
	}

	text := report.Text(c.cfg.Extract.Separator)
	c.logger.Info("writing output", "destination", dst, "bytes", len(text))
	if err := c.store.Write(ctx, dst, []byte(text)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	res := &Result{
		Loader:    engine,
		Stats:     doc.Stats,
		Pages:     len(report.Pages),
		Errors:    len(report.Errors),
		Fallbacks: report.Fallbacks,
		Bytes:     len(text),
		Elapsed:   time.Since(start),
	}
	c.logger.Info("done", "pages", res.Pages, "errors", res.Errors, "seconds", res.Elapsed.Seconds())
	return res, nil
}

func (c *Converter) extractor(data []byte) *extract.Extractor {
	opts := []extract.Option{
		extract.WithWorkers(c.cfg.Extract.Workers),
		extract.WithPageTimeout(c.cfg.Extract.PageTimeout),
	}

	fallback, err := NewFallback(c.cfg.Extract.Fallback, data)
	switch {
	case err != nil:
		c.logger.Warn("fallback engine unavailable", "engine", c.cfg.Extract.Fallback, "error", err)
	case fallback != nil:
		opts = append(opts, extract.WithFallback(fallback))
	}
	return extract.New(c.text, opts...)
}

// LoadDocument builds the filtered object graph of data with the named
// engine and reports which engine succeeded. "auto" tries the native
// parser first and pdfcpu second.
func LoadDocument(data []byte, engine, password string) (*parser.Document, string, error) {
	switch engine {
	case config.LoaderNative:
		doc, err := parser.Load(bytes.NewReader(data), int64(len(data)), parser.Filter)
		return doc, engine, err
	case config.LoaderPDFCPU:
		doc, err := parser.LoadWithPDFCPU(bytes.NewReader(data), password, parser.Filter)
		return doc, engine, err
	case config.LoaderAuto, "":
		doc, nativeErr := parser.Load(bytes.NewReader(data), int64(len(data)), parser.Filter)
		if nativeErr == nil {
			return doc, config.LoaderNative, nil
		}
		doc, err := parser.LoadWithPDFCPU(bytes.NewReader(data), password, parser.Filter)
		if err != nil {
			return nil, config.LoaderAuto, fmt.Errorf("native: %w; pdfcpu: %w", nativeErr, err)
		}
		return doc, config.LoaderPDFCPU, nil
	default:
		return nil, engine, fmt.Errorf("unknown loader %q", engine)
	}
}

// NewFallback opens data with the named fallback engine. "none" and ""
// return a nil service.
func NewFallback(name string, data []byte) (extract.PageTextService, error) {
	switch name {
	case config.FallbackNone, "":
		return nil, nil
	case config.FallbackLedongthuc:
		f, err := pdf.NewLedongthucFallback(data)
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.FallbackDslipak:
		f, err := pdf.NewDslipakFallback(data)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown fallback %q", name)
	}
}
