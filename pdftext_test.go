package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pyhub-apps/pdftext-golang/internal/pdftest"
	"github.com/pyhub-apps/pdftext-golang/pkg/config"
	"github.com/pyhub-apps/pdftext-golang/pkg/content"
	"github.com/pyhub-apps/pdftext-golang/pkg/logging"
	"github.com/pyhub-apps/pdftext-golang/pkg/parser"
	"github.com/pyhub-apps/pdftext-golang/pkg/storage"
)

func writeSource(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func converter(cfg *config.Config, opts ...Option) *Converter {
	return New(cfg, append([]Option{WithStore(storage.NewLocal())}, opts...)...)
}

func TestConvert(t *testing.T) {
	classic := pdftest.TextDocument("Hello\nWorld", "Foo")
	xref := pdftest.TextDocument("Hello\nWorld", "Foo")
	xref.XRefStream = true

	tests := []struct {
		name   string
		data   []byte
		engine string
		loader string
	}{
		{"classic native", classic.Bytes(), config.LoaderNative, config.LoaderNative},
		{"classic auto", classic.Bytes(), config.LoaderAuto, config.LoaderNative},
		{"classic pdfcpu", classic.Bytes(), config.LoaderPDFCPU, config.LoaderPDFCPU},
		{"xref stream", xref.Bytes(), config.LoaderNative, config.LoaderNative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeSource(t, tt.data)
			dst := filepath.Join(t.TempDir(), "out.txt")

			cfg := config.Default()
			cfg.Loader.Engine = tt.engine
			res, err := converter(cfg).Convert(context.Background(), src, dst)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}

			got, err := os.ReadFile(dst)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "hello world foo" {
				t.Errorf("output = %q, want %q", got, "hello world foo")
			}
			if res.Loader != tt.loader {
				t.Errorf("Loader = %q, want %q", res.Loader, tt.loader)
			}
			if res.Pages != 2 || res.Errors != 0 {
				t.Errorf("Pages = %d, Errors = %d", res.Pages, res.Errors)
			}
			if res.Bytes != len(got) {
				t.Errorf("Bytes = %d, want %d", res.Bytes, len(got))
			}
			if res.Stats.Dropped == 0 {
				t.Error("expected the filter to drop non-textual objects")
			}
		})
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	src := writeSource(t, pdftest.TextDocument("Alpha Beta", "", "Gamma\nDelta", "Epsilon").Bytes())
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Extract.Workers = 3
	var outputs [][]byte
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		dst := filepath.Join(dir, name)
		if _, err := converter(cfg).Convert(context.Background(), src, dst); err != nil {
			t.Fatalf("Convert() error = %v", err)
		}
		data, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, data)
	}

	want := "alpha beta gamma delta epsilon"
	for i, out := range outputs {
		if string(out) != want {
			t.Errorf("run %d = %q, want %q", i, out, want)
		}
		if !bytes.Equal(out, outputs[0]) {
			t.Errorf("run %d differs from run 0", i)
		}
	}
}

func TestConvertSeparator(t *testing.T) {
	src := writeSource(t, pdftest.TextDocument("A\nB", "C").Bytes())
	dst := filepath.Join(t.TempDir(), "out.txt")

	cfg := config.Default()
	cfg.Extract.Separator = "\n"
	if _, err := converter(cfg).Convert(context.Background(), src, dst); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "a\nb\nc" {
		t.Errorf("output = %q", got)
	}
}

// failingPages wraps the content extractor and fails the listed pages
type failingPages struct {
	inner *content.TextExtractor
	fail  map[int]bool
}

func (f *failingPages) ExtractText(ctx context.Context, doc *parser.Document, pages ...parser.PageEntry) (string, error) {
	for _, p := range pages {
		if f.fail[p.Number] {
			return "", errors.New("broken page")
		}
	}
	return f.inner.ExtractText(ctx, doc, pages...)
}

func TestConvertPageErrors(t *testing.T) {
	src := writeSource(t, pdftest.TextDocument("One", "Two", "Three").Bytes())
	dst := filepath.Join(t.TempDir(), "out.txt")

	var logs bytes.Buffer
	svc := &failingPages{inner: content.NewTextExtractor(), fail: map[int]bool{2: true}}
	c := converter(config.Default(),
		WithPageService(svc),
		WithLogger(logging.New(logging.Config{Output: &logs})))

	res, err := c.Convert(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.Errors != 1 || res.Pages != 2 {
		t.Errorf("Pages = %d, Errors = %d", res.Pages, res.Errors)
	}

	got, _ := os.ReadFile(dst)
	if string(got) != "one three" {
		t.Errorf("output = %q, want %q", got, "one three")
	}
	if !strings.Contains(logs.String(), "could not extract text from page 2") {
		t.Errorf("page error not logged:\n%s", logs.String())
	}
}

func TestConvertCapsReportedErrors(t *testing.T) {
	texts := make([]string, 16)
	fail := map[int]bool{}
	for i := range texts {
		texts[i] = fmt.Sprintf("Page%d", i+1)
		if i > 0 {
			fail[i+1] = true
		}
	}
	src := writeSource(t, pdftest.TextDocument(texts...).Bytes())
	dst := filepath.Join(t.TempDir(), "out.txt")

	var logs bytes.Buffer
	svc := &failingPages{inner: content.NewTextExtractor(), fail: fail}
	c := converter(config.Default(),
		WithPageService(svc),
		WithLogger(logging.New(logging.Config{Format: "json", Output: &logs})))

	res, err := c.Convert(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.Errors != 15 {
		t.Errorf("Errors = %d, want 15", res.Errors)
	}

	out := logs.String()
	if n := strings.Count(out, "could not extract text from page"); n != 10 {
		t.Errorf("logged %d page errors, want 10:\n%s", n, out)
	}
	// The first ten failures by page number are the ones listed
	for page := 2; page <= 11; page++ {
		if !strings.Contains(out, fmt.Sprintf("from page %d id=", page)) {
			t.Errorf("page %d error not logged", page)
		}
	}
	if strings.Contains(out, "from page 12 id=") {
		t.Error("page 12 error logged beyond the cap")
	}
	if !strings.Contains(out, `"count":15`) {
		t.Errorf("error count not logged:\n%s", out)
	}

	got, _ := os.ReadFile(dst)
	if string(got) != "page1" {
		t.Errorf("output = %q, want %q", got, "page1")
	}
}

func TestConvertFallback(t *testing.T) {
	src := writeSource(t, pdftest.TextDocument("Hello", "World").Bytes())
	dst := filepath.Join(t.TempDir(), "out.txt")

	cfg := config.Default()
	cfg.Extract.Fallback = config.FallbackLedongthuc
	svc := &failingPages{inner: content.NewTextExtractor(), fail: map[int]bool{2: true}}

	res, err := converter(cfg, WithPageService(svc)).Convert(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.Errors != 0 || res.Fallbacks != 1 {
		t.Errorf("Errors = %d, Fallbacks = %d", res.Errors, res.Fallbacks)
	}
	got, _ := os.ReadFile(dst)
	if !strings.HasPrefix(string(got), "hello ") || !strings.Contains(string(got), "world") {
		t.Errorf("output = %q", got)
	}
}

func TestConvertLoadErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pdf")
	if err := os.WriteFile(garbage, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		src  string
		want error
	}{
		{"missing source", filepath.Join(dir, "missing.pdf"), storage.ErrNotFound},
		{"not a pdf", garbage, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := filepath.Join(dir, tt.name+".txt")
			_, err := converter(config.Default()).Convert(context.Background(), tt.src, dst)
			if !errors.Is(err, ErrLoad) {
				t.Fatalf("error = %v, want ErrLoad", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if _, statErr := os.Stat(dst); !errors.Is(statErr, os.ErrNotExist) {
				t.Error("destination written after a load failure")
			}
		})
	}
}

func TestConvertWriteError(t *testing.T) {
	src := writeSource(t, pdftest.TextDocument("Hello").Bytes())
	dst := filepath.Join(t.TempDir(), "missing", "out.txt")

	_, err := converter(config.Default()).Convert(context.Background(), src, dst)
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("error = %v, want ErrWrite", err)
	}
}

func TestLoadDocument(t *testing.T) {
	data := pdftest.TextDocument("Hello").Bytes()

	if _, _, err := LoadDocument(data, "bogus", ""); err == nil {
		t.Error("expected an error for an unknown loader")
	}
	if _, engine, err := LoadDocument([]byte("junk"), config.LoaderAuto, ""); err == nil {
		t.Error("expected an error for junk input")
	} else if engine != config.LoaderAuto {
		t.Errorf("engine = %q", engine)
	}

	doc, engine, err := LoadDocument(data, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if engine != config.LoaderNative {
		t.Errorf("engine = %q, want %q", engine, config.LoaderNative)
	}
	if pages, err := doc.Pages(); err != nil || len(pages) != 1 {
		t.Errorf("Pages() = %d, %v", len(pages), err)
	}
}

func TestNewFallback(t *testing.T) {
	data := pdftest.TextDocument("Hello").Bytes()

	tests := []struct {
		name    string
		wantNil bool
		wantErr bool
	}{
		{config.FallbackNone, true, false},
		{"", true, false},
		{config.FallbackLedongthuc, false, false},
		{config.FallbackDslipak, false, false},
		{"bogus", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewFallback(tt.name, data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if (svc == nil) != tt.wantNil {
				t.Errorf("service = %v, wantNil %v", svc, tt.wantNil)
			}
		})
	}
}
