package parser

import (
	"bytes"
	"testing"

	"github.com/pyhub-apps/pdftext-golang/internal/pdftest"
)

func TestLoadWithPDFCPU(t *testing.T) {
	data := pdftest.TextDocument("Hello\nWorld", "Foo").Bytes()

	doc, err := LoadWithPDFCPU(bytes.NewReader(data), "", Filter)
	if err != nil {
		t.Fatalf("LoadWithPDFCPU failed: %v", err)
	}

	pages, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}

	streams, err := doc.PageContents(pages[1].Ref)
	if err != nil {
		t.Fatalf("PageContents failed: %v", err)
	}
	if len(streams) != 1 || !bytes.Contains(streams[0].Data, []byte("(Foo) Tj")) {
		t.Errorf("content not decoded: %q", streams[0].Data)
	}

	for _, name := range []PDFName{"FontDescriptor", "XObject", "Annot"} {
		if got := objectsOfType(doc, name); got != 0 {
			t.Errorf("%d objects of type %s survived", got, name)
		}
	}
	for ref, obj := range doc.Objects {
		if dict, ok := AsDict(obj); ok {
			for _, key := range StrippedKeys {
				if _, ok := dict[key]; ok {
					t.Errorf("object %s still has /%s", ref, key)
				}
			}
		}
	}
}

func TestLoadWithPDFCPURejectsGarbage(t *testing.T) {
	if _, err := LoadWithPDFCPU(bytes.NewReader([]byte("not a pdf")), "", Filter); err == nil {
		t.Fatal("expected an error")
	}
}
