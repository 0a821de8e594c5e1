package parser

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/pyhub-apps/pdftext-golang/internal/pdftest"
)

func load(t *testing.T, data []byte, filter FilterFunc) *Document {
	t.Helper()
	doc, err := Load(bytes.NewReader(data), int64(len(data)), filter)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return doc
}

// objectsOfType counts surviving objects whose /Type is name
func objectsOfType(doc *Document, name PDFName) int {
	n := 0
	for _, obj := range doc.Objects {
		if TypeName(obj) == name {
			n++
		}
	}
	return n
}

func TestLoadClassicXRef(t *testing.T) {
	data := pdftest.TextDocument("Hello\nWorld", "Foo").Bytes()
	doc := load(t, data, Keep)

	if doc.Version != "1.7" {
		t.Errorf("Version = %q, want 1.7", doc.Version)
	}
	if doc.Stats.Dropped != 0 || doc.Stats.Kept != doc.Stats.Seen {
		t.Errorf("Keep should keep everything, stats %+v", doc.Stats)
	}
	if got := objectsOfType(doc, "Page"); got != 2 {
		t.Errorf("found %d pages, want 2", got)
	}

	pages, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}
	streams, err := doc.PageContents(pages[0].Ref)
	if err != nil {
		t.Fatalf("PageContents failed: %v", err)
	}
	if len(streams) != 1 || !bytes.Contains(streams[0].Data, []byte("(Hello) Tj")) {
		t.Errorf("content stream not decoded: %q", streams[0].Data)
	}
}

func TestLoadAppliesFilter(t *testing.T) {
	data := pdftest.TextDocument("Hello", "World").Bytes()
	doc := load(t, data, Filter)

	for _, name := range []PDFName{"FontDescriptor", "XObject", "Annot"} {
		if got := objectsOfType(doc, name); got != 0 {
			t.Errorf("%d objects of type %s survived", got, name)
		}
	}
	for ref, obj := range doc.Objects {
		dict, ok := AsDict(obj)
		if !ok {
			continue
		}
		if len(dict) == 0 {
			t.Errorf("object %s is an empty dictionary", ref)
		}
		for _, key := range StrippedKeys {
			if _, ok := dict[key]; ok {
				t.Errorf("object %s still has /%s", ref, key)
			}
		}
	}

	// The info dictionary holds only strip keys
	info := doc.Trailer["Info"].(ObjectRef)
	if _, ok := doc.Object(info); ok {
		t.Error("info dictionary should have been dropped")
	}
	if doc.Stats.Dropped == 0 || doc.Stats.KeysStripped == 0 {
		t.Errorf("unexpected stats %+v", doc.Stats)
	}
	if doc.Stats.Seen != doc.Stats.Kept+doc.Stats.Dropped {
		t.Errorf("stats do not add up: %+v", doc.Stats)
	}

	if _, err := doc.Pages(); err != nil {
		t.Errorf("page tree should survive filtering: %v", err)
	}
}

func TestLoadFiltersStreamsBeforeDecoding(t *testing.T) {
	b := pdftest.New()
	catalog := b.Add("<< /Type /Catalog /Pages 2 0 R >>")
	b.Add("<< /Type /Pages /Kids [] /Count 0 >>")
	bogus := b.AddStream("/Type /XObject /Subtype /Image /Filter /FlateDecode", []byte("not zlib at all"))
	b.SetRoot(catalog)

	var sawUndecoded bool
	filter := func(ref ObjectRef, obj PDFObject) (ObjectRef, PDFObject, bool) {
		if s, ok := obj.(*PDFStream); ok && ref.Number == bogus {
			sawUndecoded = s.Data == nil && s.DecodeErr == nil
		}
		return Filter(ref, obj)
	}

	doc := load(t, b.Bytes(), filter)
	if !sawUndecoded {
		t.Error("filter should see the stream before its data is decoded")
	}
	if _, ok := doc.Object(ObjectRef{Number: bogus}); ok {
		t.Error("image stream should be dropped")
	}
}

func TestLoadRecordsDecodeErrors(t *testing.T) {
	b := pdftest.New()
	catalog := b.Add("<< /Type /Catalog /Pages 2 0 R >>")
	b.Add("<< /Type /Pages /Kids [] /Count 0 >>")
	bad := b.AddStream("/Filter /ASCIIHexDecode", []byte("zz"))
	b.SetRoot(catalog)

	doc := load(t, b.Bytes(), Filter)
	s, ok := doc.ResolveStream(ObjectRef{Number: bad})
	if !ok {
		t.Fatal("stream should be kept")
	}
	if s.DecodeErr == nil || s.Data != nil {
		t.Errorf("expected decode error, got data %q", s.Data)
	}
}

func TestLoadXRefStream(t *testing.T) {
	classic := pdftest.TextDocument("Hello\nWorld", "Foo")
	compressed := pdftest.TextDocument("Hello\nWorld", "Foo")
	compressed.XRefStream = true

	want := load(t, classic.Bytes(), Filter)
	got := load(t, compressed.Bytes(), Filter)

	if len(got.Objects) != len(want.Objects) {
		t.Errorf("xref stream variant kept %d objects, classic kept %d", len(got.Objects), len(want.Objects))
	}
	for ref := range want.Objects {
		if _, ok := got.Objects[ref]; !ok {
			t.Errorf("object %s missing from xref stream variant", ref)
		}
	}
	if objectsOfType(got, "ObjStm") != 0 || objectsOfType(got, "XRef") != 0 {
		t.Error("object and xref streams should not be inserted")
	}
	if _, ok := got.Trailer["Root"].(ObjectRef); !ok {
		t.Error("trailer should carry Root from the xref stream dictionary")
	}

	pages, err := got.Pages()
	if err != nil || len(pages) != 2 {
		t.Fatalf("Pages = %v, %v", pages, err)
	}
}

func TestLoadPrevChain(t *testing.T) {
	b := pdftest.TextDocument("Old text")
	base := b.Bytes()

	base = pdftest.AppendRevision(base, 1, map[int]string{
		// Replace the info dictionary and add a new object
		3:   "<< /Title (Updated) /Producer (pdftest) >>",
		100: "<< /Marker true >>",
	})
	doc := load(t, base, Filter)

	info, ok := doc.ResolveDict(ObjectRef{Number: 3})
	if !ok {
		t.Fatal("updated info dictionary should be kept")
	}
	if title, _ := info["Title"].(PDFString); string(title) != "Updated" {
		t.Errorf("newest revision should win, got %v", info)
	}
	if _, ok := info["Producer"]; ok {
		t.Error("Producer should be stripped")
	}
	if _, ok := doc.Object(ObjectRef{Number: 100}); !ok {
		t.Error("object added by the update is missing")
	}
	if _, err := doc.Pages(); err != nil {
		t.Errorf("objects from the first revision should remain reachable: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	noRoot := pdftest.New()
	noRoot.Add("<< /Foo 1 >>")

	encrypted := pdftest.TextDocument("x").Bytes()
	encrypted = bytes.Replace(encrypted, []byte("trailer\n<<"), []byte("trailer\n<< /Encrypt 99 0 R"), 1)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"not a pdf", []byte("hello world"), ErrNotPDF},
		{"encrypted", encrypted, ErrEncrypted},
		{"no root", noRoot.Bytes(), nil},
		{"no startxref", []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\n"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(bytes.NewReader(tt.data), int64(len(tt.data)), Filter)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadSkipsDamagedObjects(t *testing.T) {
	// Objects 2 (page tree) and 6 (image XObject) of a TextDocument
	pageTree := []byte("\n2 0 obj")
	image := []byte("\n6 0 obj")

	tests := []struct {
		name      string
		old, new  []byte
		wantPages bool
	}{
		{"broken image", image, []byte("\n6 0 obx"), true},
		{"number mismatch", pageTree, []byte("\n9 0 obj"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pdftest.TextDocument("Hello").Bytes()
			if !bytes.Contains(data, tt.old) {
				t.Fatalf("fixture has no %q", tt.old)
			}
			data = bytes.Replace(data, tt.old, tt.new, 1)

			doc, err := Load(bytes.NewReader(data), int64(len(data)), Filter)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if doc.Stats.Skipped != 1 {
				t.Errorf("Skipped = %d, want 1", doc.Stats.Skipped)
			}
			if doc.Stats.Seen != doc.Stats.Kept+doc.Stats.Dropped {
				t.Errorf("stats do not add up: %+v", doc.Stats)
			}

			pages, err := doc.Pages()
			if tt.wantPages {
				if err != nil || len(pages) != 1 {
					t.Errorf("Pages() = %d, %v", len(pages), err)
				}
			} else if !errors.Is(err, ErrNoPageTree) {
				t.Errorf("Pages() error = %v, want ErrNoPageTree", err)
			}
		})
	}
}

func TestDecodeStream(t *testing.T) {
	plain := []byte("BT (Hi) Tj ET")
	tests := []struct {
		name string
		dict PDFDict
		raw  []byte
	}{
		{"none", PDFDict{}, plain},
		{"flate", PDFDict{"Filter": PDFName("FlateDecode")}, pdftest.Deflate(plain)},
		{"hex", PDFDict{"Filter": PDFName("AHx")}, []byte(fmt.Sprintf("%x>", plain))},
		{"ascii85", PDFDict{"Filter": PDFName("ASCII85Decode")}, []byte(`<~6<#'U880Lq<,*OE;u~>`)},
		{"chain", PDFDict{"Filter": PDFArray{PDFName("ASCIIHexDecode"), PDFName("FlateDecode")}}, []byte(fmt.Sprintf("%x", pdftest.Deflate(plain)))},
		{"unsupported", PDFDict{"Filter": PDFName("DCTDecode")}, plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeStream(tt.dict, tt.raw)
			if err != nil {
				t.Fatalf("DecodeStream failed: %v", err)
			}
			if !bytes.Equal(got, plain) {
				t.Errorf("got %q, want %q", got, plain)
			}
		})
	}
}
