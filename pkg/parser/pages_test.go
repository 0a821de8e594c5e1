package parser

import (
	"errors"
	"testing"
)

func ref(n int) ObjectRef { return ObjectRef{Number: n} }

func newTreeDoc(objects map[int]PDFObject) *Document {
	doc := &Document{
		Trailer: PDFDict{"Root": ref(1)},
		Objects: map[ObjectRef]PDFObject{
			ref(1): PDFDict{"Type": PDFName("Catalog"), "Pages": ref(2)},
		},
	}
	for n, obj := range objects {
		doc.Objects[ref(n)] = obj
	}
	return doc
}

func page(parent int) PDFDict {
	return PDFDict{"Type": PDFName("Page"), "Parent": ref(parent)}
}

func TestPagesDepthFirst(t *testing.T) {
	doc := newTreeDoc(map[int]PDFObject{
		2:  PDFDict{"Type": PDFName("Pages"), "Kids": PDFArray{ref(3), ref(12)}},
		3:  PDFDict{"Type": PDFName("Pages"), "Kids": PDFArray{ref(10), ref(11)}, "Parent": ref(2)},
		10: page(3),
		11: page(3),
		12: page(2),
	})

	pages, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}

	want := []ObjectRef{ref(10), ref(11), ref(12)}
	if len(pages) != len(want) {
		t.Fatalf("got %d pages, want %d", len(pages), len(want))
	}
	for i, p := range pages {
		if p.Number != i+1 || p.Ref != want[i] {
			t.Errorf("page %d = %+v, want number %d ref %s", i, p, i+1, want[i])
		}
	}
}

func TestPagesSkipsMissingKidsAndCycles(t *testing.T) {
	doc := newTreeDoc(map[int]PDFObject{
		2:  PDFDict{"Type": PDFName("Pages"), "Kids": PDFArray{ref(10), ref(99), ref(2), ref(11)}},
		10: page(2),
		11: page(2),
	})

	pages, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}
	if len(pages) != 2 || pages[1].Ref != ref(11) || pages[1].Number != 2 {
		t.Errorf("unexpected pages %+v", pages)
	}
}

func TestPagesErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
	}{
		{"no root", &Document{Trailer: PDFDict{}, Objects: map[ObjectRef]PDFObject{}}},
		{"dangling root", &Document{Trailer: PDFDict{"Root": ref(1)}, Objects: map[ObjectRef]PDFObject{}}},
		{"catalog without pages", &Document{
			Trailer: PDFDict{"Root": ref(1)},
			Objects: map[ObjectRef]PDFObject{ref(1): PDFDict{"Type": PDFName("Catalog")}},
		}},
		{"pages not a dict", newTreeDoc(map[int]PDFObject{2: PDFInt(3)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.doc.Pages()
			if !errors.Is(err, ErrNoPageTree) {
				t.Errorf("expected ErrNoPageTree, got %v", err)
			}
		})
	}
}

func TestPageResourcesInherited(t *testing.T) {
	fonts := PDFDict{"Font": PDFDict{"F1": ref(20)}}
	doc := newTreeDoc(map[int]PDFObject{
		2:  PDFDict{"Type": PDFName("Pages"), "Kids": PDFArray{ref(10), ref(11)}, "Resources": ref(5)},
		5:  fonts,
		10: page(2),
		11: PDFDict{"Type": PDFName("Page"), "Parent": ref(2), "Resources": PDFDict{"Font": PDFDict{}}},
	})

	if res := doc.PageResources(ref(10)); res == nil || res["Font"] == nil {
		t.Errorf("page 10 should inherit resources, got %v", res)
	}
	res := doc.PageResources(ref(11))
	if font, _ := res.GetDict("Font"); len(font) != 0 {
		t.Errorf("page 11 should use its own resources, got %v", res)
	}
	if res := doc.PageResources(ref(99)); res != nil {
		t.Errorf("missing page should have no resources, got %v", res)
	}
}

func TestPageContents(t *testing.T) {
	doc := newTreeDoc(map[int]PDFObject{
		2:  PDFDict{"Type": PDFName("Pages"), "Kids": PDFArray{ref(10), ref(11), ref(12), ref(13)}},
		10: PDFDict{"Type": PDFName("Page"), "Contents": PDFArray{ref(20), ref(21)}},
		11: PDFDict{"Type": PDFName("Page")},
		12: PDFDict{"Type": PDFName("Page"), "Contents": ref(30)},
		13: PDFDict{"Type": PDFName("Page"), "Contents": ref(22)},
		20: &PDFStream{Dict: PDFDict{"Length": PDFInt(1)}, Data: []byte("a")},
		21: &PDFStream{Dict: PDFDict{"Length": PDFInt(1)}, Data: []byte("b")},
		22: &PDFStream{Dict: PDFDict{"Length": PDFInt(1)}, DecodeErr: errors.New("corrupt")},
	})

	streams, err := doc.PageContents(ref(10))
	if err != nil || len(streams) != 2 || string(streams[1].Data) != "b" {
		t.Errorf("PageContents(10) = %v, %v", streams, err)
	}

	streams, err = doc.PageContents(ref(11))
	if err != nil || len(streams) != 0 {
		t.Errorf("page without contents = %v, %v", streams, err)
	}

	if _, err := doc.PageContents(ref(12)); err == nil {
		t.Error("dangling content reference should fail")
	}
	if _, err := doc.PageContents(ref(13)); err == nil {
		t.Error("undecodable content should fail")
	}
	if _, err := doc.PageContents(ref(99)); err == nil {
		t.Error("missing page should fail")
	}
}

func TestResolveFollowsChains(t *testing.T) {
	doc := &Document{Objects: map[ObjectRef]PDFObject{
		ref(1): ref(2),
		ref(2): PDFInt(7),
		ref(3): ref(3),
	}}

	if got := doc.Resolve(ref(1)); got != PDFInt(7) {
		t.Errorf("Resolve(1) = %v", got)
	}
	if got := doc.Resolve(ref(9)); got != nil {
		t.Errorf("dangling reference should resolve to nil, got %v", got)
	}
	if got := doc.Resolve(ref(3)); got != nil {
		t.Errorf("self reference should resolve to nil, got %v", got)
	}
	if got := doc.Resolve(PDFInt(4)); got != PDFInt(4) {
		t.Errorf("direct objects resolve to themselves, got %v", got)
	}
}
