package parser

import (
	"errors"
	"fmt"
)

// ErrNoPageTree is returned when the page tree cannot be enumerated
var ErrNoPageTree = errors.New("page tree not found")

// PageEntry pairs a 1-based page number with the page object's reference
type PageEntry struct {
	Number int
	Ref    ObjectRef
}

// Pages walks the page tree depth-first and numbers its leaves from 1.
// Kids missing from the document are skipped.
func (d *Document) Pages() ([]PageEntry, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}

	rootRef, ok := catalog["Pages"].(ObjectRef)
	if !ok {
		return nil, fmt.Errorf("%w: invalid Pages reference in catalog", ErrNoPageTree)
	}
	if _, ok := d.ResolveDict(rootRef); !ok {
		return nil, fmt.Errorf("%w: Pages object %s missing or not a dictionary", ErrNoPageTree, rootRef)
	}

	var pages []PageEntry
	visited := map[ObjectRef]bool{}

	var walk func(ref ObjectRef)
	walk = func(ref ObjectRef) {
		if visited[ref] {
			return
		}
		visited[ref] = true

		node, ok := d.ResolveDict(ref)
		if !ok {
			return
		}

		nodeType, _ := node.GetName("Type")
		kids, hasKids := node.GetArray("Kids")
		if nodeType == "Page" || (nodeType == "" && !hasKids) {
			pages = append(pages, PageEntry{Number: len(pages) + 1, Ref: ref})
			return
		}
		for _, kid := range kids {
			if kidRef, ok := kid.(ObjectRef); ok {
				walk(kidRef)
			}
		}
	}
	walk(rootRef)

	return pages, nil
}

// PageResources returns the /Resources of the page at ref, inherited
// from the nearest ancestor that defines them.
func (d *Document) PageResources(ref ObjectRef) PDFDict {
	node, ok := d.ResolveDict(ref)
	for depth := 0; ok && depth < 64; depth++ {
		if res, ok := d.ResolveDict(node.Get("Resources")); ok {
			return res
		}
		node, ok = d.ResolveDict(node.Get("Parent"))
	}
	return nil
}

// PageContents returns the content streams of the page at ref in order
func (d *Document) PageContents(ref ObjectRef) ([]*PDFStream, error) {
	page, ok := d.ResolveDict(ref)
	if !ok {
		return nil, fmt.Errorf("page object %s not found", ref)
	}

	var refs PDFArray
	switch c := page.Get("Contents").(type) {
	case nil:
		return nil, nil
	case PDFArray:
		refs = c
	default:
		if arr, ok := d.Resolve(c).(PDFArray); ok {
			refs = arr
		} else {
			refs = PDFArray{c}
		}
	}

	streams := make([]*PDFStream, 0, len(refs))
	for _, item := range refs {
		s, ok := d.ResolveStream(item)
		if !ok {
			return nil, fmt.Errorf("content %v of page %s is not a stream", item, ref)
		}
		if s.DecodeErr != nil {
			return nil, fmt.Errorf("content %v of page %s: %w", item, ref, s.DecodeErr)
		}
		streams = append(streams, s)
	}
	return streams, nil
}
