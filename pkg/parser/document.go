package parser

import (
	"fmt"
)

// LoadStats counts what the filter did while a document was loaded
type LoadStats struct {
	Seen         int // objects decoded from the file
	Kept         int // objects inserted into the document
	Dropped      int // objects the filter rejected
	KeysStripped int // dictionary entries removed from kept objects
	Skipped      int // objects that could not be parsed
}

// Document is the filtered object graph of a PDF. It is not modified
// after a loader returns it and may be read from many goroutines.
type Document struct {
	Version string
	Trailer PDFDict
	Objects map[ObjectRef]PDFObject
	Stats   LoadStats
}

// insert passes obj through filter and stores the result. Streams are
// decoded only once they have been accepted.
func (d *Document) insert(filter FilterFunc, ref ObjectRef, obj PDFObject) {
	d.Stats.Seen++

	before := -1
	if dict, ok := AsDict(obj); ok {
		before = len(dict)
	}

	ref, kept, ok := filter(ref, obj)
	if !ok || kept == nil {
		d.Stats.Dropped++
		return
	}

	if dict, ok := AsDict(kept); ok && before >= len(dict) {
		d.Stats.KeysStripped += before - len(dict)
	}
	if s, ok := kept.(*PDFStream); ok {
		s.materialize()
	}

	d.Objects[ref] = kept
	d.Stats.Kept++
}

// Object returns the object stored under ref
func (d *Document) Object(ref ObjectRef) (PDFObject, bool) {
	obj, ok := d.Objects[ref]
	return obj, ok
}

// Resolve follows indirect references until a direct object is found.
// Dangling references resolve to nil.
func (d *Document) Resolve(obj PDFObject) PDFObject {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(ObjectRef)
		if !ok {
			return obj
		}
		obj, ok = d.Objects[ref]
		if !ok {
			return nil
		}
	}
	return nil
}

// ResolveDict resolves obj and returns it if it is a dictionary
func (d *Document) ResolveDict(obj PDFObject) (PDFDict, bool) {
	dict, ok := d.Resolve(obj).(PDFDict)
	return dict, ok
}

// ResolveStream resolves obj and returns it if it is a stream
func (d *Document) ResolveStream(obj PDFObject) (*PDFStream, bool) {
	s, ok := d.Resolve(obj).(*PDFStream)
	return s, ok && s != nil
}

// Catalog returns the document catalog named by the trailer's /Root
func (d *Document) Catalog() (PDFDict, error) {
	root, ok := d.Trailer["Root"].(ObjectRef)
	if !ok {
		return nil, fmt.Errorf("%w: no Root in trailer", ErrNoPageTree)
	}
	catalog, ok := d.ResolveDict(root)
	if !ok {
		return nil, fmt.Errorf("%w: catalog %s missing or not a dictionary", ErrNoPageTree, root)
	}
	return catalog, nil
}
