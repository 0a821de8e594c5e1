package parser

// FilterFunc decides, for every object the loader decodes, whether it
// enters the document. It may return a modified object. Filters run on
// the loading goroutine only.
type FilterFunc func(ref ObjectRef, obj PDFObject) (ObjectRef, PDFObject, bool)

// IgnoredTypes lists /Type values whose objects carry no text and are
// dropped outright.
var IgnoredTypes = map[PDFName]struct{}{
	"Length":           {},
	"BBox":             {},
	"FormType":         {},
	"Matrix":           {},
	"Type":             {},
	"XObject":          {},
	"Subtype":          {},
	"Filter":           {},
	"ColorSpace":       {},
	"Width":            {},
	"Height":           {},
	"BitsPerComponent": {},
	"Length1":          {},
	"Length2":          {},
	"Length3":          {},
	"PTEX.FileName":    {},
	"PTEX.PageNumber":  {},
	"PTEX.InfoDict":    {},
	"FontDescriptor":   {},
	"ExtGState":        {},
	"MediaBox":         {},
	"Annot":            {},
}

// StrippedKeys lists dictionary entries removed from every surviving
// dictionary or stream dictionary.
var StrippedKeys = []PDFName{
	"Producer",
	"ModDate",
	"Creator",
	"ProcSet",
	"Procset",
	"XObject",
	"MediaBox",
	"Annots",
}

// Filter is the text-extraction policy: drop ignored types, strip
// metadata keys and drop dictionaries left empty.
func Filter(ref ObjectRef, obj PDFObject) (ObjectRef, PDFObject, bool) {
	if _, ignored := IgnoredTypes[TypeName(obj)]; ignored {
		return ref, nil, false
	}

	dict, ok := AsDict(obj)
	if !ok {
		return ref, obj, true
	}

	for _, key := range StrippedKeys {
		delete(dict, key)
	}
	if len(dict) == 0 {
		return ref, nil, false
	}

	return ref, obj, true
}

// Keep accepts every object unchanged.
func Keep(ref ObjectRef, obj PDFObject) (ObjectRef, PDFObject, bool) {
	return ref, obj, true
}
