package content

import (
	"strings"

	"github.com/pyhub-apps/pdftext-golang/pkg/parser"
	"github.com/pyhub-apps/pdftext-golang/pkg/pdf"
)

// Font decodes the strings shown with one font resource
type Font struct {
	Name      string
	BaseFont  string
	composite bool
	toUnicode *pdf.ToUnicodeCMap
	encoding  *pdf.SimpleEncoding
}

// loadFont builds a Font from a font dictionary. Missing pieces fall
// back to StandardEncoding; a font dropped by the load filter still
// yields a usable Font.
func loadFont(doc *parser.Document, name string, dict parser.PDFDict) *Font {
	font := &Font{Name: name}
	if dict == nil {
		font.encoding = pdf.NewSimpleEncoding("")
		return font
	}

	if base, ok := dict.GetName("BaseFont"); ok {
		font.BaseFont = string(base)
	}
	subtype, _ := dict.GetName("Subtype")
	font.composite = subtype == "Type0"

	if s, ok := doc.ResolveStream(dict.Get("ToUnicode")); ok && s.DecodeErr == nil {
		if cmap, err := pdf.ParseToUnicodeCMap(s.Data); err == nil && cmap.GetMappingCount() > 0 {
			font.toUnicode = cmap
		}
	}

	if !font.composite {
		font.encoding = simpleEncoding(doc, dict.Get("Encoding"))
	}
	return font
}

// simpleEncoding resolves an /Encoding name or dictionary
func simpleEncoding(doc *parser.Document, obj parser.PDFObject) *pdf.SimpleEncoding {
	switch v := doc.Resolve(obj).(type) {
	case parser.PDFName:
		return pdf.NewSimpleEncoding(string(v))
	case parser.PDFDict:
		base, _ := v.GetName("BaseEncoding")
		enc := pdf.NewSimpleEncoding(string(base))

		diffs, ok := doc.Resolve(v.Get("Differences")).(parser.PDFArray)
		if !ok {
			return enc
		}
		var (
			codes []int
			names []string
		)
		code := 0
		for _, item := range diffs {
			switch d := item.(type) {
			case parser.PDFInt:
				code = int(d)
			case parser.PDFName:
				codes = append(codes, code)
				names = append(names, string(d))
				code++
			}
		}
		enc.ApplyDifferences(codes, names)
		return enc
	}
	return pdf.NewSimpleEncoding("")
}

// Decode converts a shown string to text
func (f *Font) Decode(data []byte) string {
	if f.composite {
		return f.decodeComposite(data)
	}

	var sb strings.Builder
	for _, b := range data {
		if f.toUnicode != nil {
			if s, ok := f.toUnicode.Lookup(uint32(b), 1); ok {
				sb.WriteString(s)
				continue
			}
		}
		if r, ok := f.encoding.Rune(b); ok {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// decodeComposite reads multi-byte codes. Without a ToUnicode CMap the
// code is taken as the Unicode value, which is right for Identity-H
// fonts built from Unicode-ordered CIDs and harmless noise otherwise.
func (f *Font) decodeComposite(data []byte) string {
	if f.toUnicode != nil {
		return f.toUnicode.Decode(data)
	}

	var sb strings.Builder
	for i := 0; i+1 < len(data); i += 2 {
		code := rune(data[i])<<8 | rune(data[i+1])
		if code >= 0x20 {
			sb.WriteRune(code)
		}
	}
	return sb.String()
}

// fontCache resolves font resource names for one page
type fontCache struct {
	doc   *parser.Document
	fonts parser.PDFDict
	cache map[string]*Font
}

func newFontCache(doc *parser.Document, resources parser.PDFDict) *fontCache {
	fc := &fontCache{doc: doc, cache: make(map[string]*Font)}
	if resources != nil {
		fc.fonts, _ = doc.ResolveDict(resources.Get("Font"))
	}
	return fc
}

func (fc *fontCache) get(name string) *Font {
	if f, ok := fc.cache[name]; ok {
		return f
	}
	var dict parser.PDFDict
	if fc.fonts != nil {
		dict, _ = fc.doc.ResolveDict(fc.fonts.Get(parser.PDFName(name)))
	}
	f := loadFont(fc.doc, name, dict)
	fc.cache[name] = f
	return f
}
