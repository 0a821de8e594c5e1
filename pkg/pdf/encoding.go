package pdf

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// SimpleEncoding maps the single-byte codes of a simple font to runes.
// A zero rune marks an unmapped code.
type SimpleEncoding struct {
	table [256]rune
}

// NewSimpleEncoding returns the named base encoding; unknown names get
// StandardEncoding, which is what PDF readers assume for non-symbolic
// fonts without an /Encoding.
func NewSimpleEncoding(name string) *SimpleEncoding {
	enc := &SimpleEncoding{}
	switch name {
	case "WinAnsiEncoding":
		enc.fillFrom(charmap.Windows1252)
	case "MacRomanEncoding":
		enc.fillFrom(charmap.Macintosh)
	case "PDFDocEncoding":
		enc.fillFrom(charmap.ISO8859_1)
	case "Identity":
		for i := range enc.table {
			enc.table[i] = rune(i)
		}
	default:
		enc.fillStandard()
	}
	return enc
}

func (e *SimpleEncoding) fillFrom(cm *charmap.Charmap) {
	for i := 0x20; i < 256; i++ {
		r := cm.DecodeByte(byte(i))
		if r != '\ufffd' {
			e.table[i] = r
		}
	}
}

// fillStandard covers the printable ASCII part of StandardEncoding and
// its ligatures and dashes; the rest of the upper half is rarely used
// by text fonts.
func (e *SimpleEncoding) fillStandard() {
	for i := 0x20; i < 0x7f; i++ {
		e.table[i] = rune(i)
	}
	e.table[0x27] = '’'
	e.table[0x60] = '‘'
	for code, r := range map[byte]rune{
		0xa1: '¡', 0xa2: '¢', 0xa3: '£', 0xa5: '¥', 0xa7: '§',
		0xaa: '“', 0xab: '«', 0xae: 'ﬁ', 0xaf: 'ﬂ',
		0xb1: '–', 0xb2: '†', 0xb3: '‡', 0xb7: '•',
		0xba: '”', 0xbb: '»', 0xbc: '…', 0xbf: '¿',
		0xd0: '—', 0xe1: 'Æ', 0xe8: 'Ł', 0xe9: 'Ø', 0xea: 'Œ',
		0xf1: 'æ', 0xf5: 'ı', 0xf8: 'ł', 0xf9: 'ø', 0xfa: 'œ', 0xfb: 'ß',
	} {
		e.table[code] = r
	}
}

// ApplyDifferences overlays a /Differences array given as alternating
// start codes and glyph names.
func (e *SimpleEncoding) ApplyDifferences(codes []int, names []string) {
	for i := range codes {
		if codes[i] < 0 || codes[i] > 255 {
			continue
		}
		if r, ok := GlyphRune(names[i]); ok {
			e.table[codes[i]] = r
		}
	}
}

// Rune returns the rune for code
func (e *SimpleEncoding) Rune(code byte) (rune, bool) {
	r := e.table[code]
	return r, r != 0
}

// Decode converts single-byte codes to text, dropping unmapped codes
func (e *SimpleEncoding) Decode(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		if r, ok := e.Rune(b); ok {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// glyphNames holds the glyph names commonly found in /Differences that
// are not derivable from their spelling.
var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#',
	"dollar": '$', "percent": '%', "ampersand": '&', "quotesingle": '\'',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+',
	"comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@', "bracketleft": '[',
	"backslash": '\\', "bracketright": ']', "asciicircum": '^',
	"underscore": '_', "grave": '`', "braceleft": '{', "bar": '|',
	"braceright": '}', "asciitilde": '~',
	"quoteleft": '‘', "quoteright": '’',
	"quotedblleft": '“', "quotedblright": '”',
	"quotesinglbase": '‚', "quotedblbase": '„',
	"endash": '–', "emdash": '—', "bullet": '•',
	"ellipsis": '…', "dagger": '†', "daggerdbl": '‡',
	"fi": 'ﬁ', "fl": 'ﬂ', "ff": 'ﬀ', "ffi": 'ﬃ', "ffl": 'ﬄ',
	"copyright": '©', "registered": '®', "trademark": '™', "degree": '°',
	"section": '§', "paragraph": '¶', "sterling": '£', "yen": '¥', "Euro": '€',
	"cent": '¢', "minus": '−', "multiply": '×', "divide": '÷',
	"nbspace": ' ', "guillemotleft": '«', "guillemotright": '»',
	"germandbls": 'ß', "dotlessi": 'ı', "AE": 'Æ', "ae": 'æ',
	"OE": 'Œ', "oe": 'œ', "Oslash": 'Ø', "oslash": 'ø',
	"Lslash": 'Ł', "lslash": 'ł',
}

// accented maps glyph-name suffixes to combining-free Latin-1 forms
var accented = map[string]map[rune]rune{
	"acute":      {'a': 'á', 'e': 'é', 'i': 'í', 'o': 'ó', 'u': 'ú', 'y': 'ý', 'A': 'Á', 'E': 'É', 'I': 'Í', 'O': 'Ó', 'U': 'Ú', 'Y': 'Ý'},
	"grave":      {'a': 'à', 'e': 'è', 'i': 'ì', 'o': 'ò', 'u': 'ù', 'A': 'À', 'E': 'È', 'I': 'Ì', 'O': 'Ò', 'U': 'Ù'},
	"circumflex": {'a': 'â', 'e': 'ê', 'i': 'î', 'o': 'ô', 'u': 'û', 'A': 'Â', 'E': 'Ê', 'I': 'Î', 'O': 'Ô', 'U': 'Û'},
	"dieresis":   {'a': 'ä', 'e': 'ë', 'i': 'ï', 'o': 'ö', 'u': 'ü', 'y': 'ÿ', 'A': 'Ä', 'E': 'Ë', 'I': 'Ï', 'O': 'Ö', 'U': 'Ü'},
	"tilde":      {'a': 'ã', 'n': 'ñ', 'o': 'õ', 'A': 'Ã', 'N': 'Ñ', 'O': 'Õ'},
	"cedilla":    {'c': 'ç', 'C': 'Ç'},
	"ring":       {'a': 'å', 'A': 'Å'},
}

// GlyphRune resolves an Adobe glyph name: single letters, the names in
// glyphNames, accented Latin letters and uniXXXX / uXXXX[XX] forms.
func GlyphRune(name string) (rune, bool) {
	if i := strings.IndexByte(name, '.'); i > 0 {
		// Suffixed variants such as "a.sc" or "one.oldstyle"
		name = name[:i]
	}
	if len(name) == 1 {
		return rune(name[0]), true
	}
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if strings.HasPrefix(name, "uni") && len(name) >= 7 {
		if v, err := strconv.ParseUint(name[3:7], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if len(name) > 1 {
		if forms, ok := accented[name[1:]]; ok {
			if r, ok := forms[rune(name[0])]; ok {
				return r, true
			}
		}
	}
	return 0, false
}
