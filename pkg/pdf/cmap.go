package pdf

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/pyhub-apps/pdftext-golang/pkg/parser"
)

// ToUnicodeCMap represents a PDF ToUnicode CMap that maps character
// codes to Unicode text
type ToUnicodeCMap struct {
	// Codespace ranges decide how many bytes each code occupies
	codespaces []codespaceRange

	// Direct character mappings (from beginbfchar sections)
	chars map[charCode]string

	// Range mappings (from beginbfrange sections)
	ranges []cmapRange

	// Code length used when the CMap declares no codespace
	defaultLen int
}

type charCode struct {
	code uint32
	n    int
}

type codespaceRange struct {
	low, high []byte
}

// cmapRange represents a contiguous range mapping from beginbfrange
type cmapRange struct {
	low, high uint32
	n         int
	start     []uint16 // UTF-16 code units of the first destination
	array     []string // explicit destinations for array ranges
}

// NewToUnicodeCMap creates an empty CMap
func NewToUnicodeCMap() *ToUnicodeCMap {
	return &ToUnicodeCMap{
		chars: make(map[charCode]string),
	}
}

// ParseToUnicodeCMap parses a decoded ToUnicode stream
func ParseToUnicodeCMap(data []byte) (*ToUnicodeCMap, error) {
	cmap := NewToUnicodeCMap()
	if err := cmap.Parse(data); err != nil {
		return nil, err
	}
	return cmap, nil
}

// Parse reads codespacerange, bfchar and bfrange sections
func (cmap *ToUnicodeCMap) Parse(data []byte) error {
	lexer := parser.NewLexer(data)
	utf16 := newUTF16Decoder()

	for {
		token, err := lexer.NextToken()
		if err != nil {
			return fmt.Errorf("cmap: %w", err)
		}
		if token.Type == parser.TokenEOF {
			break
		}
		kw, ok := token.Value.(string)
		if !ok {
			continue
		}

		switch kw {
		case "begincodespacerange":
			err = cmap.parseSection(lexer, "endcodespacerange", 2, func(args []parser.PDFObject) {
				low, ok1 := args[0].(parser.PDFString)
				high, ok2 := args[1].(parser.PDFString)
				if ok1 && ok2 && len(low) == len(high) && len(low) > 0 {
					cmap.codespaces = append(cmap.codespaces, codespaceRange{low: low, high: high})
				}
			})
		case "beginbfchar":
			err = cmap.parseSection(lexer, "endbfchar", 2, func(args []parser.PDFObject) {
				src, ok := args[0].(parser.PDFString)
				if !ok || len(src) == 0 || len(src) > 4 {
					return
				}
				key := charCode{code: codeValue(src), n: len(src)}
				switch dst := args[1].(type) {
				case parser.PDFString:
					cmap.chars[key] = utf16(dst)
				case parser.PDFName:
					if r, ok := GlyphRune(string(dst)); ok {
						cmap.chars[key] = string(r)
					}
				}
				cmap.noteLen(len(src))
			})
		case "beginbfrange":
			err = cmap.parseSection(lexer, "endbfrange", 3, func(args []parser.PDFObject) {
				low, ok1 := args[0].(parser.PDFString)
				high, ok2 := args[1].(parser.PDFString)
				if !ok1 || !ok2 || len(low) == 0 || len(low) > 4 || len(low) != len(high) {
					return
				}
				r := cmapRange{low: codeValue(low), high: codeValue(high), n: len(low)}
				if r.high < r.low {
					return
				}
				switch dst := args[2].(type) {
				case parser.PDFString:
					r.start = codeUnits(dst)
					if len(r.start) == 0 {
						return
					}
				case parser.PDFArray:
					for _, item := range dst {
						s, _ := item.(parser.PDFString)
						r.array = append(r.array, utf16(s))
					}
				default:
					return
				}
				cmap.ranges = append(cmap.ranges, r)
				cmap.noteLen(len(low))
			})
		}
		if err != nil {
			return fmt.Errorf("cmap %s: %w", kw, err)
		}
	}

	if cmap.defaultLen == 0 {
		cmap.defaultLen = 2
	}
	return nil
}

// parseSection reads groups of arity operands until the end keyword
func (cmap *ToUnicodeCMap) parseSection(lexer *parser.Lexer, end string, arity int, fn func([]parser.PDFObject)) error {
	args := make([]parser.PDFObject, 0, arity)
	for {
		token, err := lexer.NextToken()
		if err != nil {
			return err
		}
		switch token.Type {
		case parser.TokenEOF:
			return fmt.Errorf("missing %s", end)
		case parser.TokenKeyword:
			if kw, _ := token.Value.(string); kw == end {
				return nil
			}
			continue
		}

		lexer.UnreadToken(token)
		obj, err := parser.ParseObject(lexer)
		if err != nil {
			return err
		}
		args = append(args, obj)
		if len(args) == arity {
			fn(args)
			args = args[:0]
		}
	}
}

func (cmap *ToUnicodeCMap) noteLen(n int) {
	if cmap.defaultLen == 0 {
		cmap.defaultLen = n
	}
}

// CodeLength returns how many bytes of data form the next code
func (cmap *ToUnicodeCMap) CodeLength(data []byte) int {
	if len(cmap.codespaces) == 0 {
		if cmap.defaultLen > len(data) {
			return len(data)
		}
		return cmap.defaultLen
	}

	for n := 1; n <= 4 && n <= len(data); n++ {
		for _, cs := range cmap.codespaces {
			if len(cs.low) == n && inCodespace(data[:n], cs) {
				return n
			}
		}
	}
	return 1
}

func inCodespace(code []byte, cs codespaceRange) bool {
	for i := range code {
		if code[i] < cs.low[i] || code[i] > cs.high[i] {
			return false
		}
	}
	return true
}

// Lookup maps an n-byte code to its Unicode text
func (cmap *ToUnicodeCMap) Lookup(code uint32, n int) (string, bool) {
	if s, ok := cmap.chars[charCode{code: code, n: n}]; ok {
		return s, true
	}

	for _, r := range cmap.ranges {
		if r.n != n || code < r.low || code > r.high {
			continue
		}
		offset := code - r.low
		if r.array != nil {
			if int(offset) < len(r.array) {
				return r.array[offset], true
			}
			return "", false
		}
		units := append([]uint16(nil), r.start...)
		units[len(units)-1] += uint16(offset)
		return unitsToString(units), true
	}

	return "", false
}

// MapCIDToUnicode maps a two-byte code to its Unicode string
func (cmap *ToUnicodeCMap) MapCIDToUnicode(cid uint16) (string, bool) {
	return cmap.Lookup(uint32(cid), 2)
}

// Decode converts a string of codes to Unicode text. Unmapped codes
// are dropped.
func (cmap *ToUnicodeCMap) Decode(data []byte) string {
	var sb strings.Builder
	for len(data) > 0 {
		n := cmap.CodeLength(data)
		if s, ok := cmap.Lookup(codeValue(data[:n]), n); ok {
			sb.WriteString(s)
		}
		data = data[n:]
	}
	return sb.String()
}

// GetMappingCount returns the total number of mappings in this CMap
func (cmap *ToUnicodeCMap) GetMappingCount() int {
	count := len(cmap.chars)
	for _, r := range cmap.ranges {
		if r.array != nil {
			count += len(r.array)
		} else {
			count += int(r.high - r.low + 1)
		}
	}
	return count
}

func codeValue(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

func codeUnits(b []byte) []uint16 {
	units := make([]uint16, 0, (len(b)+1)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	if len(b)%2 == 1 {
		units = append(units, uint16(b[len(b)-1]))
	}
	return units
}

func unitsToString(units []uint16) string {
	b := make([]byte, 0, 2*len(units))
	for _, u := range units {
		b = append(b, byte(u>>8), byte(u))
	}
	return newUTF16Decoder()(b)
}

// newUTF16Decoder returns a UTF-16BE decoder honouring a leading BOM.
// The returned function is not safe for concurrent use.
func newUTF16Decoder() func([]byte) string {
	dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
	return func(b []byte) string {
		if len(b) == 1 {
			return string(rune(b[0]))
		}
		out, err := dec.Bytes(b)
		if err != nil {
			return ""
		}
		return string(out)
	}
}
