package parser

import (
	"bytes"
	"fmt"
	"sort"
)

type entryKind int

const (
	entryFree entryKind = iota
	entryOffset
	entryCompressed
)

// XRefEntry locates one object: either by byte offset or by its index
// inside an object stream.
type XRefEntry struct {
	kind       entryKind
	Offset     int64
	Generation int
	Stream     int // object stream number for compressed entries
	Index      int // index within the object stream
}

// InUse reports whether the entry points at an object
func (e XRefEntry) InUse() bool {
	return e.kind != entryFree
}

// Compressed reports whether the object lives inside an object stream
func (e XRefEntry) Compressed() bool {
	return e.kind == entryCompressed
}

// XRefTable maps object numbers to their newest entry
type XRefTable struct {
	Entries map[int]XRefEntry
}

// NewXRefTable creates an empty cross-reference table
func NewXRefTable() *XRefTable {
	return &XRefTable{Entries: make(map[int]XRefEntry)}
}

// add records e unless a newer section already defined the object
func (x *XRefTable) add(num int, e XRefEntry) {
	if _, ok := x.Entries[num]; !ok {
		x.Entries[num] = e
	}
}

// Numbers returns the in-use object numbers in ascending order
func (x *XRefTable) Numbers() []int {
	nums := make([]int, 0, len(x.Entries))
	for n, e := range x.Entries {
		if e.InUse() {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}

// findStartXRef returns the offset recorded after the last startxref
func findStartXRef(data []byte) (int64, error) {
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("startxref not found")
	}

	lexer := NewLexer(tail[idx+len("startxref"):])
	token, err := lexer.NextToken()
	if err != nil {
		return 0, err
	}
	off, ok := token.Value.(PDFInt)
	if !ok || off < 0 || int(off) >= len(data) {
		return 0, fmt.Errorf("invalid startxref offset %v", token.Value)
	}
	return int64(off), nil
}

// readXRefChain follows startxref and every /Prev link, newest section
// first, and returns the merged table and trailer.
func (p *Parser) readXRefChain(start int64) error {
	p.xref = NewXRefTable()
	p.trailer = PDFDict{}

	visited := map[int64]bool{}
	for offset, ok := start, true; ok; {
		if visited[offset] {
			break
		}
		visited[offset] = true

		trailer, err := p.readXRefSection(offset)
		if err != nil {
			return fmt.Errorf("xref at offset %d: %w", offset, err)
		}
		for k, v := range trailer {
			if _, exists := p.trailer[k]; !exists {
				p.trailer[k] = v
			}
		}

		var prev int64
		prev, ok = trailer.GetInt("Prev")
		offset = prev
	}

	delete(p.trailer, "Prev")
	delete(p.trailer, "XRefStm")
	return nil
}

// readXRefSection parses either a classic table or a cross-reference
// stream at offset.
func (p *Parser) readXRefSection(offset int64) (PDFDict, error) {
	lexer := NewLexerAt(p.data, int(offset))
	token, err := lexer.NextToken()
	if err != nil {
		return nil, err
	}
	if kw, ok := token.Value.(string); ok && kw == "xref" {
		return p.readXRefTable(lexer)
	}

	lexer.Seek(int(offset))
	_, obj, err := p.parseIndirect(lexer)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*PDFStream)
	if !ok || TypeName(stream) != "XRef" {
		return nil, fmt.Errorf("expected xref table or stream")
	}
	if err := p.readXRefStream(stream); err != nil {
		return nil, err
	}
	return stream.Dict, nil
}

// readXRefTable parses "xref" subsections followed by the trailer
func (p *Parser) readXRefTable(lexer *Lexer) (PDFDict, error) {
	type pending struct {
		num   int
		entry XRefEntry
	}
	var entries []pending

	for {
		token, err := lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if kw, ok := token.Value.(string); ok && kw == "trailer" {
			break
		}
		first, ok := token.Value.(PDFInt)
		if !ok {
			return nil, fmt.Errorf("expected object number or 'trailer', got %v", token.Value)
		}

		token, err = lexer.NextToken()
		if err != nil {
			return nil, err
		}
		count, ok := token.Value.(PDFInt)
		if !ok {
			return nil, fmt.Errorf("expected subsection count, got %v", token.Value)
		}

		for i := 0; i < int(count); i++ {
			var fields [2]PDFInt
			for j := range fields {
				token, err = lexer.NextToken()
				if err != nil {
					return nil, err
				}
				v, ok := token.Value.(PDFInt)
				if !ok {
					return nil, fmt.Errorf("malformed entry %d of subsection %d", i, first)
				}
				fields[j] = v
			}
			token, err = lexer.NextToken()
			if err != nil {
				return nil, err
			}
			flag, _ := token.Value.(string)

			e := XRefEntry{Offset: int64(fields[0]), Generation: int(fields[1])}
			switch flag {
			case "n":
				e.kind = entryOffset
			case "f":
				e.kind = entryFree
			default:
				return nil, fmt.Errorf("malformed flag %q in entry %d of subsection %d", flag, i, first)
			}
			entries = append(entries, pending{num: int(first) + i, entry: e})
		}
	}

	obj, err := p.parseObject(lexer)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trailer: %w", err)
	}
	trailer, ok := obj.(PDFDict)
	if !ok {
		return nil, fmt.Errorf("trailer is not a dictionary")
	}

	// Hybrid files: the stream describes objects the table marks free
	if off, ok := trailer.GetInt("XRefStm"); ok {
		if _, err := p.readXRefSection(off); err != nil {
			return nil, fmt.Errorf("XRefStm: %w", err)
		}
	}

	for _, pe := range entries {
		p.xref.add(pe.num, pe.entry)
	}
	return trailer, nil
}

// readXRefStream decodes a /Type /XRef stream into table entries
func (p *Parser) readXRefStream(stream *PDFStream) error {
	data, err := DecodeStream(stream.Dict, stream.Data)
	if err != nil {
		return err
	}

	w, ok := stream.Dict.GetArray("W")
	if !ok || len(w) < 3 {
		return fmt.Errorf("xref stream without /W")
	}
	var widths [3]int
	for i := range widths {
		v, ok := w[i].(PDFInt)
		if !ok || v < 0 || v > 8 {
			return fmt.Errorf("invalid /W entry %v", w[i])
		}
		widths[i] = int(v)
	}
	rowLen := widths[0] + widths[1] + widths[2]
	if rowLen == 0 {
		return fmt.Errorf("xref stream has zero-width rows")
	}

	size, _ := stream.Dict.GetInt("Size")
	index := []int64{0, size}
	if arr, ok := stream.Dict.GetArray("Index"); ok {
		index = index[:0]
		for _, v := range arr {
			if n, ok := v.(PDFInt); ok {
				index = append(index, int64(n))
			}
		}
	}

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for n := int64(0); n < count; n++ {
			if pos+rowLen > len(data) {
				return nil
			}
			row := data[pos : pos+rowLen]
			pos += rowLen

			kind := int64(1)
			if widths[0] > 0 {
				kind = readField(row[:widths[0]])
			}
			f2 := readField(row[widths[0] : widths[0]+widths[1]])
			f3 := readField(row[widths[0]+widths[1]:])

			num := int(first + n)
			switch kind {
			case 0:
				p.xref.add(num, XRefEntry{kind: entryFree})
			case 1:
				p.xref.add(num, XRefEntry{kind: entryOffset, Offset: f2, Generation: int(f3)})
			case 2:
				p.xref.add(num, XRefEntry{kind: entryCompressed, Stream: int(f2), Index: int(f3)})
			}
		}
	}
	return nil
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
