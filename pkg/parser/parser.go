package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrEncrypted is returned by the native loader for encrypted files;
	// LoadWithPDFCPU decrypts them.
	ErrEncrypted = errors.New("encrypted documents are not supported by the native loader")

	// ErrNotPDF is returned when the %PDF- header is missing
	ErrNotPDF = errors.New("not a PDF file")
)

// Parser reads a whole PDF into a Document, passing every object it
// decodes through a FilterFunc before insertion.
type Parser struct {
	data    []byte
	xref    *XRefTable
	trailer PDFDict
	filter  FilterFunc

	// decoded object streams by object number
	objStms map[int]*objectStream
}

type objectStream struct {
	data    []byte
	numbers []int
	offsets []int
}

// Open loads the PDF at path with the native parser
func Open(path string, filter FilterFunc) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return Load(f, info.Size(), filter)
}

// Load reads size bytes from r and builds the filtered Document. A nil
// filter keeps every object. Objects that cannot be parsed are left out
// and counted in Stats.Skipped.
func Load(r io.ReaderAt, size int64, filter FilterFunc) (*Document, error) {
	data := make([]byte, size)
	n, err := r.ReadAt(data, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if filter == nil {
		filter = Keep
	}

	p := &Parser{
		data:    data[:n],
		filter:  filter,
		objStms: make(map[int]*objectStream),
	}
	return p.Parse()
}

// Parse parses the PDF document
func (p *Parser) Parse() (*Document, error) {
	version, err := p.verifyHeader()
	if err != nil {
		return nil, fmt.Errorf("invalid PDF header: %w", err)
	}

	start, err := findStartXRef(p.data)
	if err != nil {
		return nil, fmt.Errorf("failed to find xref offset: %w", err)
	}
	if err := p.readXRefChain(start); err != nil {
		return nil, fmt.Errorf("failed to parse xref: %w", err)
	}
	if _, ok := p.trailer["Encrypt"]; ok {
		return nil, ErrEncrypted
	}
	if _, ok := p.trailer["Root"].(ObjectRef); !ok {
		return nil, fmt.Errorf("no Root in trailer")
	}

	doc := &Document{
		Version: version,
		Trailer: p.trailer,
		Objects: make(map[ObjectRef]PDFObject, len(p.xref.Entries)),
	}

	for _, num := range p.xref.Numbers() {
		entry := p.xref.Entries[num]

		var (
			ref ObjectRef
			obj PDFObject
		)
		if entry.Compressed() {
			ref = ObjectRef{Number: num}
			obj, err = p.compressedObject(num, entry)
		} else {
			ref, obj, err = p.parseIndirect(NewLexerAt(p.data, int(entry.Offset)))
			if err == nil && ref.Number != num {
				err = fmt.Errorf("object number mismatch: xref %d, found %d", num, ref.Number)
			}
		}
		if err != nil {
			// A damaged object costs only itself
			doc.Stats.Skipped++
			continue
		}

		// Cross-reference and object streams are structure, not content
		if t := TypeName(obj); t == "XRef" || t == "ObjStm" {
			continue
		}
		if s, ok := obj.(*PDFStream); ok {
			raw := s.Data
			s.Data = nil
			s.decode = func() ([]byte, error) { return DecodeStream(s.Dict, raw) }
		}
		doc.insert(p.filter, ref, obj)
	}

	return doc, nil
}

// verifyHeader checks for %PDF- within the first kilobyte and returns the version
func (p *Parser) verifyHeader() (string, error) {
	head := p.data
	if len(head) > 1024 {
		head = head[:1024]
	}
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 {
		return "", ErrNotPDF
	}

	rest := head[idx+5:]
	end := 0
	for end < len(rest) && end < 8 && !isWhitespace(rest[end]) && rest[end] != '%' {
		end++
	}
	return string(rest[:end]), nil
}

// parseIndirect parses "num gen obj ... endobj". Streams are returned
// with their undecoded bytes in Data.
func (p *Parser) parseIndirect(lexer *Lexer) (ObjectRef, PDFObject, error) {
	var ref ObjectRef

	token, err := lexer.NextToken()
	if err != nil {
		return ref, nil, err
	}
	num, ok := token.Value.(PDFInt)
	if !ok {
		return ref, nil, fmt.Errorf("expected object number, got %v", token.Value)
	}
	token, err = lexer.NextToken()
	if err != nil {
		return ref, nil, err
	}
	gen, ok := token.Value.(PDFInt)
	if !ok {
		return ref, nil, fmt.Errorf("expected generation number, got %v", token.Value)
	}
	token, err = lexer.NextToken()
	if err != nil {
		return ref, nil, err
	}
	if kw, ok := token.Value.(string); !ok || kw != "obj" {
		return ref, nil, fmt.Errorf("expected 'obj', got %v", token.Value)
	}
	ref = ObjectRef{Number: int(num), Generation: int(gen)}

	obj, err := p.parseObject(lexer)
	if err != nil {
		return ref, nil, err
	}

	dict, ok := obj.(PDFDict)
	if !ok {
		return ref, obj, nil
	}
	token, err = lexer.NextToken()
	if err != nil {
		return ref, nil, err
	}
	if kw, ok := token.Value.(string); !ok || kw != "stream" {
		return ref, dict, nil
	}

	raw, err := p.streamData(lexer.Position(), dict)
	if err != nil {
		return ref, nil, err
	}
	return ref, &PDFStream{Dict: dict, Data: raw}, nil
}

// streamData returns the raw bytes of a stream whose "stream" keyword
// ends at pos. A wrong /Length falls back to searching for endstream.
func (p *Parser) streamData(pos int, dict PDFDict) ([]byte, error) {
	if pos < len(p.data) && p.data[pos] == '\r' {
		pos++
	}
	if pos < len(p.data) && p.data[pos] == '\n' {
		pos++
	}

	if length, ok := p.streamLength(dict); ok && length >= 0 && pos+length <= len(p.data) {
		end := pos + length
		tail := NewLexerAt(p.data, end)
		tail.SkipWhitespace()
		if bytes.HasPrefix(p.data[tail.Position():], []byte("endstream")) {
			return p.data[pos:end], nil
		}
	}

	idx := bytes.Index(p.data[pos:], []byte("endstream"))
	if idx < 0 {
		return nil, fmt.Errorf("unterminated stream")
	}
	raw := p.data[pos : pos+idx]
	raw = bytes.TrimSuffix(raw, []byte("\n"))
	raw = bytes.TrimSuffix(raw, []byte("\r"))
	return raw, nil
}

// streamLength resolves /Length, following an indirect reference
// without filtering or caching the target.
func (p *Parser) streamLength(dict PDFDict) (int, bool) {
	switch v := dict.Get("Length").(type) {
	case PDFInt:
		return int(v), true
	case ObjectRef:
		entry, ok := p.xref.Entries[v.Number]
		if !ok || entry.kind != entryOffset {
			return 0, false
		}
		_, obj, err := p.parseIndirect(NewLexerAt(p.data, int(entry.Offset)))
		if err != nil {
			return 0, false
		}
		if n, ok := obj.(PDFInt); ok {
			return int(n), true
		}
	}
	return 0, false
}

// compressedObject parses object num from the object stream its entry names
func (p *Parser) compressedObject(num int, entry XRefEntry) (PDFObject, error) {
	stm, err := p.objectStream(entry.Stream)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", entry.Stream, err)
	}
	if entry.Index < 0 || entry.Index >= len(stm.offsets) {
		return nil, fmt.Errorf("index %d out of range in object stream %d", entry.Index, entry.Stream)
	}
	if stm.numbers[entry.Index] != num {
		return nil, fmt.Errorf("object stream %d holds %d at index %d", entry.Stream, stm.numbers[entry.Index], entry.Index)
	}
	return p.parseObject(NewLexerAt(stm.data, stm.offsets[entry.Index]))
}

// objectStream decodes and indexes the /ObjStm with the given number
func (p *Parser) objectStream(num int) (*objectStream, error) {
	if stm, ok := p.objStms[num]; ok {
		return stm, nil
	}

	entry, ok := p.xref.Entries[num]
	if !ok || entry.kind != entryOffset {
		return nil, fmt.Errorf("not found")
	}
	_, obj, err := p.parseIndirect(NewLexerAt(p.data, int(entry.Offset)))
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*PDFStream)
	if !ok {
		return nil, fmt.Errorf("not a stream")
	}
	data, err := DecodeStream(stream.Dict, stream.Data)
	if err != nil {
		return nil, err
	}

	n, _ := stream.Dict.GetInt("N")
	first, _ := stream.Dict.GetInt("First")
	if n < 0 || first < 0 || int(first) > len(data) {
		return nil, fmt.Errorf("invalid /N or /First")
	}

	stm := &objectStream{data: data}
	header := NewLexer(data[:first])
	for i := int64(0); i < n; i++ {
		numTok, err := header.NextToken()
		if err != nil {
			return nil, err
		}
		offTok, err := header.NextToken()
		if err != nil {
			return nil, err
		}
		objNum, ok1 := numTok.Value.(PDFInt)
		off, ok2 := offTok.Value.(PDFInt)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("malformed header pair %d", i)
		}
		stm.numbers = append(stm.numbers, int(objNum))
		stm.offsets = append(stm.offsets, int(first)+int(off))
	}

	p.objStms[num] = stm
	return stm, nil
}

// parseObject parses a PDF object
func (p *Parser) parseObject(lexer *Lexer) (PDFObject, error) {
	token, err := lexer.NextToken()
	if err != nil {
		return nil, err
	}
	return p.parseToken(token, lexer)
}

// parseToken turns an already read token into an object, consuming
// further tokens for arrays, dictionaries and references.
func (p *Parser) parseToken(token *Token, lexer *Lexer) (PDFObject, error) {
	switch token.Type {
	case TokenEOF:
		return nil, io.ErrUnexpectedEOF
	case TokenNumber:
		// "a b R" is a reference; anything else leaves a as a number
		num1 := token.Value.(PDFObject)
		n1, isInt := num1.(PDFInt)
		if !isInt {
			return num1, nil
		}

		token2, err := lexer.NextToken()
		if err != nil {
			return nil, err
		}
		n2, ok := token2.Value.(PDFInt)
		if token2.Type != TokenNumber || !ok {
			lexer.UnreadToken(token2)
			return num1, nil
		}

		token3, err := lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if token3.Type == TokenRef {
			return ObjectRef{Number: int(n1), Generation: int(n2)}, nil
		}
		lexer.UnreadToken(token3)
		lexer.UnreadToken(token2)
		return num1, nil
	case TokenString, TokenHexString:
		return token.Value.(PDFString), nil
	case TokenName:
		return token.Value.(PDFName), nil
	case TokenKeyword:
		if obj, ok := token.Value.(PDFObject); ok {
			return obj, nil
		}
		return nil, fmt.Errorf("unexpected keyword %q", token.Value)
	case TokenArrayStart:
		return p.parseArray(lexer)
	case TokenDictStart:
		return p.parseDict(lexer)
	default:
		return nil, fmt.Errorf("unexpected token type: %v", token.Type)
	}
}

// parseArray parses a PDF array
func (p *Parser) parseArray(lexer *Lexer) (PDFArray, error) {
	array := PDFArray{}
	for {
		token, err := lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if token.Type == TokenArrayEnd {
			return array, nil
		}
		obj, err := p.parseToken(token, lexer)
		if err != nil {
			return nil, err
		}
		array = append(array, obj)
	}
}

// parseDict parses a PDF dictionary
func (p *Parser) parseDict(lexer *Lexer) (PDFDict, error) {
	dict := make(PDFDict)
	for {
		token, err := lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if token.Type == TokenDictEnd {
			return dict, nil
		}
		if token.Type != TokenName {
			return nil, fmt.Errorf("expected name for dict key, got %v (value: %v)", token.Type, token.Value)
		}
		key := token.Value.(PDFName)

		value, err := p.parseObject(lexer)
		if err != nil {
			return nil, fmt.Errorf("error parsing value for key %s: %w", key, err)
		}
		// A null value is equivalent to an absent key
		if _, isNull := value.(PDFNull); isNull {
			continue
		}
		dict[key] = value
	}
}

// ParseObject parses a single direct object from data. Content stream
// interpreters use it for inline dictionaries.
func ParseObject(lexer *Lexer) (PDFObject, error) {
	var p Parser
	return p.parseObject(lexer)
}
