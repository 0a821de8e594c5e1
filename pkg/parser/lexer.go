package parser

import (
	"bytes"
	"fmt"
	"strconv"
)

// TokenType represents the type of a PDF token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenHexString
	TokenName
	TokenKeyword
	TokenArrayStart
	TokenArrayEnd
	TokenDictStart
	TokenDictEnd
	TokenRef
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenNumber:
		return "Number"
	case TokenString:
		return "String"
	case TokenHexString:
		return "HexString"
	case TokenName:
		return "Name"
	case TokenKeyword:
		return "Keyword"
	case TokenArrayStart:
		return "ArrayStart"
	case TokenArrayEnd:
		return "ArrayEnd"
	case TokenDictStart:
		return "DictStart"
	case TokenDictEnd:
		return "DictEnd"
	case TokenRef:
		return "Ref"
	default:
		return "Unknown"
	}
}

// Token represents a PDF token. Keywords carry a string Value, except
// true/false/null which carry their PDFObject.
type Token struct {
	Type  TokenType
	Value interface{}
}

// Lexer tokenizes an in-memory PDF byte slice. The same lexer serves
// file bodies and page content streams.
type Lexer struct {
	data   []byte
	pos    int
	pushed []*Token
}

// NewLexer creates a lexer positioned at the start of data
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

// NewLexerAt creates a lexer positioned at offset
func NewLexerAt(data []byte, offset int) *Lexer {
	return &Lexer{data: data, pos: offset}
}

// Position returns the offset of the next unread byte. Pushed-back
// tokens are not accounted for.
func (l *Lexer) Position() int {
	return l.pos
}

// Seek moves the lexer to offset and discards pushed-back tokens
func (l *Lexer) Seek(offset int) {
	l.pos = offset
	l.pushed = l.pushed[:0]
}

// Data returns the underlying bytes
func (l *Lexer) Data() []byte {
	return l.data
}

// UnreadToken pushes a token back to be read again
func (l *Lexer) UnreadToken(token *Token) {
	l.pushed = append(l.pushed, token)
}

// NextToken returns the next token; at the end of input it returns a
// TokenEOF token and a nil error.
func (l *Lexer) NextToken() (*Token, error) {
	if n := len(l.pushed); n > 0 {
		token := l.pushed[n-1]
		l.pushed = l.pushed[:n-1]
		return token, nil
	}

	l.skipWhitespaceAndComments()
	if l.pos >= len(l.data) {
		return &Token{Type: TokenEOF}, nil
	}

	switch ch := l.data[l.pos]; ch {
	case '[':
		l.pos++
		return &Token{Type: TokenArrayStart}, nil
	case ']':
		l.pos++
		return &Token{Type: TokenArrayEnd}, nil
	case '<':
		if l.peekAt(1) == '<' {
			l.pos += 2
			return &Token{Type: TokenDictStart}, nil
		}
		return l.readHexString()
	case '>':
		if l.peekAt(1) != '>' {
			return nil, fmt.Errorf("expected >> at offset %d", l.pos)
		}
		l.pos += 2
		return &Token{Type: TokenDictEnd}, nil
	case '(':
		return l.readString()
	case '/':
		return l.readName()
	case '+', '-', '.', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return l.readNumber()
	case '{', '}':
		// PostScript calculator braces only appear in function streams
		l.pos++
		return &Token{Type: TokenKeyword, Value: string(ch)}, nil
	default:
		return l.readKeyword()
	}
}

// SkipWhitespace advances past whitespace and comments
func (l *Lexer) SkipWhitespace() {
	l.skipWhitespaceAndComments()
}

// SkipPast advances past the next occurrence of marker that is
// surrounded by whitespace. It reports whether marker was found.
func (l *Lexer) SkipPast(marker []byte) bool {
	for {
		idx := bytes.Index(l.data[l.pos:], marker)
		if idx < 0 {
			l.pos = len(l.data)
			return false
		}
		start := l.pos + idx
		end := start + len(marker)
		before := start == 0 || isWhitespace(l.data[start-1])
		after := end >= len(l.data) || isWhitespace(l.data[end]) || isDelimiter(l.data[end])
		l.pos = end
		if before && after {
			l.pushed = l.pushed[:0]
			return true
		}
	}
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.data) {
		return 0
	}
	return l.data[l.pos+n]
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if isWhitespace(ch) {
			l.pos++
			continue
		}
		if ch == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *Lexer) readNumber() (*Token, error) {
	start := l.pos
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if ch == '+' || ch == '-' || ch == '.' || (ch >= '0' && ch <= '9') {
			l.pos++
			continue
		}
		break
	}
	str := string(l.data[start:l.pos])

	if bytes.ContainsAny(l.data[start:l.pos], ".") {
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			// Writers emit things like "0.-5" or "--1"; treat as zero
			return &Token{Type: TokenNumber, Value: PDFFloat(0)}, nil
		}
		return &Token{Type: TokenNumber, Value: PDFFloat(f)}, nil
	}

	i, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(str, 64)
		if ferr != nil {
			return &Token{Type: TokenNumber, Value: PDFInt(0)}, nil
		}
		return &Token{Type: TokenNumber, Value: PDFFloat(f)}, nil
	}
	return &Token{Type: TokenNumber, Value: PDFInt(i)}, nil
}

func (l *Lexer) readString() (*Token, error) {
	start := l.pos
	l.pos++ // (

	var buf []byte
	depth := 1
	for depth > 0 {
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated string at offset %d", start)
		}
		ch := l.data[l.pos]
		l.pos++

		switch ch {
		case '\\':
			if l.pos >= len(l.data) {
				return nil, fmt.Errorf("unterminated string at offset %d", start)
			}
			esc := l.data[l.pos]
			l.pos++
			switch esc {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b':
				buf = append(buf, '\b')
			case 'f':
				buf = append(buf, '\f')
			case '\r':
				// Line continuation
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				val := int(esc - '0')
				for i := 0; i < 2 && l.pos < len(l.data); i++ {
					d := l.data[l.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val*8 + int(d-'0')
					l.pos++
				}
				buf = append(buf, byte(val))
			default:
				buf = append(buf, esc)
			}
		case '(':
			depth++
			buf = append(buf, ch)
		case ')':
			depth--
			if depth > 0 {
				buf = append(buf, ch)
			}
		default:
			buf = append(buf, ch)
		}
	}

	return &Token{Type: TokenString, Value: PDFString(buf)}, nil
}

func (l *Lexer) readHexString() (*Token, error) {
	start := l.pos
	l.pos++ // <

	digits := make([]byte, 0, 32)
	for {
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated hex string at offset %d", start)
		}
		ch := l.data[l.pos]
		l.pos++
		if ch == '>' {
			break
		}
		if isHexDigit(ch) {
			digits = append(digits, ch)
		} else if !isWhitespace(ch) {
			return nil, fmt.Errorf("invalid character %q in hex string at offset %d", ch, start)
		}
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}

	result := make([]byte, len(digits)/2)
	for i := range result {
		result[i] = hexValue(digits[2*i])<<4 | hexValue(digits[2*i+1])
	}

	return &Token{Type: TokenHexString, Value: PDFString(result)}, nil
}

func (l *Lexer) readName() (*Token, error) {
	l.pos++ // /

	var buf []byte
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if isDelimiter(ch) || isWhitespace(ch) {
			break
		}
		l.pos++

		if ch == '#' && l.pos+1 < len(l.data) && isHexDigit(l.data[l.pos]) && isHexDigit(l.data[l.pos+1]) {
			buf = append(buf, hexValue(l.data[l.pos])<<4|hexValue(l.data[l.pos+1]))
			l.pos += 2
			continue
		}
		buf = append(buf, ch)
	}

	return &Token{Type: TokenName, Value: PDFName(buf)}, nil
}

func (l *Lexer) readKeyword() (*Token, error) {
	start := l.pos
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if isDelimiter(ch) || isWhitespace(ch) {
			break
		}
		l.pos++
	}
	if l.pos == start {
		// A lone delimiter such as ')' outside a string
		l.pos++
		return nil, fmt.Errorf("unexpected character %q at offset %d", l.data[start], start)
	}

	switch keyword := string(l.data[start:l.pos]); keyword {
	case "true":
		return &Token{Type: TokenKeyword, Value: PDFBool(true)}, nil
	case "false":
		return &Token{Type: TokenKeyword, Value: PDFBool(false)}, nil
	case "null":
		return &Token{Type: TokenKeyword, Value: PDFNull{}}, nil
	case "R":
		return &Token{Type: TokenRef}, nil
	default:
		return &Token{Type: TokenKeyword, Value: keyword}, nil
	}
}

// Helper functions
func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' || ch == 0
}

func isDelimiter(ch byte) bool {
	return ch == '(' || ch == ')' || ch == '<' || ch == '>' ||
		ch == '[' || ch == ']' || ch == '{' || ch == '}' ||
		ch == '/' || ch == '%'
}

func isHexDigit(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'A' && ch <= 'F') || (ch >= 'a' && ch <= 'f')
}

func hexValue(ch byte) byte {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0'
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10
	case ch >= 'A' && ch <= 'F':
		return ch - 'A' + 10
	}
	return 0
}
