package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pyhub-apps/pdftext-golang/pkg/parser"
)

// ErrPageNotFound is returned when a requested page number does not exist
var ErrPageNotFound = errors.New("page not found")

// ctxCheckInterval is how many operators run between context checks
const ctxCheckInterval = 256

// TextExtractor interprets page content streams and returns their text.
// It keeps no per-call state and is safe for concurrent use.
type TextExtractor struct {
	// SpaceThreshold is the negative TJ adjustment, in thousandths of a
	// text space unit, above which a gap is taken as a word break
	SpaceThreshold float64
}

// NewTextExtractor creates a new text extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{SpaceThreshold: 200}
}

// ExtractText returns the text of the given pages. Lines within a page
// are separated by "\n", and so are the pages.
func (e *TextExtractor) ExtractText(ctx context.Context, doc *parser.Document, pages ...parser.PageEntry) (string, error) {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		text, err := e.extractPage(ctx, doc, page.Ref)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}

// ExtractPages is ExtractText addressed by 1-based page number
func (e *TextExtractor) ExtractPages(ctx context.Context, doc *parser.Document, numbers ...int) (string, error) {
	all, err := doc.Pages()
	if err != nil {
		return "", err
	}

	entries := make([]parser.PageEntry, 0, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > len(all) {
			return "", fmt.Errorf("%w: %d of %d", ErrPageNotFound, n, len(all))
		}
		entries = append(entries, all[n-1])
	}
	return e.ExtractText(ctx, doc, entries...)
}

func (e *TextExtractor) extractPage(ctx context.Context, doc *parser.Document, ref parser.ObjectRef) (string, error) {
	streams, err := doc.PageContents(ref)
	if err != nil {
		return "", err
	}

	// Multiple content streams behave as one concatenated stream
	chunks := make([][]byte, 0, len(streams))
	for _, s := range streams {
		chunks = append(chunks, s.Data)
	}
	data := bytes.Join(chunks, []byte{'\n'})

	in := &interpreter{
		ctx:       ctx,
		fonts:     newFontCache(doc, doc.PageResources(ref)),
		stack:     NewStateStack(),
		text:      newTextObject(),
		threshold: e.SpaceThreshold,
	}
	if err := in.run(data); err != nil {
		return "", err
	}
	return strings.TrimRight(in.out.String(), "\n"), nil
}

// interpreter executes the text-related operators of one page
type interpreter struct {
	ctx       context.Context
	fonts     *fontCache
	stack     *StateStack
	text      textObject
	threshold float64

	out            strings.Builder
	lastY          float64
	haveY          bool
	pendingSpace   bool
	pendingNewline bool
}

func (in *interpreter) run(data []byte) error {
	lexer := parser.NewLexer(data)
	var operands []parser.PDFObject

	for count := 0; ; count++ {
		if count%ctxCheckInterval == 0 {
			if err := in.ctx.Err(); err != nil {
				return err
			}
		}

		token, err := lexer.NextToken()
		if err != nil {
			return fmt.Errorf("content stream: %w", err)
		}
		if token.Type == parser.TokenEOF {
			return nil
		}

		if op, ok := token.Value.(string); ok && token.Type == parser.TokenKeyword {
			if op == "ID" {
				// Inline image data runs up to EI
				lexer.SkipPast([]byte("EI"))
			} else {
				in.execute(op, operands)
			}
			operands = operands[:0]
			continue
		}

		lexer.UnreadToken(token)
		obj, err := parser.ParseObject(lexer)
		if err != nil {
			return fmt.Errorf("content stream operand: %w", err)
		}
		operands = append(operands, obj)
	}
}

func (in *interpreter) execute(op string, operands []parser.PDFObject) {
	state := in.stack.Current()

	switch op {
	case "q":
		in.stack.Save()

	case "Q":
		in.stack.Restore()

	case "cm":
		if m, ok := matrixOperands(operands); ok {
			state.CTM = m.Multiply(state.CTM)
		}

	case "BT":
		in.text = newTextObject()

	case "ET":
		in.pendingSpace = true

	case "Tf":
		if len(operands) == 2 {
			if name, ok := operands[0].(parser.PDFName); ok {
				state.FontName = string(name)
			}
			state.FontSize, _ = parser.Number(operands[1])
		}

	case "TL":
		if len(operands) == 1 {
			state.Leading, _ = parser.Number(operands[0])
		}

	case "Td", "TD":
		if len(operands) == 2 {
			tx, _ := parser.Number(operands[0])
			ty, _ := parser.Number(operands[1])
			if op == "TD" {
				state.Leading = -ty
			}
			in.text.moveLine(tx, ty)
			if ty == 0 && tx != 0 {
				in.pendingSpace = true
			}
		}

	case "Tm":
		if m, ok := matrixOperands(operands); ok {
			in.text.set(m)
			in.pendingSpace = true
		}

	case "T*":
		in.nextLine(state)

	case "Tj":
		if len(operands) == 1 {
			in.show(state, operands[0])
		}

	case "TJ":
		if len(operands) == 1 {
			if arr, ok := operands[0].(parser.PDFArray); ok {
				for _, item := range arr {
					if adj, ok := parser.Number(item); ok {
						if -adj > in.threshold {
							in.pendingSpace = true
						}
						continue
					}
					in.show(state, item)
				}
			}
		}

	case "'":
		if len(operands) == 1 {
			in.nextLine(state)
			in.show(state, operands[0])
		}

	case "\"":
		if len(operands) == 3 {
			in.nextLine(state)
			in.show(state, operands[2])
		}
	}
}

func (in *interpreter) nextLine(state *GraphicsState) {
	in.text.moveLine(0, -state.Leading)
	in.pendingNewline = true
}

// show decodes a string operand with the current font and appends it,
// preceded by whatever break the text position implies
func (in *interpreter) show(state *GraphicsState, obj parser.PDFObject) {
	raw, ok := obj.(parser.PDFString)
	if !ok {
		return
	}
	text := in.fonts.get(state.FontName).Decode(raw)
	if text == "" {
		return
	}

	y := in.text.tm.Multiply(state.CTM).F
	tolerance := math.Max(1, 0.3*math.Abs(state.FontSize))
	if in.haveY && math.Abs(y-in.lastY) > tolerance {
		in.pendingNewline = true
	}
	in.lastY, in.haveY = y, true

	switch {
	case in.pendingNewline:
		in.breakLine()
	case in.pendingSpace:
		in.breakWord()
	}
	in.pendingNewline, in.pendingSpace = false, false

	in.out.WriteString(text)
}

func (in *interpreter) breakLine() {
	if in.out.Len() == 0 {
		return
	}
	s := in.out.String()
	if s[len(s)-1] == ' ' {
		// Replace a trailing word break with the line break
		trimmed := strings.TrimRight(s, " ")
		in.out.Reset()
		in.out.WriteString(trimmed)
		if trimmed == "" {
			return
		}
		s = trimmed
	}
	if s[len(s)-1] != '\n' {
		in.out.WriteByte('\n')
	}
}

func (in *interpreter) breakWord() {
	if in.out.Len() == 0 {
		return
	}
	s := in.out.String()
	if last := s[len(s)-1]; last != ' ' && last != '\n' {
		in.out.WriteByte(' ')
	}
}

func matrixOperands(operands []parser.PDFObject) (Matrix, bool) {
	if len(operands) != 6 {
		return Matrix{}, false
	}
	var v [6]float64
	for i, o := range operands {
		n, ok := parser.Number(o)
		if !ok {
			return Matrix{}, false
		}
		v[i] = n
	}
	return Matrix{A: v[0], B: v[1], C: v[2], D: v[3], E: v[4], F: v[5]}, true
}
