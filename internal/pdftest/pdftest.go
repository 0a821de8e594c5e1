// Package pdftest builds small PDF files in memory for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

type object struct {
	body   []byte
	stream bool
}

// Builder assembles a PDF from object bodies. Object numbers start at 1
// and follow the order of Add calls.
type Builder struct {
	objects []object
	root    int
	info    int

	// XRefStream writes a compressed cross-reference stream and packs
	// every non-stream object into one object stream
	XRefStream bool
}

// New creates an empty builder
func New() *Builder {
	return &Builder{}
}

// Reserve allocates an object number to be filled in with Set
func (b *Builder) Reserve() int {
	b.objects = append(b.objects, object{body: []byte("null")})
	return len(b.objects)
}

// Set replaces the body of object num
func (b *Builder) Set(num int, body string) {
	b.objects[num-1] = object{body: []byte(body)}
}

// Add appends a direct object such as "<< /Type /Catalog >>"
func (b *Builder) Add(body string) int {
	num := b.Reserve()
	b.Set(num, body)
	return num
}

// AddStream appends a stream. dict holds the dictionary entries without
// the enclosing << >>; /Length is added.
func (b *Builder) AddStream(dict string, data []byte) int {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<< %s /Length %d >>\nstream\n", dict, len(data))
	buf.Write(data)
	buf.WriteString("\nendstream")
	b.objects = append(b.objects, object{body: buf.Bytes(), stream: true})
	return len(b.objects)
}

// AddFlateStream appends a FlateDecode-compressed stream
func (b *Builder) AddFlateStream(dict string, data []byte) int {
	return b.AddStream(strings.TrimSpace(dict+" /Filter /FlateDecode"), Deflate(data))
}

// SetRoot names the catalog
func (b *Builder) SetRoot(num int) { b.root = num }

// SetInfo names the document information dictionary
func (b *Builder) SetInfo(num int) { b.info = num }

// Bytes serializes the document
func (b *Builder) Bytes() []byte {
	if b.XRefStream {
		return b.bytesXRefStream()
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(b.objects)+1)
	for i, obj := range b.objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(obj.body)
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d%s >>\n", len(offsets), b.trailerRefs())
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

func (b *Builder) trailerRefs() string {
	var sb strings.Builder
	if b.root > 0 {
		fmt.Fprintf(&sb, " /Root %d 0 R", b.root)
	}
	if b.info > 0 {
		fmt.Fprintf(&sb, " /Info %d 0 R", b.info)
	}
	return sb.String()
}

// xrefRow is one entry of a cross-reference stream with /W [1 4 2]
type xrefRow struct {
	kind  byte
	field uint32
	index uint16
}

func (b *Builder) bytesXRefStream() []byte {
	objStmNum := len(b.objects) + 1
	xrefNum := len(b.objects) + 2
	rows := make([]xrefRow, xrefNum+1)
	rows[0] = xrefRow{kind: 0, index: 0xffff}

	// Pack direct objects into the object stream
	var header, body bytes.Buffer
	packed := 0
	for i, obj := range b.objects {
		if obj.stream {
			continue
		}
		fmt.Fprintf(&header, "%d %d ", i+1, body.Len())
		body.Write(obj.body)
		body.WriteByte('\n')
		rows[i+1] = xrefRow{kind: 2, field: uint32(objStmNum), index: uint16(packed)}
		packed++
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	for i, obj := range b.objects {
		if !obj.stream {
			continue
		}
		rows[i+1] = xrefRow{kind: 1, field: uint32(buf.Len())}
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(obj.body)
		buf.WriteString("\nendobj\n")
	}

	content := append(header.Bytes(), body.Bytes()...)
	compressed := Deflate(content)
	rows[objStmNum] = xrefRow{kind: 1, field: uint32(buf.Len())}
	fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /ObjStm /N %d /First %d /Filter /FlateDecode /Length %d >>\nstream\n",
		objStmNum, packed, header.Len(), len(compressed))
	buf.Write(compressed)
	buf.WriteString("\nendstream\nendobj\n")

	xrefOffset := buf.Len()
	rows[xrefNum] = xrefRow{kind: 1, field: uint32(xrefOffset)}
	table := Deflate(pngUp(rows))
	fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2]%s /Filter /FlateDecode /DecodeParms << /Predictor 12 /Columns 7 >> /Length %d >>\nstream\n",
		xrefNum, len(rows), b.trailerRefs(), len(table))
	buf.Write(table)
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

// pngUp encodes rows with the PNG Up predictor, one filter byte per row
func pngUp(rows []xrefRow) []byte {
	const width = 7
	out := make([]byte, 0, len(rows)*(width+1))
	prev := make([]byte, width)
	for _, r := range rows {
		cur := []byte{
			r.kind,
			byte(r.field >> 24), byte(r.field >> 16), byte(r.field >> 8), byte(r.field),
			byte(r.index >> 8), byte(r.index),
		}
		out = append(out, 2)
		for i := range cur {
			out = append(out, cur[i]-prev[i])
		}
		prev = cur
	}
	return out
}

// Deflate compresses data in the zlib format FlateDecode expects
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

var startXRefPattern = regexp.MustCompile(`startxref\s+(\d+)\s+%%EOF\s*$`)

// AppendRevision appends an incremental update that adds or replaces
// the given objects. The new trailer links back with /Prev.
func AppendRevision(data []byte, root int, objects map[int]string) []byte {
	m := startXRefPattern.FindSubmatch(data)
	if m == nil {
		panic("pdftest: no startxref in base document")
	}
	prev, _ := strconv.Atoi(string(m[1]))

	nums := make([]int, 0, len(objects))
	for n := range objects {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	buf := bytes.NewBuffer(append([]byte(nil), data...))
	offsets := make(map[int]int, len(nums))
	for _, n := range nums {
		offsets[n] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", n, objects[n])
	}

	xrefOffset := buf.Len()
	buf.WriteString("xref\n")
	for _, n := range nums {
		fmt.Fprintf(buf, "%d 1\n%010d 00000 n \n", n, offsets[n])
	}
	size := nums[len(nums)-1] + 1
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root %d 0 R /Prev %d >>\n", size, root, prev)
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

// EscapeString escapes text for use inside a literal string (...)
func EscapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// TextContent renders lines as a content stream that shows each line
// with font /F1 on its own baseline
func TextContent(lines ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			buf.WriteString("0 -14 Td\n")
		}
		fmt.Fprintf(&buf, "(%s) Tj\n", EscapeString(line))
	}
	buf.WriteString("ET\n")
	return buf.Bytes()
}

// TextDocument builds a document with one page per entry of pages. Each
// page's text is split on "\n" into lines. Alongside the text the
// document carries the non-textual objects a real producer emits: an
// info dictionary, a font descriptor, an image XObject and a link
// annotation.
func TextDocument(pages ...string) *Builder {
	b := New()
	catalog := b.Reserve()
	tree := b.Reserve()

	info := b.Add("<< /Producer (pdftest) /Creator (pdftest) /ModDate (D:20240101000000Z) >>")
	descriptor := b.Add("<< /Type /FontDescriptor /FontName /Helvetica /Flags 32 /ItalicAngle 0 >>")
	font := b.Add(fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FontDescriptor %d 0 R >>", descriptor))
	image := b.AddStream("/Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8", []byte{0x80})
	resources := b.Add(fmt.Sprintf("<< /Font << /F1 %d 0 R >> /XObject << /Im1 %d 0 R >> /ProcSet [/PDF /Text /ImageB] >>", font, image))

	kids := make([]string, 0, len(pages))
	for _, text := range pages {
		var content []byte
		if text != "" {
			content = TextContent(strings.Split(text, "\n")...)
		}
		content = append(content, []byte("q 1 0 0 1 0 0 cm /Im1 Do Q\n")...)
		contents := b.AddFlateStream("", content)

		annot := b.Add("<< /Type /Annot /Subtype /Link /Rect [0 0 10 10] >>")
		page := b.Add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources %d 0 R /Contents %d 0 R /Annots [%d 0 R] >>",
			tree, resources, contents, annot))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}

	b.Set(tree, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids)))
	b.Set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", tree))
	b.SetRoot(catalog)
	b.SetInfo(info)
	return b
}
