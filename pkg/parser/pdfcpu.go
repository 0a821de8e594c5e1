package parser

import (
	"fmt"
	"io"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// LoadWithPDFCPU parses the document with pdfcpu, which also handles
// encrypted and damaged cross-reference data, and converts each of its
// objects into the parser model. Every converted object passes through
// filter before it is inserted; stream content is decoded only for
// objects the filter keeps.
func LoadWithPDFCPU(rs io.ReadSeeker, password string, filter FilterFunc) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if ctx.Root == nil {
		return nil, fmt.Errorf("no Root in trailer")
	}
	if filter == nil {
		filter = Keep
	}

	doc := &Document{
		Trailer: PDFDict{"Root": convertRef(*ctx.Root)},
		Objects: make(map[ObjectRef]PDFObject, len(ctx.Table)),
	}
	if ctx.HeaderVersion != nil {
		doc.Version = ctx.HeaderVersion.String()
	}
	if ctx.Info != nil {
		doc.Trailer["Info"] = convertRef(*ctx.Info)
	}

	nums := make([]int, 0, len(ctx.Table))
	for n := range ctx.Table {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	for _, num := range nums {
		entry := ctx.Table[num]
		if num == 0 || entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		gen := 0
		if entry.Generation != nil {
			gen = *entry.Generation
		}

		obj, ok := convertObject(entry.Object)
		if !ok {
			continue
		}
		doc.insert(filter, ObjectRef{Number: num, Generation: gen}, obj)
	}

	return doc, nil
}

// convertObject maps a pdfcpu object onto the parser model. Object and
// cross-reference streams report false; pdfcpu has already expanded them.
func convertObject(obj types.Object) (PDFObject, bool) {
	switch v := obj.(type) {
	case nil:
		return PDFNull{}, true
	case types.Boolean:
		return PDFBool(v), true
	case types.Integer:
		return PDFInt(v), true
	case types.Float:
		return PDFFloat(v), true
	case types.Name:
		return PDFName(v), true
	case types.StringLiteral:
		b, err := types.Unescape(string(v))
		if err != nil {
			return PDFString(v), true
		}
		return PDFString(b), true
	case types.HexLiteral:
		b, err := v.Bytes()
		if err != nil {
			return PDFString(nil), true
		}
		return PDFString(b), true
	case types.IndirectRef:
		return convertRef(v), true
	case *types.IndirectRef:
		return convertRef(*v), true
	case types.Array:
		arr := make(PDFArray, 0, len(v))
		for _, item := range v {
			if o, ok := convertObject(item); ok {
				arr = append(arr, o)
			}
		}
		return arr, true
	case types.Dict:
		return convertDict(v), true
	case types.StreamDict:
		return convertStream(&v), true
	case *types.StreamDict:
		return convertStream(v), true
	case types.ObjectStreamDict, *types.ObjectStreamDict, types.XRefStreamDict, *types.XRefStreamDict:
		return nil, false
	}
	return nil, false
}

func convertRef(r types.IndirectRef) ObjectRef {
	return ObjectRef{Number: int(r.ObjectNumber), Generation: int(r.GenerationNumber)}
}

func convertDict(d types.Dict) PDFDict {
	dict := make(PDFDict, len(d))
	for k, v := range d {
		if v == nil {
			continue
		}
		if o, ok := convertObject(v); ok {
			dict[PDFName(k)] = o
		}
	}
	return dict
}

// convertStream defers pdfcpu's decoding until the filter has kept the stream
func convertStream(sd *types.StreamDict) *PDFStream {
	return &PDFStream{
		Dict: convertDict(sd.Dict),
		decode: func() ([]byte, error) {
			if sd.Content != nil {
				return sd.Content, nil
			}
			if err := sd.Decode(); err != nil {
				return nil, err
			}
			return sd.Content, nil
		},
	}
}
