package parser

import (
	"bytes"
	"encoding/ascii85"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// DecodeStream applies the stream's /Filter chain to raw. Filters the
// package cannot decode stop the chain and return the data decoded so far.
func DecodeStream(dict PDFDict, raw []byte) ([]byte, error) {
	var filters []PDFName
	switch f := dict.Get("Filter").(type) {
	case PDFName:
		filters = []PDFName{f}
	case PDFArray:
		for _, item := range f {
			if name, ok := item.(PDFName); ok {
				filters = append(filters, name)
			}
		}
	}

	params := decodeParams(dict, len(filters))

	data := raw
	for i, f := range filters {
		var err error
		switch f {
		case "FlateDecode", "Fl":
			data, err = flateDecode(data)
			if err == nil {
				data, err = applyPredictor(data, params[i])
			}
		case "ASCIIHexDecode", "AHx":
			data, err = asciiHexDecode(data)
		case "ASCII85Decode", "A85":
			data, err = ascii85Decode(data)
		default:
			return data, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}

	return data, nil
}

// decodeParams returns one /DecodeParms dictionary (possibly nil) per filter
func decodeParams(dict PDFDict, n int) []PDFDict {
	params := make([]PDFDict, n)
	switch p := dict.Get("DecodeParms").(type) {
	case PDFDict:
		if n > 0 {
			params[0] = p
		}
	case PDFArray:
		for i := 0; i < n && i < len(p); i++ {
			params[i], _ = p[i].(PDFDict)
		}
	}
	return params
}

// flateDecode inflates zlib data, falling back to raw deflate, which
// some writers emit without the zlib header.
func flateDecode(data []byte) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
		defer r.Close()
		out, err := io.ReadAll(r)
		if err == nil || len(out) > 0 {
			// Truncated streams are common; keep what inflated
			return out, nil
		}
	}

	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return nil, err
	}
	return out, nil
}

func asciiHexDecode(data []byte) ([]byte, error) {
	digits := make([]byte, 0, len(data))
	for _, b := range data {
		if b == '>' {
			break
		}
		if isHexDigit(b) {
			digits = append(digits, b)
		} else if !isWhitespace(b) {
			return nil, fmt.Errorf("invalid hex digit %q", b)
		}
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}

	out := make([]byte, len(digits)/2)
	for i := range out {
		out[i] = hexValue(digits[2*i])<<4 | hexValue(digits[2*i+1])
	}
	return out, nil
}

func ascii85Decode(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	data = bytes.TrimPrefix(data, []byte("<~"))
	if idx := bytes.Index(data, []byte("~>")); idx >= 0 {
		data = data[:idx]
	}

	out := make([]byte, 4*len(data)+4)
	n, _, err := ascii85.Decode(out, data, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// applyPredictor undoes PNG predictors (10-15). TIFF predictor 2 is
// not used by cross-reference streams and is left alone.
func applyPredictor(data []byte, params PDFDict) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor, _ := params.GetInt("Predictor")
	if predictor < 10 {
		return data, nil
	}

	columns := int64(1)
	if c, ok := params.GetInt("Columns"); ok && c > 0 {
		columns = c
	}
	colors := int64(1)
	if c, ok := params.GetInt("Colors"); ok && c > 0 {
		colors = c
	}
	bpc := int64(8)
	if b, ok := params.GetInt("BitsPerComponent"); ok && b > 0 {
		bpc = b
	}

	bpp := int((colors*bpc + 7) / 8)
	rowLen := int((columns*colors*bpc + 7) / 8)
	stride := rowLen + 1
	if len(data) < stride {
		return nil, fmt.Errorf("predictor: data length %d is shorter than one row of %d", len(data), stride)
	}
	// A trailing partial row is ignored
	data = data[:len(data)-len(data)%stride]

	out := make([]byte, 0, len(data)/stride*rowLen)
	prev := make([]byte, rowLen)
	for off := 0; off < len(data); off += stride {
		kind := data[off]
		row := make([]byte, rowLen)
		copy(row, data[off+1:off+stride])

		for i := 0; i < rowLen; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch kind {
			case 0:
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("predictor: unknown PNG filter type %d", kind)
			}
		}

		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
