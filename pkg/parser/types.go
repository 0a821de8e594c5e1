package parser

import (
	"fmt"
)

// PDFObject represents any PDF object
type PDFObject interface {
	Type() string
}

// ObjectRef identifies an indirect object by number and generation
type ObjectRef struct {
	Number     int
	Generation int
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}

// ID formats the reference as an (id, generation) pair
func (r ObjectRef) ID() string {
	return fmt.Sprintf("(%d, %d)", r.Number, r.Generation)
}

func (ObjectRef) Type() string { return "ref" }

// PDFNull represents a null object
type PDFNull struct{}

func (PDFNull) Type() string { return "null" }

// PDFBool represents a boolean object
type PDFBool bool

func (PDFBool) Type() string { return "bool" }

// PDFInt represents an integer object
type PDFInt int64

func (PDFInt) Type() string { return "int" }

// PDFFloat represents a floating-point object
type PDFFloat float64

func (PDFFloat) Type() string { return "float" }

// PDFString represents a string object
type PDFString []byte

func (PDFString) Type() string { return "string" }

// PDFName represents a name object
type PDFName string

func (PDFName) Type() string { return "name" }

// PDFArray represents an array object
type PDFArray []PDFObject

func (PDFArray) Type() string { return "array" }

// PDFDict represents a dictionary object
type PDFDict map[PDFName]PDFObject

func (PDFDict) Type() string { return "dict" }

// Get retrieves a value from the dictionary
func (d PDFDict) Get(key PDFName) PDFObject {
	return d[key]
}

// GetName retrieves a name value from the dictionary
func (d PDFDict) GetName(key PDFName) (PDFName, bool) {
	if name, ok := d[key].(PDFName); ok {
		return name, true
	}
	return "", false
}

// GetInt retrieves an integer value from the dictionary
func (d PDFDict) GetInt(key PDFName) (int64, bool) {
	switch v := d[key].(type) {
	case PDFInt:
		return int64(v), true
	case PDFFloat:
		return int64(v), true
	}
	return 0, false
}

// GetArray retrieves an array value from the dictionary
func (d PDFDict) GetArray(key PDFName) (PDFArray, bool) {
	if arr, ok := d[key].(PDFArray); ok {
		return arr, true
	}
	return nil, false
}

// GetDict retrieves a dictionary value from the dictionary
func (d PDFDict) GetDict(key PDFName) (PDFDict, bool) {
	if dict, ok := d[key].(PDFDict); ok {
		return dict, true
	}
	return nil, false
}

// PDFStream represents a stream object. Data holds the decoded bytes
// once the stream has been accepted by the loader's filter; DecodeErr
// records why decoding failed, in which case Data is empty.
type PDFStream struct {
	Dict      PDFDict
	Data      []byte
	DecodeErr error

	// decode is set by loaders for streams whose data is still encoded
	decode func() ([]byte, error)
}

// materialize runs the pending decode, if any
func (s *PDFStream) materialize() {
	if s.decode == nil {
		return
	}
	data, err := s.decode()
	s.decode = nil
	if err != nil {
		s.Data, s.DecodeErr = nil, err
		return
	}
	s.Data = data
}

func (*PDFStream) Type() string { return "stream" }

// TypeName returns the /Type of a dictionary or stream dictionary, or ""
// for every other object.
func TypeName(obj PDFObject) PDFName {
	switch v := obj.(type) {
	case PDFDict:
		name, _ := v.GetName("Type")
		return name
	case *PDFStream:
		if v == nil {
			return ""
		}
		name, _ := v.Dict.GetName("Type")
		return name
	}
	return ""
}

// AsDict returns the dictionary of a dict or stream object.
func AsDict(obj PDFObject) (PDFDict, bool) {
	switch v := obj.(type) {
	case PDFDict:
		return v, true
	case *PDFStream:
		if v == nil || v.Dict == nil {
			return nil, false
		}
		return v.Dict, true
	}
	return nil, false
}

// Number converts numeric objects to float64
func Number(obj PDFObject) (float64, bool) {
	switch v := obj.(type) {
	case PDFInt:
		return float64(v), true
	case PDFFloat:
		return float64(v), true
	}
	return 0, false
}
