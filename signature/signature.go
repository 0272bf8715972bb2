package signature

import (
	"strings"
)

// TableVersion identifies the primitive code table documented in the package
// comment. It changes whenever a code is added or its meaning changes.
const TableVersion = 1

// Signature is a signature string. Canonical signatures of equal shape compare
// equal with ==.
type Signature string

// String returns the signature text.
func (s Signature) String() string { return string(s) }

// Kind is the leading code of a signature.
type Kind byte

const (
	Void    Kind = 'v'
	Bool    Kind = 'b'
	Int8    Kind = 'c'
	UInt8   Kind = 'C'
	Int16   Kind = 'w'
	UInt16  Kind = 'W'
	Int32   Kind = 'i'
	UInt32  Kind = 'I'
	Int64   Kind = 'l'
	UInt64  Kind = 'L'
	Float32 Kind = 'f'
	Float64 Kind = 'd'
	String  Kind = 's'
	Raw     Kind = 'r'
	Dynamic Kind = 'm'
	Object  Kind = 'o'
	List    Kind = '['
	Map     Kind = '{'
	Struct  Kind = '('
)

// Grammar delimiters.
const (
	ListEnd         = ']'
	MapEnd          = '}'
	StructEnd       = ')'
	AnnotationBegin = '<'
	AnnotationEnd   = '>'
)

var kindNames = map[Kind]string{
	Void:    "void",
	Bool:    "bool",
	Int8:    "int8",
	UInt8:   "uint8",
	Int16:   "int16",
	UInt16:  "uint16",
	Int32:   "int32",
	UInt32:  "uint32",
	Int64:   "int64",
	UInt64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	String:  "string",
	Raw:     "raw",
	Dynamic: "dynamic",
	Object:  "object",
	List:    "list",
	Map:     "map",
	Struct:  "struct",
}

// reserved codes are part of the middleware grammar but not implemented here.
var reserved = map[byte]string{
	'X': "unknown",
	'*': "pointer",
	'#': "varargs",
	'~': "kwargs",
	'+': "optional",
	'_': "none",
}

// String returns the kind name.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "invalid"
}

// IsPrimitive reports whether k is a single-character code.
func (k Kind) IsPrimitive() bool {
	switch k {
	case List, Map, Struct:
		return false
	}
	_, ok := kindNames[k]
	return ok
}

// IsInteger reports whether k is one of the fixed-width integer codes.
func (k Kind) IsInteger() bool {
	switch k {
	case Int8, UInt8, Int16, UInt16, Int32, UInt32, Int64, UInt64:
		return true
	}
	return false
}

// IsSigned reports whether k is a signed integer code.
func (k Kind) IsSigned() bool {
	switch k {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// Shape is the parsed form of a signature. Shapes are immutable once built
// and may be shared freely.
//
// Only the fields relevant to Kind are set: Elem for lists, Key and Value for
// maps, Fields (and optionally Name/FieldNames) for structs.
type Shape struct {
	Kind       Kind
	Elem       *Shape
	Key        *Shape
	Value      *Shape
	Fields     []*Shape
	Name       string
	FieldNames []string

	sig Signature
}

var primitives = func() map[Kind]*Shape {
	m := make(map[Kind]*Shape, len(kindNames))
	for k := range kindNames {
		if k.IsPrimitive() {
			m[k] = &Shape{Kind: k, sig: Signature([]byte{byte(k)})}
		}
	}
	return m
}()

// Primitive returns the shared shape of a primitive kind, or nil when k is
// not a primitive code.
func Primitive(k Kind) *Shape { return primitives[k] }

// NewList returns the shape of a list of elem.
func NewList(elem *Shape) *Shape {
	return &Shape{Kind: List, Elem: elem, sig: "[" + elem.sig + "]"}
}

// NewMap returns the shape of a map from key to val.
func NewMap(key, val *Shape) *Shape {
	return &Shape{Kind: Map, Key: key, Value: val, sig: "{" + key.sig + val.sig + "}"}
}

// NewStruct returns the shape of a struct with the given ordered fields.
func NewStruct(fields ...*Shape) *Shape {
	var b strings.Builder
	b.WriteByte(byte(Struct))
	for _, f := range fields {
		b.WriteString(string(f.sig))
	}
	b.WriteByte(StructEnd)
	return &Shape{Kind: Struct, Fields: fields, sig: Signature(b.String())}
}

// Annotated returns a copy of the struct shape s carrying a type name and
// field names. The canonical signature is unchanged.
func (s *Shape) Annotated(name string, fieldNames ...string) *Shape {
	cp := *s
	cp.Name = name
	cp.FieldNames = append([]string(nil), fieldNames...)
	return &cp
}

// Signature returns the canonical signature of s without annotations. The
// result is cached at construction so it costs nothing to report.
func (s *Shape) Signature() Signature { return s.sig }

// String returns the signature including struct annotations.
func (s *Shape) String() string {
	var b strings.Builder
	s.write(&b)
	return b.String()
}

func (s *Shape) write(b *strings.Builder) {
	switch s.Kind {
	case List:
		b.WriteByte(byte(List))
		s.Elem.write(b)
		b.WriteByte(ListEnd)
	case Map:
		b.WriteByte(byte(Map))
		s.Key.write(b)
		s.Value.write(b)
		b.WriteByte(MapEnd)
	case Struct:
		b.WriteByte(byte(Struct))
		for _, f := range s.Fields {
			f.write(b)
		}
		b.WriteByte(StructEnd)
		if s.Name != "" || len(s.FieldNames) > 0 {
			b.WriteByte(AnnotationBegin)
			b.WriteString(s.Name)
			for _, n := range s.FieldNames {
				b.WriteByte(',')
				b.WriteString(n)
			}
			b.WriteByte(AnnotationEnd)
		}
	default:
		b.WriteByte(byte(s.Kind))
	}
}

// Equal reports whether s and o describe the same shape.
func (s *Shape) Equal(o *Shape) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.sig == o.sig
}

// ListOf returns the signature of a list of elem.
func ListOf(elem Signature) Signature { return "[" + elem + "]" }

// MapOf returns the signature of a map from key to val.
func MapOf(key, val Signature) Signature { return "{" + key + val + "}" }

// StructOf returns the signature of a struct with the given ordered fields.
func StructOf(fields ...Signature) Signature {
	var b strings.Builder
	b.WriteByte(byte(Struct))
	for _, f := range fields {
		b.WriteString(string(f))
	}
	b.WriteByte(StructEnd)
	return Signature(b.String())
}

// Canonical strips annotations from s. Malformed input is returned unchanged
// together with the parse error.
func Canonical(s Signature) (Signature, error) {
	shape, err := Parse(string(s))
	if err != nil {
		return s, err
	}
	return shape.Signature(), nil
}

// Equal reports whether a and b describe the same shape. Annotations are
// ignored. Unparseable signatures are compared as plain strings.
func Equal(a, b Signature) bool {
	if a == b {
		return true
	}
	ca, errA := Canonical(a)
	cb, errB := Canonical(b)
	if errA != nil || errB != nil {
		return false
	}
	return ca == cb
}
