package signature

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hupe1980/qibridge/core"
)

// Valuer is implemented by host types whose values report their own
// signature, such as dynamic values. Such types map to Dynamic because their
// shape is only known per value.
type Valuer interface {
	Signature() Signature
}

// TagName is the struct tag consulted by FromType. `qi:"-"` skips a field and
// `qi:"name"` renames it in the struct annotation.
const TagName = "qi"

var (
	valuerType    = reflect.TypeOf((*Valuer)(nil)).Elem()
	objectRefType = reflect.TypeOf(core.ObjectRef{})
)

// FromType derives the shape a host type maps to.
//
// Integer and float types map to the code of their exact width; int, uint and
// uintptr are rejected because their width is platform dependent. []byte is
// raw, other slices and arrays are lists, maps are maps and structs map their
// exported fields in declaration order. Pointers map to what they point to.
// Interfaces and Valuer implementations are dynamic, core.ObjectRef is an
// object reference. Everything else, including recursive types, is rejected
// with core.ErrUnsupportedSignature.
func FromType(t reflect.Type) (*Shape, error) {
	return fromType(t, map[reflect.Type]bool{})
}

// Of is a convenience wrapper returning the canonical signature for the
// dynamic type of v.
func Of(v any) (Signature, error) {
	if v == nil {
		return Signature(Void), nil
	}
	if sv, ok := v.(Valuer); ok {
		return sv.Signature(), nil
	}
	shape, err := FromType(reflect.TypeOf(v))
	if err != nil {
		return "", err
	}
	return shape.Signature(), nil
}

func fromType(t reflect.Type, visiting map[reflect.Type]bool) (*Shape, error) {
	if t == nil {
		return Primitive(Void), nil
	}
	if t.Implements(valuerType) {
		return Primitive(Dynamic), nil
	}
	if t == objectRefType {
		return Primitive(Object), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return Primitive(Bool), nil
	case reflect.Int8:
		return Primitive(Int8), nil
	case reflect.Uint8:
		return Primitive(UInt8), nil
	case reflect.Int16:
		return Primitive(Int16), nil
	case reflect.Uint16:
		return Primitive(UInt16), nil
	case reflect.Int32:
		return Primitive(Int32), nil
	case reflect.Uint32:
		return Primitive(UInt32), nil
	case reflect.Int64:
		return Primitive(Int64), nil
	case reflect.Uint64:
		return Primitive(UInt64), nil
	case reflect.Float32:
		return Primitive(Float32), nil
	case reflect.Float64:
		return Primitive(Float64), nil
	case reflect.String:
		return Primitive(String), nil
	case reflect.Interface:
		return Primitive(Dynamic), nil
	case reflect.Ptr:
		return fromType(t.Elem(), visiting)
	}

	if visiting[t] {
		return nil, unsupportedType(t, "recursive type")
	}
	visiting[t] = true
	defer delete(visiting, t)

	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return Primitive(Raw), nil
		}
		elem, err := fromType(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return NewList(elem), nil

	case reflect.Array:
		elem, err := fromType(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return NewList(elem), nil

	case reflect.Map:
		key, err := fromType(t.Key(), visiting)
		if err != nil {
			return nil, err
		}
		val, err := fromType(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return NewMap(key, val), nil

	case reflect.Struct:
		fields := make([]*Shape, 0, t.NumField())
		names := make([]string, 0, t.NumField())
		for _, sf := range StructFields(t) {
			f, err := fromType(sf.Type, visiting)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", sf.Name, err)
			}
			fields = append(fields, f)
			names = append(names, fieldName(sf))
		}
		return NewStruct(fields...).Annotated(t.Name(), names...), nil
	}

	return nil, unsupportedType(t, "no signature for "+t.Kind().String())
}

// StructFields returns the exported, non-skipped fields of struct type t in
// declaration order. Value encoding and decoding use the same selection.
func StructFields(t reflect.Type) []reflect.StructField {
	out := make([]reflect.StructField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get(TagName) == "-" {
			continue
		}
		out = append(out, sf)
	}
	return out
}

func fieldName(sf reflect.StructField) string {
	if tag := sf.Tag.Get(TagName); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	return sf.Name
}

func unsupportedType(t reflect.Type, msg string) error {
	return fmt.Errorf("%w: host type %s: %s", core.ErrUnsupportedSignature, t, msg)
}
