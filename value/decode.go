package value

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/internal/native"
	"github.com/hupe1980/qibridge/signature"
)

var (
	valuePtrType  = reflect.TypeOf((*Value)(nil))
	objectRefType = reflect.TypeOf(core.ObjectRef{})
)

// Get reads v as the host type T.
//
// The read succeeds only when T matches v's signature exactly: int32 reads
// "i", uint8 reads "C", float32 reads "f", []byte reads "r", []T reads lists
// of T, map[K]V reads maps, structs read structs field by field in
// declaration order and core.ObjectRef reads "o". Dynamic values are
// unwrapped before matching. Reading into *Value copies the value; reading
// into any yields the natural host form (see Value.Natural). Any mismatch is a
// *core.ConversionError; no partial result is returned.
func Get[T any](v Valuer) (T, error) {
	var out T
	if err := Decode(v, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// MustGet is like Get but panics on error.
func MustGet[T any](v Valuer) T {
	out, err := Get[T](v)
	if err != nil {
		panic(err)
	}
	return out
}

// Decode reads v into the value pointed to by target with the rules of Get.
func Decode(v Valuer, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return &core.ConversionError{From: string(v.Signature()), To: fmt.Sprintf("%T", target), Msg: "target must be a non-nil pointer"}
	}
	n, err := nodeOf(v)
	if err != nil {
		return err
	}
	d := decoder{arena: v.AsValue().arena}
	return d.decode(n, rv.Elem())
}

type decoder struct {
	arena *Arena
}

func (d decoder) decode(n *native.Node, rv reflect.Value) error {
	t := rv.Type()
	if t == valuePtrType {
		rv.Set(reflect.ValueOf(d.arena.wrap(n.Clone())))
		return nil
	}
	if t.Kind() == reflect.Interface {
		if t.NumMethod() != 0 {
			return d.mismatch(n, t, "only the empty interface is supported")
		}
		nat := natural(n)
		if nat == nil {
			rv.Set(reflect.Zero(t))
			return nil
		}
		rv.Set(reflect.ValueOf(nat))
		return nil
	}
	if n.Kind() == signature.Dynamic {
		if n.Inner == nil {
			return d.mismatch(n, t, "dynamic value holds void")
		}
		return d.decode(n.Inner, rv)
	}
	if t.Kind() == reflect.Ptr {
		elem := reflect.New(t.Elem())
		if err := d.decode(n, elem.Elem()); err != nil {
			return err
		}
		rv.Set(elem)
		return nil
	}

	want := kindOfType(t)
	if want == 0 || want != n.Kind() {
		return d.mismatch(n, t, "")
	}

	switch want {
	case signature.Bool:
		rv.SetBool(n.Bool)
	case signature.Int8, signature.Int16, signature.Int32, signature.Int64:
		rv.SetInt(n.Int)
	case signature.UInt8, signature.UInt16, signature.UInt32, signature.UInt64:
		rv.SetUint(n.Uint)
	case signature.Float32, signature.Float64:
		rv.SetFloat(n.Float)
	case signature.String:
		rv.SetString(n.Str)
	case signature.Raw:
		rv.SetBytes(bytes.Clone(n.Raw))
	case signature.Object:
		rv.Set(reflect.ValueOf(n.Ref))
	case signature.List:
		return d.decodeList(n, rv)
	case signature.Map:
		return d.decodeMap(n, rv)
	case signature.Struct:
		return d.decodeStruct(n, rv)
	}
	return nil
}

func (d decoder) decodeList(n *native.Node, rv reflect.Value) error {
	t := rv.Type()
	if t.Kind() == reflect.Array {
		if t.Len() != len(n.Elems) {
			return d.mismatch(n, t, fmt.Sprintf("list has %d elements", len(n.Elems)))
		}
		for i, e := range n.Elems {
			if err := d.decode(e, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	out := reflect.MakeSlice(t, len(n.Elems), len(n.Elems))
	for i, e := range n.Elems {
		if err := d.decode(e, out.Index(i)); err != nil {
			return err
		}
	}
	rv.Set(out)
	return nil
}

func (d decoder) decodeMap(n *native.Node, rv reflect.Value) error {
	t := rv.Type()
	out := reflect.MakeMapWithSize(t, len(n.Keys))
	for i, k := range n.Keys {
		kv := reflect.New(t.Key()).Elem()
		if err := d.decode(k, kv); err != nil {
			return err
		}
		vv := reflect.New(t.Elem()).Elem()
		if err := d.decode(n.Elems[i], vv); err != nil {
			return err
		}
		out.SetMapIndex(kv, vv)
	}
	rv.Set(out)
	return nil
}

func (d decoder) decodeStruct(n *native.Node, rv reflect.Value) error {
	t := rv.Type()
	if !n.Complete() {
		return d.mismatch(n, t, "struct is incomplete")
	}
	fields := signature.StructFields(t)
	if len(fields) != len(n.Elems) {
		return d.mismatch(n, t, fmt.Sprintf("struct has %d fields, host type %d", len(n.Elems), len(fields)))
	}
	for i, sf := range fields {
		if err := d.decode(n.Elems[i], rv.FieldByIndex(sf.Index)); err != nil {
			return err
		}
	}
	return nil
}

func (d decoder) mismatch(n *native.Node, t reflect.Type, msg string) error {
	return &core.ConversionError{From: string(n.Shape.Signature()), To: t.String(), Msg: msg}
}

// kindOfType returns the signature kind a non-pointer, non-interface host
// type reads, or 0 when it reads nothing.
func kindOfType(t reflect.Type) signature.Kind {
	if t == objectRefType {
		return signature.Object
	}
	switch t.Kind() {
	case reflect.Bool:
		return signature.Bool
	case reflect.Int8:
		return signature.Int8
	case reflect.Uint8:
		return signature.UInt8
	case reflect.Int16:
		return signature.Int16
	case reflect.Uint16:
		return signature.UInt16
	case reflect.Int32:
		return signature.Int32
	case reflect.Uint32:
		return signature.UInt32
	case reflect.Int64:
		return signature.Int64
	case reflect.Uint64:
		return signature.UInt64
	case reflect.Float32:
		return signature.Float32
	case reflect.Float64:
		return signature.Float64
	case reflect.String:
		return signature.String
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return signature.Raw
		}
		return signature.List
	case reflect.Array:
		return signature.List
	case reflect.Map:
		return signature.Map
	case reflect.Struct:
		return signature.Struct
	}
	return 0
}

func natural(n *native.Node) any {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case signature.Void:
		return nil
	case signature.Bool:
		return n.Bool
	case signature.Int8:
		return int8(n.Int)
	case signature.Int16:
		return int16(n.Int)
	case signature.Int32:
		return int32(n.Int)
	case signature.Int64:
		return n.Int
	case signature.UInt8:
		return uint8(n.Uint)
	case signature.UInt16:
		return uint16(n.Uint)
	case signature.UInt32:
		return uint32(n.Uint)
	case signature.UInt64:
		return n.Uint
	case signature.Float32:
		return float32(n.Float)
	case signature.Float64:
		return n.Float
	case signature.String:
		return n.Str
	case signature.Raw:
		return bytes.Clone(n.Raw)
	case signature.Object:
		return n.Ref
	case signature.Dynamic:
		return natural(n.Inner)
	case signature.List, signature.Struct:
		out := make([]any, len(n.Elems))
		for i, e := range n.Elems {
			out[i] = natural(e)
		}
		return out
	case signature.Map:
		if n.Shape.Key.Kind == signature.String {
			out := make(map[string]any, len(n.Keys))
			for i, k := range n.Keys {
				out[k.Str] = natural(n.Elems[i])
			}
			return out
		}
		out := make(map[any]any, len(n.Keys))
		for i, k := range n.Keys {
			if kk := natural(k); kk != nil && reflect.TypeOf(kk).Comparable() {
				out[kk] = natural(n.Elems[i])
			}
		}
		return out
	}
	return nil
}

// Natural returns v as plain Go values: fixed-width numbers, string, []byte,
// bool, core.ObjectRef, []any for lists and structs, map[string]any for maps
// keyed by strings (map[any]any otherwise, skipping unhashable keys) and nil
// for void. Dynamic values yield their content.
func (v *Value) Natural() (any, error) {
	n, err := v.node()
	if err != nil {
		return nil, err
	}
	return natural(n), nil
}
