package value

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/internal/native"
	"github.com/hupe1980/qibridge/signature"
)

// From builds a value from a host value using the type mapping of
// signature.FromType. A Valuer is copied as is; nil becomes void. Map
// entries are stored in key order so equal maps encode identically.
func (a *Arena) From(x any) (*Value, error) {
	if x == nil {
		return a.Void(), nil
	}
	if vx, ok := x.(Valuer); ok {
		return vx.AsValue().Clone(a)
	}
	rv := reflect.ValueOf(x)
	shape, err := signature.FromType(rv.Type())
	if err != nil {
		return nil, err
	}
	n, err := encode(rv, shape)
	if err != nil {
		return nil, err
	}
	return a.wrap(n), nil
}

// FromAll builds one value per host value, releasing what it built if any of
// them fails.
func (a *Arena) FromAll(xs ...any) ([]*Value, error) {
	out := make([]*Value, 0, len(xs))
	for i, x := range xs {
		v, err := a.From(x)
		if err != nil {
			for _, built := range out {
				_ = built.Release()
			}
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func encode(rv reflect.Value, shape *signature.Shape) (*native.Node, error) {
	if shape.Kind == signature.Dynamic {
		return encodeDynamic(rv, shape)
	}
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			rv = reflect.Zero(rv.Type().Elem())
		} else {
			rv = rv.Elem()
		}
		return encode(rv, shape)
	}

	n := native.NewNode(shape)
	switch shape.Kind {
	case signature.Bool:
		n.Bool = rv.Bool()
	case signature.Int8, signature.Int16, signature.Int32, signature.Int64:
		n.Int = rv.Int()
	case signature.UInt8, signature.UInt16, signature.UInt32, signature.UInt64:
		n.Uint = rv.Uint()
	case signature.Float32, signature.Float64:
		n.Float = rv.Float()
	case signature.String:
		n.Str = rv.String()
	case signature.Raw:
		n.Raw = bytes.Clone(rv.Bytes())
	case signature.Object:
		n.Ref = rv.Interface().(core.ObjectRef)
	case signature.List:
		n.Elems = make([]*native.Node, rv.Len())
		for i := range n.Elems {
			e, err := encode(rv.Index(i), shape.Elem)
			if err != nil {
				return nil, err
			}
			n.Elems[i] = e
		}
	case signature.Map:
		if err := encodeMap(n, rv, shape); err != nil {
			return nil, err
		}
	case signature.Struct:
		fields := signature.StructFields(rv.Type())
		n.Elems = make([]*native.Node, len(fields))
		for i, sf := range fields {
			e, err := encode(rv.FieldByIndex(sf.Index), shape.Fields[i])
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", sf.Name, err)
			}
			n.Elems[i] = e
		}
	default:
		return nil, fmt.Errorf("%w: cannot encode %s as %q", core.ErrUnsupportedSignature, rv.Type(), shape.Signature())
	}
	return n, nil
}

func encodeMap(n *native.Node, rv reflect.Value, shape *signature.Shape) error {
	type entry struct{ k, v *native.Node }
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := encode(iter.Key(), shape.Key)
		if err != nil {
			return err
		}
		v, err := encode(iter.Value(), shape.Value)
		if err != nil {
			return err
		}
		entries = append(entries, entry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].k.String() < entries[j].k.String() })
	for _, e := range entries {
		n.Keys = append(n.Keys, e.k)
		n.Elems = append(n.Elems, e.v)
	}
	return nil
}

func encodeDynamic(rv reflect.Value, shape *signature.Shape) (*native.Node, error) {
	dyn := native.NewNode(shape)
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return dyn, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return dyn, nil
	}
	if vx, ok := rv.Interface().(Valuer); ok {
		inner, err := vx.AsValue().node()
		if err != nil {
			return nil, err
		}
		return dyn, dyn.SetInner(inner.Clone())
	}
	innerShape, err := signature.FromType(rv.Type())
	if err != nil {
		return nil, err
	}
	if innerShape.Kind == signature.Dynamic {
		return nil, fmt.Errorf("%w: %s reports its own signature but is not a dynamic value", core.ErrUnsupportedSignature, rv.Type())
	}
	inner, err := encode(rv, innerShape)
	if err != nil {
		return nil, err
	}
	return dyn, dyn.SetInner(inner)
}
