package value

import (
	"bytes"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/internal/native"
	"github.com/hupe1980/qibridge/signature"
)

// Arena is a release scope for values. All values created in an arena share
// its handle table and are freed together by Release.
type Arena struct {
	table *native.Table
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{table: native.NewTable()}
}

// Release frees every value still alive in the arena and returns how many
// handles were freed. The arena stays usable afterwards.
func (a *Arena) Release() int { return a.table.ReleaseAll() }

// Live returns the number of values not yet released. Tests use it to catch
// handle leaks.
func (a *Arena) Live() int { return a.table.Live() }

// Create allocates an empty value of the given signature: zero for
// primitives, void content for dynamic values, no elements for lists and
// maps and no filled fields for structs.
func (a *Arena) Create(sig signature.Signature) (*Value, error) {
	shape, err := signature.Parse(string(sig))
	if err != nil {
		return nil, err
	}
	return a.CreateShape(shape), nil
}

// CreateShape is Create for an already parsed shape.
func (a *Arena) CreateShape(shape *signature.Shape) *Value {
	return a.wrap(native.NewNode(shape))
}

func (a *Arena) wrap(n *native.Node) *Value {
	return &Value{arena: a, h: a.table.Acquire(n), shape: n.Shape}
}

func (a *Arena) scalar(k signature.Kind, set func(n *native.Node)) *Value {
	n := native.NewNode(signature.Primitive(k))
	set(n)
	return a.wrap(n)
}

// Void returns a void value.
func (a *Arena) Void() *Value { return a.scalar(signature.Void, func(*native.Node) {}) }

// Bool returns a bool value.
func (a *Arena) Bool(v bool) *Value {
	return a.scalar(signature.Bool, func(n *native.Node) { n.Bool = v })
}

// Int8 returns an int8 value.
func (a *Arena) Int8(v int8) *Value {
	return a.scalar(signature.Int8, func(n *native.Node) { n.Int = int64(v) })
}

// UInt8 returns a uint8 value.
func (a *Arena) UInt8(v uint8) *Value {
	return a.scalar(signature.UInt8, func(n *native.Node) { n.Uint = uint64(v) })
}

// Int16 returns an int16 value.
func (a *Arena) Int16(v int16) *Value {
	return a.scalar(signature.Int16, func(n *native.Node) { n.Int = int64(v) })
}

// UInt16 returns a uint16 value.
func (a *Arena) UInt16(v uint16) *Value {
	return a.scalar(signature.UInt16, func(n *native.Node) { n.Uint = uint64(v) })
}

// Int32 returns an int32 value.
func (a *Arena) Int32(v int32) *Value {
	return a.scalar(signature.Int32, func(n *native.Node) { n.Int = int64(v) })
}

// UInt32 returns a uint32 value.
func (a *Arena) UInt32(v uint32) *Value {
	return a.scalar(signature.UInt32, func(n *native.Node) { n.Uint = uint64(v) })
}

// Int64 returns an int64 value.
func (a *Arena) Int64(v int64) *Value {
	return a.scalar(signature.Int64, func(n *native.Node) { n.Int = v })
}

// UInt64 returns a uint64 value.
func (a *Arena) UInt64(v uint64) *Value {
	return a.scalar(signature.UInt64, func(n *native.Node) { n.Uint = v })
}

// Float32 returns a float32 value.
func (a *Arena) Float32(v float32) *Value {
	return a.scalar(signature.Float32, func(n *native.Node) { n.Float = float64(v) })
}

// Float64 returns a float64 value.
func (a *Arena) Float64(v float64) *Value {
	return a.scalar(signature.Float64, func(n *native.Node) { n.Float = v })
}

// String returns a string value.
func (a *Arena) String(v string) *Value {
	return a.scalar(signature.String, func(n *native.Node) { n.Str = v })
}

// Raw returns a raw bytes value holding a copy of v.
func (a *Arena) Raw(v []byte) *Value {
	return a.scalar(signature.Raw, func(n *native.Node) { n.Raw = bytes.Clone(v) })
}

// Object returns an object reference value.
func (a *Arena) Object(ref core.ObjectRef) *Value {
	return a.scalar(signature.Object, func(n *native.Node) { n.Ref = ref })
}

// Dynamic returns a dynamic value wrapping a copy of content. A nil content
// yields a dynamic value holding void.
func (a *Arena) Dynamic(content *Value) (*Value, error) {
	n := native.NewNode(signature.Primitive(signature.Dynamic))
	if content != nil {
		cn, err := content.node()
		if err != nil {
			return nil, err
		}
		if err := n.SetInner(cn.Clone()); err != nil {
			return nil, err
		}
	}
	return a.wrap(n), nil
}
