package value

import (
	"errors"
	"fmt"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/internal/native"
	"github.com/hupe1980/qibridge/signature"
)

// Valuer is implemented by everything that is backed by a dynamic value:
// *Value itself and typed wrappers such as *List.
type Valuer interface {
	Signature() signature.Signature
	AsValue() *Value
}

// Value is a dynamic value owning one handle in its Arena.
//
// Element reads (Index, Lookup, Keys, Unwrap) return new values holding
// copies; writes (SetIndex, AddElement, Put) copy their argument in, so the
// caller keeps ownership of what it passes.
type Value struct {
	arena *Arena
	h     native.Handle
	shape *signature.Shape
}

var _ Valuer = (*Value)(nil)

// Signature returns the canonical signature of v. It does not touch the
// handle and stays valid after release.
func (v *Value) Signature() signature.Signature { return v.shape.Signature() }

// Shape returns the parsed shape of v.
func (v *Value) Shape() *signature.Shape { return v.shape }

// Kind returns the leading signature code of v.
func (v *Value) Kind() signature.Kind { return v.shape.Kind }

// AsValue returns v.
func (v *Value) AsValue() *Value { return v }

// Arena returns the arena owning v.
func (v *Value) Arena() *Arena { return v.arena }

// Release frees v's handle. A second release returns core.ErrReleased.
func (v *Value) Release() error { return v.arena.table.Release(v.h) }

// Released reports whether v's handle has been freed.
func (v *Value) Released() bool {
	_, err := v.node()
	return errors.Is(err, core.ErrReleased)
}

func (v *Value) node() (*native.Node, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value", core.ErrReleased)
	}
	return v.arena.table.Node(v.h)
}

// Len returns the element count of a list, the number of fields filled so far
// in a struct or the entry count of a map. Other kinds report 0.
func (v *Value) Len() (int, error) {
	n, err := v.node()
	if err != nil {
		return 0, err
	}
	return n.Len(), nil
}

// Complete reports whether every struct inside v has all of its fields.
func (v *Value) Complete() bool {
	n, err := v.node()
	return err == nil && n.Complete()
}

// Index returns a copy of the i-th list element, struct field or map value.
// Out of range indexes fail with a *core.IndexError.
func (v *Value) Index(i int) (*Value, error) {
	n, err := v.node()
	if err != nil {
		return nil, err
	}
	e, err := n.Elem(i)
	if err != nil {
		return nil, err
	}
	return v.arena.wrap(e.Clone()), nil
}

// SetIndex replaces the i-th list element or struct field with a copy of
// elem. The element must have the declared element signature; the container
// never grows or shrinks.
func (v *Value) SetIndex(i int, elem Valuer) error {
	n, en, err := v.pair(elem)
	if err != nil {
		return err
	}
	return n.SetElem(i, en.Clone())
}

// AddElement appends a copy of elem to a list, or fills the next field of a
// struct that is still being built.
func (v *Value) AddElement(elem Valuer) error {
	n, en, err := v.pair(elem)
	if err != nil {
		return err
	}
	return n.Append(en.Clone())
}

// Put stores copies of key and val in a map, replacing an existing entry.
func (v *Value) Put(key, val Valuer) error {
	n, kn, err := v.pair(key)
	if err != nil {
		return err
	}
	vn, err := nodeOf(val)
	if err != nil {
		return err
	}
	return n.Put(kn.Clone(), vn.Clone())
}

// Lookup returns a copy of the map value stored under key.
func (v *Value) Lookup(key Valuer) (*Value, bool, error) {
	n, kn, err := v.pair(key)
	if err != nil {
		return nil, false, err
	}
	e, ok, err := n.Lookup(kn)
	if err != nil || !ok {
		return nil, ok, err
	}
	return v.arena.wrap(e.Clone()), true, nil
}

// Keys returns copies of the map keys in insertion order.
func (v *Value) Keys() ([]*Value, error) {
	n, err := v.node()
	if err != nil {
		return nil, err
	}
	if n.Kind() != signature.Map {
		return nil, fmt.Errorf("%w: %q is not a map", core.ErrShapeMismatch, v.Signature())
	}
	keys := make([]*Value, len(n.Keys))
	for i, k := range n.Keys {
		keys[i] = v.arena.wrap(k.Clone())
	}
	return keys, nil
}

// Unwrap returns a copy of the content of a dynamic value. A dynamic value
// holding nothing unwraps to void. Other kinds fail with core.ErrConversion.
func (v *Value) Unwrap() (*Value, error) {
	n, err := v.node()
	if err != nil {
		return nil, err
	}
	if n.Kind() != signature.Dynamic {
		return nil, &core.ConversionError{From: string(v.Signature()), To: "dynamic"}
	}
	if n.Inner == nil {
		return v.arena.Void(), nil
	}
	return v.arena.wrap(n.Inner.Clone()), nil
}

// SetContent replaces the content of a dynamic value with a copy of content.
func (v *Value) SetContent(content Valuer) error {
	n, cn, err := v.pair(content)
	if err != nil {
		return err
	}
	return n.SetInner(cn.Clone())
}

// Clone copies v into arena into, or into v's own arena when into is nil.
func (v *Value) Clone(into *Arena) (*Value, error) {
	n, err := v.node()
	if err != nil {
		return nil, err
	}
	if into == nil {
		into = v.arena
	}
	return into.wrap(n.Clone()), nil
}

// Equal reports whether v and o hold observably equal values. Released
// values are never equal to anything.
func (v *Value) Equal(o Valuer) bool {
	a, err := v.node()
	if err != nil {
		return false
	}
	b, err := nodeOf(o)
	if err != nil {
		return false
	}
	return native.Equal(a, b)
}

// String renders v for diagnostics.
func (v *Value) String() string {
	n, err := v.node()
	if err != nil {
		return "<released " + string(v.Signature()) + ">"
	}
	return n.String()
}

func (v *Value) pair(other Valuer) (*native.Node, *native.Node, error) {
	n, err := v.node()
	if err != nil {
		return nil, nil, err
	}
	on, err := nodeOf(other)
	if err != nil {
		return nil, nil, err
	}
	return n, on, nil
}

func nodeOf(x Valuer) (*native.Node, error) {
	if x == nil {
		return nil, fmt.Errorf("%w: nil value", core.ErrShapeMismatch)
	}
	return x.AsValue().node()
}
