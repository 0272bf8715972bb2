package native

import (
	"bytes"
	"fmt"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/signature"
)

// Node is one dynamic value. Only the fields matching Shape.Kind are used:
// Int for signed integers, Uint for unsigned integers, Float for both float
// widths, Elems for list elements, struct fields and map values, Keys for map
// keys and Inner for the content of a dynamic value (nil meaning void).
type Node struct {
	Shape *signature.Shape
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Str   string
	Raw   []byte
	Ref   core.ObjectRef
	Elems []*Node
	Keys  []*Node
	Inner *Node
}

// NewNode returns the zero value for shape. Lists and maps start empty and
// structs start with no fields filled.
func NewNode(shape *signature.Shape) *Node {
	return &Node{Shape: shape}
}

// Kind returns the kind of the node's shape.
func (n *Node) Kind() signature.Kind { return n.Shape.Kind }

// Len returns the element count of lists, the filled field count of structs
// and the entry count of maps. Other kinds report 0.
func (n *Node) Len() int {
	switch n.Kind() {
	case signature.List, signature.Struct, signature.Map:
		return len(n.Elems)
	}
	return 0
}

// Complete reports whether every struct in the tree has all of its fields.
func (n *Node) Complete() bool {
	if n.Kind() == signature.Struct && len(n.Elems) != len(n.Shape.Fields) {
		return false
	}
	for _, e := range n.Elems {
		if !e.Complete() {
			return false
		}
	}
	for _, k := range n.Keys {
		if !k.Complete() {
			return false
		}
	}
	if n.Inner != nil {
		return n.Inner.Complete()
	}
	return true
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Raw != nil {
		cp.Raw = bytes.Clone(n.Raw)
	}
	cp.Elems = cloneAll(n.Elems)
	cp.Keys = cloneAll(n.Keys)
	cp.Inner = n.Inner.Clone()
	return &cp
}

func cloneAll(in []*Node) []*Node {
	if in == nil {
		return nil
	}
	out := make([]*Node, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

// Elem returns the i-th element (list element, struct field or map value).
func (n *Node) Elem(i int) (*Node, error) {
	if err := n.indexable(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(n.Elems) {
		return nil, &core.IndexError{Index: i, Len: len(n.Elems)}
	}
	return n.Elems[i], nil
}

// SetElem replaces the i-th element of a list or struct in place. The new
// element must fit the declared element or field signature.
func (n *Node) SetElem(i int, elem *Node) error {
	if err := n.indexable(); err != nil {
		return err
	}
	if n.Kind() == signature.Map {
		return mismatch(n, "maps are updated by key")
	}
	if i < 0 || i >= len(n.Elems) {
		return &core.IndexError{Index: i, Len: len(n.Elems)}
	}
	fitted, err := fit(n.slotShape(i), elem)
	if err != nil {
		return err
	}
	n.Elems[i] = fitted
	return nil
}

// Append adds elem to a list, or fills the next field of a struct still
// being built. Mutators take ownership of the nodes passed to them.
func (n *Node) Append(elem *Node) error {
	switch n.Kind() {
	case signature.List:
	case signature.Struct:
		if len(n.Elems) == len(n.Shape.Fields) {
			return mismatch(n, fmt.Sprintf("struct already has all %d fields", len(n.Shape.Fields)))
		}
	default:
		return mismatch(n, "append needs a list or a struct")
	}
	fitted, err := fit(n.slotShape(len(n.Elems)), elem)
	if err != nil {
		return err
	}
	n.Elems = append(n.Elems, fitted)
	return nil
}

// Put inserts or replaces the map entry for key.
func (n *Node) Put(key, val *Node) error {
	if n.Kind() != signature.Map {
		return mismatch(n, "put needs a map")
	}
	k, err := fit(n.Shape.Key, key)
	if err != nil {
		return err
	}
	v, err := fit(n.Shape.Value, val)
	if err != nil {
		return err
	}
	for i, existing := range n.Keys {
		if Equal(existing, k) {
			n.Elems[i] = v
			return nil
		}
	}
	n.Keys = append(n.Keys, k)
	n.Elems = append(n.Elems, v)
	return nil
}

// Lookup returns the map value stored under key.
func (n *Node) Lookup(key *Node) (*Node, bool, error) {
	if n.Kind() != signature.Map {
		return nil, false, mismatch(n, "lookup needs a map")
	}
	k, err := fit(n.Shape.Key, key)
	if err != nil {
		return nil, false, err
	}
	for i, existing := range n.Keys {
		if Equal(existing, k) {
			return n.Elems[i], true, nil
		}
	}
	return nil, false, nil
}

// SetInner stores content in a dynamic node. Nested dynamic content is
// flattened and nil or void content resets it to void.
func (n *Node) SetInner(content *Node) error {
	if n.Kind() != signature.Dynamic {
		return mismatch(n, "only dynamic values wrap content")
	}
	if content != nil && content.Kind() == signature.Dynamic {
		content = content.Inner
	}
	if content != nil && content.Kind() == signature.Void {
		content = nil
	}
	n.Inner = content
	return nil
}

// Scalar reports whether n holds a primitive that is not dynamic.
func (n *Node) Scalar() bool {
	return n.Shape.Kind.IsPrimitive() && n.Shape.Kind != signature.Dynamic
}

func (n *Node) indexable() error {
	switch n.Kind() {
	case signature.List, signature.Struct, signature.Map:
		return nil
	}
	return mismatch(n, "not a container")
}

func (n *Node) slotShape(i int) *signature.Shape {
	if n.Kind() == signature.Struct {
		return n.Shape.Fields[i]
	}
	return n.Shape.Elem
}

// fit checks that elem can occupy a slot declared as want. Anything fits a
// dynamic slot and is wrapped on the way in.
func fit(want *signature.Shape, elem *Node) (*Node, error) {
	if elem == nil {
		return nil, fmt.Errorf("%w: nil element", core.ErrShapeMismatch)
	}
	if want.Equal(elem.Shape) {
		return elem, nil
	}
	if want.Kind == signature.Dynamic {
		wrapped := NewNode(want)
		if err := wrapped.SetInner(elem); err != nil {
			return nil, err
		}
		return wrapped, nil
	}
	return nil, fmt.Errorf("%w: element %q does not fit %q", core.ErrShapeMismatch, elem.Shape.Signature(), want.Signature())
}

func mismatch(n *Node, msg string) error {
	return fmt.Errorf("%w: %q: %s", core.ErrShapeMismatch, n.Shape.Signature(), msg)
}

// Equal reports whether a and b hold observably equal values. Map entries
// compare without regard to insertion order.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !a.Shape.Equal(b.Shape) {
		return false
	}
	switch a.Kind() {
	case signature.Void:
		return true
	case signature.Bool:
		return a.Bool == b.Bool
	case signature.Int8, signature.Int16, signature.Int32, signature.Int64:
		return a.Int == b.Int
	case signature.UInt8, signature.UInt16, signature.UInt32, signature.UInt64:
		return a.Uint == b.Uint
	case signature.Float32, signature.Float64:
		return a.Float == b.Float
	case signature.String:
		return a.Str == b.Str
	case signature.Raw:
		return bytes.Equal(a.Raw, b.Raw)
	case signature.Object:
		return a.Ref == b.Ref
	case signature.Dynamic:
		return Equal(a.Inner, b.Inner)
	case signature.List, signature.Struct:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Equal(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	case signature.Map:
		if len(a.Keys) != len(b.Keys) {
			return false
		}
		for i, k := range a.Keys {
			v, ok, err := b.Lookup(k)
			if err != nil || !ok || !Equal(a.Elems[i], v) {
				return false
			}
		}
		return true
	}
	return false
}
