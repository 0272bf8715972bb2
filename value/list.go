package value

import (
	"fmt"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/internal/native"
	"github.com/hupe1980/qibridge/signature"
)

// List is a homogeneous list whose elements all carry the same signature.
// It is backed by a single list value and can be passed wherever a Valuer is
// accepted.
type List[T Valuer] struct {
	value   *Value
	elemSig signature.Signature
}

var _ Valuer = (*List[*Value])(nil)

// NewList builds a list in arena a holding copies of values in order.
//
// The element signature is taken from the first value. An empty input fails
// with core.ErrEmptyInput, since there is nothing to infer it from, and any
// element whose signature differs from the first fails with
// core.ErrInconsistentElementSignature. Nothing is allocated on failure.
func NewList[T Valuer](a *Arena, values ...T) (*List[T], error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: cannot infer the element signature of an empty list", core.ErrEmptyInput)
	}
	var first *signature.Shape
	nodes := make([]*native.Node, len(values))
	for i, v := range values {
		n, err := nodeOf(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if first == nil {
			first = n.Shape
		} else if !first.Equal(n.Shape) {
			return nil, fmt.Errorf("%w: element %d is %q, element 0 is %q",
				core.ErrInconsistentElementSignature, i, n.Shape.Signature(), first.Signature())
		}
		nodes[i] = n.Clone()
	}

	ln := native.NewNode(signature.NewList(first))
	for _, n := range nodes {
		if err := ln.Append(n); err != nil {
			return nil, err
		}
	}
	return &List[T]{value: a.wrap(ln), elemSig: first.Signature()}, nil
}

// EmptyList returns an empty list whose element signature is given
// explicitly.
func EmptyList[T Valuer](a *Arena, elem signature.Signature) (*List[T], error) {
	shape, err := signature.Parse(string(signature.ListOf(elem)))
	if err != nil {
		return nil, err
	}
	return &List[T]{value: a.CreateShape(shape), elemSig: shape.Elem.Signature()}, nil
}

// Len returns the number of elements.
func (l *List[T]) Len() (int, error) { return l.value.Len() }

// Index returns a copy of the i-th element.
func (l *List[T]) Index(i int) (*Value, error) { return l.value.Index(i) }

// SetIndex replaces the i-th element with a copy of elem, which must carry
// the element signature.
func (l *List[T]) SetIndex(i int, elem T) error {
	if err := l.check(elem); err != nil {
		return err
	}
	return l.value.SetIndex(i, elem)
}

// Append adds a copy of elem at the end of the list.
func (l *List[T]) Append(elem T) error {
	if err := l.check(elem); err != nil {
		return err
	}
	return l.value.AddElement(elem)
}

// ElemSignature returns the signature shared by all elements.
func (l *List[T]) ElemSignature() signature.Signature { return l.elemSig }

// Signature returns "[" + ElemSignature() + "]".
func (l *List[T]) Signature() signature.Signature { return l.value.Signature() }

// AsValue returns the backing list value.
func (l *List[T]) AsValue() *Value { return l.value }

// Release frees the backing value.
func (l *List[T]) Release() error { return l.value.Release() }

func (l *List[T]) check(elem T) error {
	if got := elem.Signature(); !signature.Equal(got, l.elemSig) {
		return fmt.Errorf("%w: element is %q, list holds %q", core.ErrInconsistentElementSignature, got, l.elemSig)
	}
	return nil
}
