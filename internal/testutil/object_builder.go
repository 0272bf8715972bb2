package testutil

import (
	"errors"

	"github.com/hupe1980/qibridge/signature"
	"github.com/hupe1980/qibridge/transport/loopback"
)

// ObjectBuilder helps declare loopback objects with fluent chaining.
// Example:
//
//	obj, err := NewObjectBuilder("Calc").
//		Method("add", "(ii)", "i", add).
//		Signal("changed", "(si)").
//		Build()
type ObjectBuilder struct {
	obj  *loopback.Object
	errs []error
}

// NewObjectBuilder starts an object named name.
func NewObjectBuilder(name string) *ObjectBuilder {
	return &ObjectBuilder{obj: loopback.NewObject(name)}
}

// Method declares an overload (chainable).
func (b *ObjectBuilder) Method(name string, params, returns signature.Signature, h loopback.Handler) *ObjectBuilder {
	if err := b.obj.AddMethod(name, params, returns, h); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Signal declares a signal (chainable).
func (b *ObjectBuilder) Signal(name string, params signature.Signature) *ObjectBuilder {
	if err := b.obj.AddSignal(name, params); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Build returns the object or every declaration error joined.
func (b *ObjectBuilder) Build() (*loopback.Object, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return b.obj, nil
}

// Register builds the object and publishes it on broker.
func (b *ObjectBuilder) Register(broker *loopback.Broker) (*loopback.Object, error) {
	obj, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err := broker.Register(obj); err != nil {
		return nil, err
	}
	return obj, nil
}
