package loopback

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/signature"
	"github.com/hupe1980/qibridge/transport"
	"github.com/hupe1980/qibridge/value"
)

// Call is one invocation handed to a Handler.
type Call struct {
	Object *Object
	Method string
	// Args hold one value per declared parameter. Parameters declared as
	// "m" always receive dynamic values.
	Args []*value.Value
	// Arena is where the handler allocates its result. It is released once
	// the caller has received a copy.
	Arena *value.Arena
}

// Handler implements a method. A nil result is read as void.
type Handler func(ctx context.Context, call *Call) (*value.Value, error)

type overload struct {
	params  *signature.Shape
	returns *signature.Shape
	handler Handler
}

// Object is a service hosted by a Broker.
type Object struct {
	name string

	mu      sync.RWMutex
	broker  *Broker
	methods map[string][]overload
	signals map[string]*signature.Shape
}

// NewObject returns an object without members.
func NewObject(name string) *Object {
	return &Object{
		name:    name,
		methods: make(map[string][]overload),
		signals: make(map[string]*signature.Shape),
	}
}

// Name returns the service name.
func (o *Object) Name() string { return o.name }

// Broker returns the broker the object is registered with, or nil.
func (o *Object) Broker() *Broker {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.broker
}

// AddMethod declares an overload of method. params is the struct signature
// of the argument list, e.g. "(sm)"; returns is the result signature.
// Registering the same parameter signature twice replaces the handler.
func (o *Object) AddMethod(method string, params, returns signature.Signature, h Handler) error {
	ps, err := parseParams(params)
	if err != nil {
		return fmt.Errorf("method %s: %w", method, err)
	}
	rs, err := signature.Parse(string(returns))
	if err != nil {
		return fmt.Errorf("method %s: %w", method, err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, ov := range o.methods[method] {
		if ov.params.Equal(ps) {
			o.methods[method][i] = overload{params: ps, returns: rs, handler: h}
			return nil
		}
	}
	o.methods[method] = append(o.methods[method], overload{params: ps, returns: rs, handler: h})
	return nil
}

// AddSignal declares a signal whose payload has the struct signature params.
func (o *Object) AddSignal(name string, params signature.Signature) error {
	ps, err := parseParams(params)
	if err != nil {
		return fmt.Errorf("signal %s: %w", name, err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.signals[name] = ps
	return nil
}

func parseParams(params signature.Signature) (*signature.Shape, error) {
	ps, err := signature.Parse(string(params))
	if err != nil {
		return nil, err
	}
	if ps.Kind != signature.Struct {
		return nil, fmt.Errorf("%w: parameter list %q is not a struct signature", core.ErrShapeMismatch, params)
	}
	return ps, nil
}

// resolve picks the overload of method accepting args.
func (o *Object) resolve(method string, args []*value.Value) (overload, error) {
	o.mu.RLock()
	overloads, ok := o.methods[method]
	o.mu.RUnlock()
	if !ok {
		return overload{}, &core.RemoteError{Service: o.name, Member: method, Err: core.ErrMethodNotFound}
	}
	for _, a := range args {
		if a.Released() {
			return overload{}, fmt.Errorf("%s.%s: %w", o.name, method, core.ErrReleased)
		}
		if !a.Complete() {
			return overload{}, &core.RemoteError{Service: o.name, Member: method, Err: core.ErrArgumentMismatch,
				Message: fmt.Sprintf("argument %q is incomplete", a.Signature())}
		}
	}
	for _, ov := range overloads {
		if accepts(ov.params, args) {
			return ov, nil
		}
	}
	return overload{}, &core.RemoteError{Service: o.name, Member: method, Err: core.ErrArgumentMismatch,
		Message: fmt.Sprintf("no overload accepts %s", argSignature(args))}
}

func (o *Object) signal(name string) (*signature.Shape, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ps, ok := o.signals[name]
	if !ok {
		return nil, &core.RemoteError{Service: o.name, Member: name, Err: core.ErrMethodNotFound, Message: "no such signal"}
	}
	return ps, nil
}

func (o *Object) members() (methods, signals []transport.Member) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for name, ovs := range o.methods {
		for _, ov := range ovs {
			methods = append(methods, transport.Member{Name: name, Params: ov.params.Signature(), Returns: ov.returns.Signature()})
		}
	}
	for name, ps := range o.signals {
		signals = append(signals, transport.Member{Name: name, Params: ps.Signature()})
	}
	sortMembers(methods)
	sortMembers(signals)
	return methods, signals
}

func sortMembers(ms []transport.Member) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Name != ms[j].Name {
			return ms[i].Name < ms[j].Name
		}
		return ms[i].Params < ms[j].Params
	})
}

// accepts reports whether args fit params field by field. Dynamic fields
// accept anything.
func accepts(params *signature.Shape, args []*value.Value) bool {
	if len(params.Fields) != len(args) {
		return false
	}
	for i, f := range params.Fields {
		if f.Kind != signature.Dynamic && !f.Equal(args[i].Shape()) {
			return false
		}
	}
	return true
}

func argSignature(args []*value.Value) signature.Signature {
	sigs := make([]signature.Signature, len(args))
	for i, a := range args {
		sigs[i] = a.Signature()
	}
	return signature.StructOf(sigs...)
}

// marshal copies args into arena, wrapping arguments bound to dynamic
// parameters.
func marshal(params *signature.Shape, args []*value.Value, into *value.Arena) ([]*value.Value, error) {
	out := make([]*value.Value, len(args))
	for i, a := range args {
		var (
			v   *value.Value
			err error
		)
		if params.Fields[i].Kind == signature.Dynamic && a.Kind() != signature.Dynamic {
			v, err = into.Dynamic(a)
		} else {
			v, err = a.Clone(into)
		}
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
