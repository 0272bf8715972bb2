// Package transport defines what the bridge consumes from the middleware: a
// dialer producing connections, remote objects that dispatch calls by name
// and acknowledged signal subscriptions.
//
// Implementations own the wire. Package loopback provides an in-process one.
package transport

import (
	"context"

	"github.com/hupe1980/qibridge/signature"
	"github.com/hupe1980/qibridge/value"
)

// Target is everything needed to reach a middleware instance. It is built
// once from session configuration and handed to the Dialer.
type Target struct {
	// Endpoint is a normalised URL as returned by ParseEndpoint.
	Endpoint string
	// SearchPaths lists directories the native binding may load modules from.
	SearchPaths []string
	// NativeModule names the native library backing the connection.
	NativeModule string
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Conn, error)
}

// Conn is one live connection to the middleware.
type Conn interface {
	// Service resolves a remote object by name. Unknown names fail with
	// core.ErrNotFound.
	Service(ctx context.Context, name string) (Object, error)
	// Close releases the connection. Calling it twice is a no-op.
	Close() error
	// Done is closed when the connection is lost or closed.
	Done() <-chan struct{}
}

// Member describes a method or a signal declared by a remote object. Params
// is a struct signature of the argument list; Returns is empty for signals.
type Member struct {
	Name    string
	Params  signature.Signature
	Returns signature.Signature
}

// DeliverFunc receives one signal occurrence. The payload values belong to
// the transport and are only valid until the function returns.
type DeliverFunc func(payload []*value.Value)

// Object is a remote object. Member names are resolved on every call.
type Object interface {
	// Name returns the name the object was resolved under.
	Name() string
	// Call invokes method with args and returns the result allocated in
	// arena into. Unknown methods fail with core.ErrMethodNotFound, a method
	// without an overload accepting the argument signatures with
	// core.ErrArgumentMismatch and connection failures with
	// core.ErrTransport.
	Call(ctx context.Context, method string, args []*value.Value, into *value.Arena) (*value.Value, error)
	// Subscribe registers deliver for signal and returns once the
	// registration is acknowledged by the middleware.
	Subscribe(ctx context.Context, signal string, deliver DeliverFunc) (Subscription, error)
	// Methods lists the declared methods, one entry per overload.
	Methods(ctx context.Context) ([]Member, error)
	// Signals lists the declared signals.
	Signals(ctx context.Context) ([]Member, error)
}

// Subscription is an acknowledged signal registration.
type Subscription interface {
	ID() string
	Signal() string
	// Signature is the struct signature of the payload.
	Signature() signature.Signature
	// Unsubscribe removes the registration. No delivery starts after it
	// returns. Calling it twice is a no-op.
	Unsubscribe(ctx context.Context) error
}
