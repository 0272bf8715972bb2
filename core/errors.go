package core

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by qibridge wraps exactly one of these.
var (
	// ErrMalformedSignature is returned for unbalanced brackets, unknown
	// primitive codes or truncated signature strings.
	ErrMalformedSignature = errors.New("malformed signature")
	// ErrUnsupportedSignature is returned for grammar elements that are
	// recognised but not implemented (pointer, varargs, kwargs, optional, ...).
	ErrUnsupportedSignature = errors.New("unsupported signature")
	// ErrConversion is returned when a value is read as a host type that does
	// not match its signature.
	ErrConversion = errors.New("conversion error")
	// ErrShapeMismatch is returned when an element does not fit the declared
	// element signature of its container.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInconsistentElementSignature is returned when a homogeneous list is
	// built from elements of different signatures.
	ErrInconsistentElementSignature = errors.New("inconsistent element signature")
	// ErrEmptyInput is returned when a homogeneous list is built from nothing.
	ErrEmptyInput = errors.New("empty input")
	// ErrIndexOutOfRange is returned for element access outside [0, len).
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrReleased is returned when a value is used after its handle was released.
	ErrReleased = errors.New("value released")

	// ErrConnection is returned when a session cannot be established.
	ErrConnection = errors.New("connection error")
	// ErrNotConnected is returned for operations on a closed or never-connected session.
	ErrNotConnected = errors.New("not connected")
	// ErrNotFound is returned when a service name cannot be resolved.
	ErrNotFound = errors.New("service not found")
	// ErrMethodNotFound is returned when a method or signal name does not exist
	// on the remote object.
	ErrMethodNotFound = errors.New("method not found")
	// ErrArgumentMismatch is returned when a method exists but none of its
	// overloads accepts the argument signatures.
	ErrArgumentMismatch = errors.New("argument mismatch")
	// ErrTransport is returned when the underlying connection fails.
	ErrTransport = errors.New("transport error")
	// ErrCancelled is returned when an in-flight operation is abandoned because
	// its context ended or its session closed.
	ErrCancelled = errors.New("cancelled")
	// ErrRemote is returned when a remote method ran and reported a failure.
	ErrRemote = errors.New("remote failure")
	// ErrClosed is returned when a torn-down signal channel or stopped broker
	// is used.
	ErrClosed = errors.New("closed")
)

// SignatureError describes why a signature string was rejected.
type SignatureError struct {
	Signature string // Offending input
	Pos       int    // Byte offset of the failure
	Msg       string // Human readable reason
	Err       error  // ErrMalformedSignature or ErrUnsupportedSignature
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("%v: %q at %d: %s", e.Err, e.Signature, e.Pos, e.Msg)
}

func (e *SignatureError) Unwrap() error { return e.Err }

// ConversionError reports a read of a value as an incompatible host type.
type ConversionError struct {
	From string // Signature of the value
	To   string // Requested host type
	Msg  string // Optional detail
}

func (e *ConversionError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("conversion error: cannot read %q as %s: %s", e.From, e.To, e.Msg)
	}
	return fmt.Sprintf("conversion error: cannot read %q as %s", e.From, e.To)
}

func (e *ConversionError) Unwrap() error { return ErrConversion }

// IndexError reports an element access outside the container bounds.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index out of range: %d with length %d", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }

// RemoteError is a dispatch failure attributed to a remote member.
type RemoteError struct {
	Service string
	Member  string
	Message string
	Err     error // dispatch error kind
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s.%s: %v: %s", e.Service, e.Member, e.Err, e.Message)
	}
	return fmt.Sprintf("%s.%s: %v", e.Service, e.Member, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

var kindLabels = []struct {
	err   error
	label string
}{
	{ErrMalformedSignature, "malformed_signature"},
	{ErrUnsupportedSignature, "unsupported_signature"},
	{ErrConversion, "conversion"},
	{ErrInconsistentElementSignature, "inconsistent_element_signature"},
	{ErrShapeMismatch, "shape_mismatch"},
	{ErrEmptyInput, "empty_input"},
	{ErrIndexOutOfRange, "index_out_of_range"},
	{ErrReleased, "released"},
	{ErrConnection, "connection"},
	{ErrNotConnected, "not_connected"},
	{ErrNotFound, "not_found"},
	{ErrMethodNotFound, "method_not_found"},
	{ErrArgumentMismatch, "argument_mismatch"},
	{ErrTransport, "transport"},
	{ErrRemote, "remote"},
	{ErrCancelled, "cancelled"},
	{ErrClosed, "closed"},
}

// KindOf returns a stable, low-cardinality label for err suitable for log
// attributes and metric labels. A nil error is "ok"; errors outside the
// qibridge vocabulary are "unknown". Context errors map to "cancelled".
func KindOf(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kindLabels {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "unknown"
}
