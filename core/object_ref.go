package core

// ObjectRef is the host representation of an object reference value
// (signature "o"). It names a remote object that can be resolved into a
// service proxy through the session that produced it.
type ObjectRef struct {
	Service string `json:"service"`
}

// IsZero reports whether the reference names no object.
func (r ObjectRef) IsZero() bool { return r.Service == "" }

// String returns the referenced service name.
func (r ObjectRef) String() string { return r.Service }
