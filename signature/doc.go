// Package signature implements the type-signature grammar that describes the
// shape of every dynamic value crossing the host/middleware boundary.
//
// A signature is a compact string: one character per primitive kind, "[e]"
// for a list of e, "{kv}" for a map from k to v and "(f1f2...)" for a struct
// with ordered fields. A struct may carry an annotation "<Name,field,...>"
// right after its closing parenthesis; annotations are informational only and
// are stripped from the canonical form, so two structs with the same field
// signatures are indistinguishable at this layer.
//
// # Primitive codes (table version 1)
//
//	v  void            b  bool
//	c  int8            C  uint8
//	w  int16           W  uint16
//	i  int32           I  uint32
//	l  int64           L  uint64
//	f  float32         d  float64
//	s  string          r  raw bytes
//	m  dynamic (any)   o  object reference
//
// The codes X (unknown), * (pointer), # (varargs), ~ (kwargs), + (optional)
// and _ (none) are reserved by the middleware but not implemented; Parse
// rejects them with core.ErrUnsupportedSignature. Every other character is
// core.ErrMalformedSignature.
package signature
