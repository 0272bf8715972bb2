// Package value implements the dynamic value: a self-describing, recursively
// typed value (primitive, list, map, struct, object reference or dynamic
// wrapper) that carries arguments and results across the middleware
// boundary.
//
// Every Value owns one handle in its Arena. The arena is the release scope:
//
//	a := value.NewArena()
//	defer a.Release()
//
//	list, err := a.Create("[i]")
//	if err != nil {
//		return err
//	}
//	_ = list.AddElement(a.Int32(42))
//	n, err := value.Get[[]int32](list)
//
// Values can also be released one at a time with Value.Release. Using a value
// after its handle was released fails with core.ErrReleased; nothing is ever
// read from a recycled handle.
//
// Reads are strict: Get, Decode and the To* helpers succeed only when the
// host type matches the signature exactly (width and signedness included).
// The one implicit step is unwrapping a dynamic value to its content.
//
// Values are not safe for concurrent mutation. Concurrent reads are safe.
package value
