// Package core provides the foundational types shared by every qibridge layer:
//
//   - Error kinds (sentinels) and the typed errors that wrap them
//   - ObjectRef, the host-side identity of a remote object reference value
//   - NewID, the identifier generator used for handlers, subscriptions and calls
//
// The package has no dependencies on the value, session or transport layers so
// that each of them can report failures in the same vocabulary. Callers test
// failures with errors.Is against the sentinels; the typed errors carry detail
// for logging and diagnostics.
package core
