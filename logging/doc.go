// Package logging provides a minimal logging interface and adapters for qibridge.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that sessions, services and signal channels use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - BridgeLogger with session and component context plus call and delivery helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	sess, err := session.Connect(ctx, func(o *session.Options) { o.Logger = logger })
//
// Arguments after the message are slog style key/value pairs.
package logging
