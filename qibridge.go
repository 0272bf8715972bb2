// Package qibridge provides a high-level façade over sessions, services and
// signal channels for talking to a libqi style middleware. Most applications
// interact with this package by:
//  1. Creating a Bridge via New() with a transport dialer and configuration
//  2. Connecting a session and resolving services by name
//  3. Calling methods (session.CallAs) and subscribing to signals
//
// Values crossing the bridge live in a value.Arena and carry a type
// signature (see package signature). All defaults are safe for local
// development and testing against transport/loopback.
package qibridge

import (
	"context"
	"errors"

	"github.com/hupe1980/qibridge/logging"
	"github.com/hupe1980/qibridge/metrics"
	"github.com/hupe1980/qibridge/session"
	"github.com/hupe1980/qibridge/transport"
)

// Session is re-exported for callers that only import the façade.
type Session = session.Session

// Config is re-exported for callers that only import the façade.
type Config = session.Config

// Options configures the Bridge instance.
type Options struct {
	// Config is handed to every session. Defaults to session.DefaultConfig.
	Config session.Config

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Metrics is shared by every session. Nil disables instrumentation.
	Metrics *metrics.Metrics
}

// Bridge opens sessions through one dialer with shared configuration.
type Bridge struct {
	opts   Options
	dialer transport.Dialer
}

// New creates a Bridge dialing through dialer.
func New(dialer transport.Dialer, optFns ...func(o *Options)) *Bridge {
	opts := Options{
		Config: session.DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bridge{opts: opts, dialer: dialer}
}

// Config returns the configuration sessions are opened with.
func (b *Bridge) Config() Config { return b.opts.Config }

// Connect opens a new session.
func (b *Bridge) Connect(ctx context.Context) (*Session, error) {
	return session.Connect(ctx, func(o *session.Options) {
		o.Config = b.opts.Config
		o.Dialer = b.dialer
		o.Logger = b.opts.Logger
		o.Metrics = b.opts.Metrics
	})
}

// WithSession connects, runs fn and closes the session. The error from fn
// and the error from Close are joined.
func (b *Bridge) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	s, err := b.Connect(ctx)
	if err != nil {
		return err
	}
	runErr := fn(ctx, s)
	return errors.Join(runErr, s.Close())
}
