package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/internal/ratelimit"
	"github.com/hupe1980/qibridge/logging"
	"github.com/hupe1980/qibridge/metrics"
	"github.com/hupe1980/qibridge/signal"
	"github.com/hupe1980/qibridge/transport"
)

// Options configures Connect using the functional options pattern.
type Options struct {
	// Config is the connection configuration. Defaults to DefaultConfig.
	Config Config
	// Dialer opens the transport connection. Required.
	Dialer transport.Dialer
	// Logger defaults to logging.NoOpLogger. A *logging.BridgeLogger is
	// tagged with the session id and endpoint.
	Logger logging.Logger
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// Session is one live connection to the middleware.
//
// IsConnected is true from a successful Connect until Close or until the
// transport reports the connection lost. Closing cancels every in-flight
// call and tears down every signal channel.
type Session struct {
	id      string
	cfg     Config
	target  transport.Target
	conn    transport.Conn
	logger  logging.Logger
	metrics *metrics.Metrics
	limiter *ratelimit.MapLimiter

	connected atomic.Bool
	closing   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	subMu    sync.Mutex // serialises channel creation
	mu       sync.Mutex
	channels map[string]*signal.Channel
}

// Connect dials the configured endpoint. Failures wrap core.ErrConnection.
func Connect(ctx context.Context, optFns ...func(o *Options)) (*Session, error) {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("%w: no dialer configured", core.ErrConnection)
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	target, err := opts.Config.Target()
	if err != nil {
		return nil, err
	}

	id := core.NewID()
	logger := opts.Logger
	if bl, ok := logger.(*logging.BridgeLogger); ok {
		logger = bl.WithComponent("session").WithSession(id, target.Endpoint)
	}

	start := time.Now()
	conn, err := opts.Dialer.Dial(ctx, target)
	if err != nil {
		logger.Warn("session.connect.failed", "endpoint", target.Endpoint, "error", err)
		if !errors.Is(err, core.ErrConnection) {
			err = fmt.Errorf("%w: %w", core.ErrConnection, err)
		}
		return nil, err
	}

	s := &Session{
		id:       id,
		cfg:      opts.Config,
		target:   target,
		conn:     conn,
		logger:   logger,
		metrics:  opts.Metrics,
		channels: make(map[string]*signal.Channel),
	}
	if rl := opts.Config.RateLimit; rl.RPS > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = ratelimit.New(rl.RPS, burst, 0)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.connected.Store(true)
	go s.watch()

	logger.Info("session.connected", "endpoint", target.Endpoint, "duration", time.Since(start))
	return s, nil
}

// watch marks the session disconnected when the transport drops.
func (s *Session) watch() {
	select {
	case <-s.conn.Done():
		if s.connected.CompareAndSwap(true, false) {
			s.logger.Warn("session.connection.lost", "endpoint", s.target.Endpoint)
			s.cancel()
		}
	case <-s.ctx.Done():
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Endpoint returns the normalised endpoint the session is bound to.
func (s *Session) Endpoint() string { return s.target.Endpoint }

// Config returns the configuration the session was built from.
func (s *Session) Config() Config { return s.cfg }

// IsConnected reports whether the session is live.
func (s *Session) IsConnected() bool { return s.connected.Load() }

// Done is closed once the session is closed or its connection is lost.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Close tears down every signal channel and the connection. A second call
// is a no-op and returns the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.connected.Store(false)
		s.cancel()

		s.mu.Lock()
		channels := make([]*signal.Channel, 0, len(s.channels))
		for _, ch := range s.channels {
			channels = append(channels, ch)
		}
		s.channels = make(map[string]*signal.Channel)
		s.mu.Unlock()

		var errs []error
		for _, ch := range channels {
			if err := ch.Close(context.Background()); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Info("session.closed", "channels", len(channels))
	})
	return s.closeErr
}

// Service resolves a remote object by name.
func (s *Session) Service(ctx context.Context, name string) (*Service, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	obj, err := s.conn.Service(ctx, name)
	if err != nil {
		s.logger.Debug("session.service.failed", "service", name, "error", err)
		return nil, err
	}
	return &Service{session: s, name: name, obj: obj}, nil
}

// Resolve turns an object reference returned by a call into a proxy.
func (s *Session) Resolve(ctx context.Context, ref core.ObjectRef) (*Service, error) {
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: empty object reference", core.ErrNotFound)
	}
	return s.Service(ctx, ref.Service)
}

func (s *Session) check() error {
	if !s.connected.Load() {
		return fmt.Errorf("%w: session %s", core.ErrNotConnected, s.id)
	}
	return nil
}

// callContext derives a context that also ends when the session closes and
// after the configured call timeout.
func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	release := func() {
		stop()
		cancel()
	}
	if s.cfg.CallTimeout > 0 {
		tctx, tcancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		return tctx, func() {
			tcancel()
			release()
		}
	}
	return ctx, release
}

func (s *Session) channel(key string) (*signal.Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[key]
	return ch, ok
}

func (s *Session) forget(key string, ch *signal.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channels[key] == ch {
		delete(s.channels, key)
	}
}

// Channels returns the number of open signal channels.
func (s *Session) Channels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}
