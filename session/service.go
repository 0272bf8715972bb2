package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/logging"
	"github.com/hupe1980/qibridge/signal"
	"github.com/hupe1980/qibridge/transport"
	"github.com/hupe1980/qibridge/value"
)

// Service is a proxy for one remote object. Member names are resolved by
// the middleware on every call, so a misspelt name fails only when used.
type Service struct {
	session *Session
	name    string
	obj     transport.Object
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// Session returns the session the service was resolved through.
func (s *Service) Session() *Session { return s.session }

// Call invokes method with args and returns the result allocated in arena
// into. It blocks until the remote side answers.
//
// Unknown methods fail with core.ErrMethodNotFound, arguments no overload
// accepts with core.ErrArgumentMismatch, a broken connection with
// core.ErrTransport and an ended context or closed session with
// core.ErrCancelled. A closed session fails fast with core.ErrNotConnected.
func (s *Service) Call(ctx context.Context, into *value.Arena, method string, args ...value.Valuer) (*value.Value, error) {
	if err := s.session.check(); err != nil {
		return nil, err
	}
	vals := make([]*value.Value, len(args))
	for i, a := range args {
		if a == nil {
			return nil, &core.RemoteError{Service: s.name, Member: method, Err: core.ErrArgumentMismatch,
				Message: fmt.Sprintf("argument %d is nil", i)}
		}
		vals[i] = a.AsValue()
	}

	ctx, cancel := s.session.callContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.call(ctx, method, vals, into)
	dur := time.Since(start)

	s.session.metrics.ObserveCall(s.name, method, dur, err)
	if cl, ok := s.session.logger.(logging.CallLogger); ok {
		cl.LogCall(s.name, method, dur, err)
	} else if err != nil {
		s.session.logger.Warn("service.call.failed", "service", s.name, "method", method, "duration", dur, "error", err)
	}
	return res, err
}

func (s *Service) call(ctx context.Context, method string, args []*value.Value, into *value.Arena) (*value.Value, error) {
	if err := s.session.limiter.Wait(ctx, s.name); err != nil {
		return nil, err
	}
	res, err := s.obj.Call(ctx, method, args, into)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, core.ErrCancelled) {
		return nil, err
	}
	// Closing the session also closes the connection, which the transport
	// may report first.
	if s.session.closing.Load() || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", core.ErrCancelled, err)
	}
	return nil, err
}

// CallAs calls method with host arguments converted by value.Arena.From and
// decodes the result as T. Every value involved is released before it
// returns.
func CallAs[T any](ctx context.Context, svc *Service, method string, args ...any) (T, error) {
	var zero T
	arena := value.NewArena()
	defer arena.Release()

	vals, err := arena.FromAll(args...)
	if err != nil {
		return zero, err
	}
	valuers := make([]value.Valuer, len(vals))
	for i, v := range vals {
		valuers[i] = v
	}
	res, err := svc.Call(ctx, arena, method, valuers...)
	if err != nil {
		return zero, err
	}
	return value.Get[T](res)
}

// Invoke is CallAs for methods whose result is ignored.
func (s *Service) Invoke(ctx context.Context, method string, args ...any) error {
	_, err := CallAs[any](ctx, s, method, args...)
	return err
}

// Subscribe returns the channel for signal, creating and registering it on
// first use. It returns only after the middleware acknowledged the
// registration, so events raised afterwards reach handlers added to the
// channel. Unknown signals fail with core.ErrMethodNotFound.
func (s *Service) Subscribe(ctx context.Context, name string) (*signal.Channel, error) {
	if err := s.session.check(); err != nil {
		return nil, err
	}
	key := s.name + "." + name

	s.session.subMu.Lock()
	defer s.session.subMu.Unlock()
	if ch, ok := s.session.channel(key); ok && !ch.Closed() {
		return ch, nil
	}

	var ch *signal.Channel
	ch = signal.New(name, "", func(o *signal.Options) {
		o.Service = s.name
		o.Backlog = s.session.cfg.DeliveryBacklog
		o.Logger = s.session.logger
		o.Metrics = s.session.metrics
		o.OnClose = func() { s.session.forget(key, ch) }
	})

	ctx, cancel := s.session.callContext(ctx)
	defer cancel()
	start := time.Now()
	sub, err := s.obj.Subscribe(ctx, name, ch.Deliver)
	if err != nil {
		_ = ch.Close(context.Background())
		s.session.logger.Warn("service.subscribe.failed", "service", s.name, "signal", name, "error", err)
		return nil, err
	}
	ch.Bind(sub)
	s.session.metrics.SubscriptionAdded()

	s.session.mu.Lock()
	s.session.channels[key] = ch
	s.session.mu.Unlock()
	if !s.session.IsConnected() {
		_ = ch.Close(context.Background())
		return nil, fmt.Errorf("%w: session closed during subscribe", core.ErrNotConnected)
	}

	s.session.logger.Debug("service.subscribed", "service", s.name, "signal", name, "subscription_id", sub.ID(), "duration", time.Since(start))
	return ch, nil
}

// UnsubscribeAll tears down the channel for signal and its remote
// registration. Unknown signals are ignored.
func (s *Service) UnsubscribeAll(ctx context.Context, name string) error {
	ch, ok := s.session.channel(s.name + "." + name)
	if !ok {
		return nil
	}
	return ch.Close(ctx)
}

// Methods lists the methods the remote object declares.
func (s *Service) Methods(ctx context.Context) ([]transport.Member, error) {
	if err := s.session.check(); err != nil {
		return nil, err
	}
	return s.obj.Methods(ctx)
}

// Signals lists the signals the remote object declares.
func (s *Service) Signals(ctx context.Context) ([]transport.Member, error) {
	if err := s.session.check(); err != nil {
		return nil, err
	}
	return s.obj.Signals(ctx)
}
