package loopback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/signature"
	"github.com/hupe1980/qibridge/transport"
	"github.com/hupe1980/qibridge/value"
)

type conn struct {
	broker *Broker
	target transport.Target
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

var _ transport.Conn = (*conn)(nil)

func newConn(b *Broker, target transport.Target) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{broker: b, target: target, ctx: ctx, cancel: cancel, subs: make(map[*subscription]struct{})}
}

func (c *conn) Service(ctx context.Context, name string) (transport.Object, error) {
	if err := c.alive(ctx); err != nil {
		return nil, err
	}
	if _, ok := c.broker.Object(name); !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrNotFound, name)
	}
	return &remoteObject{conn: c, name: name}, nil
}

func (c *conn) Close() error {
	c.drop()
	return nil
}

func (c *conn) Done() <-chan struct{} { return c.ctx.Done() }

// drop tears the connection down and deactivates its subscriptions.
func (c *conn) drop() {
	c.cancel()
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.subs = make(map[*subscription]struct{})
	c.mu.Unlock()
	for _, s := range subs {
		s.deactivate()
	}
	c.broker.removeConn(c)
}

func (c *conn) alive(ctx context.Context) error {
	if c.ctx.Err() != nil {
		return fmt.Errorf("%w: connection to %s lost", core.ErrTransport, c.target.Endpoint)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrCancelled, err)
	}
	return nil
}

// failure classifies why a wait ended early.
func (c *conn) failure(ctx context.Context, what string) error {
	if c.ctx.Err() != nil {
		return fmt.Errorf("%w: connection lost during %s", core.ErrTransport, what)
	}
	return fmt.Errorf("%w: %s: %v", core.ErrCancelled, what, ctx.Err())
}

type remoteObject struct {
	conn *conn
	name string
}

var _ transport.Object = (*remoteObject)(nil)

func (r *remoteObject) Name() string { return r.name }

func (r *remoteObject) object() (*Object, error) {
	obj, ok := r.conn.broker.Object(r.name)
	if !ok {
		return nil, fmt.Errorf("%w: %q is no longer registered", core.ErrNotFound, r.name)
	}
	return obj, nil
}

type outcome struct {
	result *value.Value
	err    error
}

func (r *remoteObject) Call(ctx context.Context, method string, args []*value.Value, into *value.Arena) (*value.Value, error) {
	if err := r.conn.alive(ctx); err != nil {
		return nil, err
	}
	obj, err := r.object()
	if err != nil {
		return nil, err
	}
	ov, err := obj.resolve(method, args)
	if err != nil {
		return nil, err
	}
	if into == nil {
		into = value.NewArena()
	}

	server := value.NewArena()
	params, err := marshal(ov.params, args, server)
	if err != nil {
		server.Release()
		return nil, err
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.conn.ctx, cancel)
	defer stop()

	results := make(chan outcome)
	abandon := make(chan struct{})
	consumed := make(chan struct{})
	go func() {
		defer server.Release()
		res, err := ov.handler(callCtx, &Call{Object: obj, Method: method, Args: params, Arena: server})
		select {
		case results <- outcome{res, err}:
			<-consumed
		case <-abandon:
		}
	}()

	select {
	case out := <-results:
		defer close(consumed)
		if r.conn.ctx.Err() != nil || callCtx.Err() != nil {
			return nil, r.conn.failure(ctx, method)
		}
		return r.finish(method, ov, out, into)
	case <-callCtx.Done():
		close(abandon)
		return nil, r.conn.failure(ctx, r.name+"."+method)
	}
}

func (r *remoteObject) finish(method string, ov overload, out outcome, into *value.Arena) (*value.Value, error) {
	if out.err != nil {
		return nil, &core.RemoteError{Service: r.name, Member: method, Err: core.ErrRemote, Message: out.err.Error()}
	}
	res := out.result
	if res == nil {
		switch ov.returns.Kind {
		case signature.Void:
			return into.Void(), nil
		case signature.Dynamic:
			return into.Dynamic(nil)
		}
		return nil, &core.RemoteError{Service: r.name, Member: method, Err: core.ErrRemote,
			Message: fmt.Sprintf("no result for declared return %q", ov.returns.Signature())}
	}
	switch {
	case ov.returns.Equal(res.Shape()):
		return res.Clone(into)
	case ov.returns.Kind == signature.Dynamic:
		return into.Dynamic(res)
	default:
		return nil, &core.RemoteError{Service: r.name, Member: method, Err: core.ErrRemote,
			Message: fmt.Sprintf("result %q does not match declared return %q", res.Signature(), ov.returns.Signature())}
	}
}

func (r *remoteObject) Subscribe(ctx context.Context, signal string, deliver transport.DeliverFunc) (transport.Subscription, error) {
	if err := r.conn.alive(ctx); err != nil {
		return nil, err
	}
	obj, err := r.object()
	if err != nil {
		return nil, err
	}
	params, err := obj.signal(signal)
	if err != nil {
		return nil, err
	}

	if d := r.conn.broker.currentAckDelay(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, r.conn.failure(ctx, "subscribe "+signal)
		case <-r.conn.ctx.Done():
			return nil, r.conn.failure(ctx, "subscribe "+signal)
		}
	}

	s := &subscription{
		id:      core.NewID(),
		conn:    r.conn,
		service: r.name,
		signal:  signal,
		sig:     params.Signature(),
		deliver: deliver,
		active:  true,
	}
	r.conn.mu.Lock()
	if r.conn.ctx.Err() != nil {
		r.conn.mu.Unlock()
		return nil, r.conn.failure(ctx, "subscribe "+signal)
	}
	r.conn.subs[s] = struct{}{}
	r.conn.mu.Unlock()
	r.conn.broker.addSubscription(s)
	return s, nil
}

func (r *remoteObject) Methods(ctx context.Context) ([]transport.Member, error) {
	if err := r.conn.alive(ctx); err != nil {
		return nil, err
	}
	obj, err := r.object()
	if err != nil {
		return nil, err
	}
	methods, _ := obj.members()
	return methods, nil
}

func (r *remoteObject) Signals(ctx context.Context) ([]transport.Member, error) {
	if err := r.conn.alive(ctx); err != nil {
		return nil, err
	}
	obj, err := r.object()
	if err != nil {
		return nil, err
	}
	_, signals := obj.members()
	return signals, nil
}

type subscription struct {
	id      string
	conn    *conn
	service string
	signal  string
	sig     signature.Signature
	deliver transport.DeliverFunc

	mu     sync.Mutex
	active bool
}

var _ transport.Subscription = (*subscription)(nil)

func (s *subscription) ID() string                     { return s.id }
func (s *subscription) Signal() string                 { return s.signal }
func (s *subscription) Signature() signature.Signature { return s.sig }

func (s *subscription) Unsubscribe(context.Context) error {
	if !s.deactivate() {
		return nil
	}
	s.conn.mu.Lock()
	delete(s.conn.subs, s)
	s.conn.mu.Unlock()
	return nil
}

// deactivate waits for an in-flight delivery and stops further ones. It
// reports whether the subscription was still active.
func (s *subscription) deactivate() bool {
	s.mu.Lock()
	was := s.active
	s.active = false
	s.mu.Unlock()
	if was {
		s.conn.broker.removeSubscription(s)
	}
	return was
}
