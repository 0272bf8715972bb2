// Package loopback is an in-process middleware. A Broker hosts objects with
// typed methods and signals and hands out connections implementing the
// transport contracts, which makes it usable wherever a robot would be.
package loopback

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/logging"
	"github.com/hupe1980/qibridge/transport"
	"github.com/hupe1980/qibridge/value"
)

// Options configures a Broker.
type Options struct {
	// Name restricts Dial to the endpoint "loop://<Name>". Empty accepts any
	// endpoint.
	Name string
	// AckDelay is how long subscription registration takes.
	AckDelay time.Duration
	// QueueSize bounds the events waiting for delivery. Emit blocks when
	// the queue is full.
	QueueSize int
	Logger    logging.Logger
}

// Broker is the directory and dispatcher of an in-process middleware.
type Broker struct {
	opts Options

	mu       sync.RWMutex
	objects  map[string]*Object
	conns    map[*conn]struct{}
	subs     map[string][]*subscription // keyed by service + "." + signal
	ackDelay time.Duration
	closed   bool

	events chan event
	quit   chan struct{}
	wg     sync.WaitGroup
}

type event struct {
	subs    []*subscription
	payload []*value.Value
	arena   *value.Arena
}

var _ transport.Dialer = (*Broker)(nil)

// New starts a broker. Close stops it.
func New(optFns ...func(o *Options)) *Broker {
	opts := Options{QueueSize: 256, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	b := &Broker{
		opts:     opts,
		objects:  make(map[string]*Object),
		conns:    make(map[*conn]struct{}),
		subs:     make(map[string][]*subscription),
		ackDelay: opts.AckDelay,
		events:   make(chan event, opts.QueueSize),
		quit:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.dispatch()
	return b
}

// Register publishes obj under its name.
func (b *Broker) Register(obj *Object) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return core.ErrClosed
	}
	if _, exists := b.objects[obj.name]; exists {
		return fmt.Errorf("service %q already registered", obj.name)
	}
	obj.mu.Lock()
	obj.broker = b
	obj.mu.Unlock()
	b.objects[obj.name] = obj
	return nil
}

// Unregister removes the service name and drops its subscriptions.
func (b *Broker) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, name)
	for key, subs := range b.subs {
		kept := subs[:0]
		for _, s := range subs {
			if s.service != name {
				kept = append(kept, s)
			}
		}
		b.subs[key] = kept
	}
}

// Object returns the registered object named name.
func (b *Broker) Object(name string) (*Object, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.objects[name]
	return o, ok
}

// SetAckDelay changes how long subsequent subscriptions wait for their
// acknowledgement.
func (b *Broker) SetAckDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ackDelay = d
}

// Dial opens a connection.
func (b *Broker) Dial(ctx context.Context, target transport.Target) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: dial: %v", core.ErrCancelled, err)
	}
	if b.opts.Name != "" {
		u, err := url.Parse(target.Endpoint)
		if err != nil || u.Scheme != "loop" || u.Host != b.opts.Name {
			return nil, fmt.Errorf("%w: no loopback broker at %q", core.ErrConnection, target.Endpoint)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("%w: broker stopped", core.ErrConnection)
	}
	c := newConn(b, target)
	b.conns[c] = struct{}{}
	b.opts.Logger.Debug("loopback.dial", "endpoint", target.Endpoint)
	return c, nil
}

// Sever drops every open connection as if the network went away. In-flight
// calls fail with core.ErrTransport.
func (b *Broker) Sever() {
	b.mu.Lock()
	conns := make([]*conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()
	for _, c := range conns {
		c.drop()
	}
	b.opts.Logger.Info("loopback.sever", "connections", len(conns))
}

// Conns returns the number of open connections.
func (b *Broker) Conns() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Subscribers returns how many live subscriptions exist for signal on
// service.
func (b *Broker) Subscribers(service, signal string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[subKey(service, signal)])
}

// Emit raises signal on service. The payload is copied and delivered to
// every subscription registered at the time of the call, on the broker's
// delivery goroutine, in emission order.
func (b *Broker) Emit(ctx context.Context, service, signal string, payload ...*value.Value) error {
	obj, ok := b.Object(service)
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrNotFound, service)
	}
	params, err := obj.signal(signal)
	if err != nil {
		return err
	}
	if !accepts(params, payload) {
		return &core.RemoteError{Service: service, Member: signal, Err: core.ErrArgumentMismatch,
			Message: fmt.Sprintf("payload %s does not match %s", argSignature(payload), params.Signature())}
	}

	arena := value.NewArena()
	values, err := marshal(params, payload, arena)
	if err != nil {
		arena.Release()
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		arena.Release()
		return core.ErrClosed
	}
	subs := append([]*subscription(nil), b.subs[subKey(service, signal)]...)
	b.mu.RUnlock()

	ev := event{subs: subs, payload: values, arena: arena}
	select {
	case b.events <- ev:
		return nil
	case <-b.quit:
		arena.Release()
		return core.ErrClosed
	case <-ctx.Done():
		arena.Release()
		return fmt.Errorf("%w: emit %s.%s: %v", core.ErrCancelled, service, signal, ctx.Err())
	}
}

// Close severs all connections and stops the delivery goroutine. Queued
// events are dropped.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.Sever()
	close(b.quit)
	b.wg.Wait()
	for {
		select {
		case ev := <-b.events:
			ev.arena.Release()
		default:
			return nil
		}
	}
}

func (b *Broker) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case <-b.quit:
			return
		case ev := <-b.events:
			for _, s := range ev.subs {
				b.deliver(s, ev.payload)
			}
			ev.arena.Release()
		}
	}
}

func (b *Broker) deliver(s *subscription, payload []*value.Value) {
	defer func() {
		if r := recover(); r != nil {
			b.opts.Logger.Error("loopback.deliver.panic", "service", s.service, "signal", s.signal, "panic", fmt.Sprint(r))
		}
	}()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.deliver(payload)
}

func (b *Broker) addSubscription(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := subKey(s.service, s.signal)
	b.subs[key] = append(b.subs[key], s)
}

func (b *Broker) removeSubscription(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := subKey(s.service, s.signal)
	subs := b.subs[key]
	for i, x := range subs {
		if x == s {
			b.subs[key] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[key]) == 0 {
		delete(b.subs, key)
	}
}

func (b *Broker) removeConn(c *conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, c)
}

func (b *Broker) currentAckDelay() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ackDelay
}

func subKey(service, signal string) string { return service + "." + signal }
