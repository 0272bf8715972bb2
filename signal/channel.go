package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/logging"
	"github.com/hupe1980/qibridge/metrics"
	"github.com/hupe1980/qibridge/signature"
	"github.com/hupe1980/qibridge/transport"
	"github.com/hupe1980/qibridge/value"
)

// Handler receives the payload of one event.
type Handler func(payload []*value.Value)

// HandlerID identifies a registered handler.
type HandlerID string

// Options configures a Channel.
type Options struct {
	// Service is the name of the object raising the signal, used in logs.
	Service string
	// Backlog caps the events waiting for delivery. Zero means no cap;
	// events beyond the cap are dropped and counted.
	Backlog int
	Logger  logging.Logger
	Metrics *metrics.Metrics
	// OnClose runs once after the channel is torn down.
	OnClose func()
}

type entry struct {
	id HandlerID
	h  Handler
}

type pending struct {
	handlers []entry
	payload  []*value.Value
	arena    *value.Arena
}

// Channel is one signal subscription with its handler set.
type Channel struct {
	name string
	sig  signature.Signature
	opts Options

	mu       sync.Mutex
	handlers []entry
	queue    []pending
	sub      transport.Subscription
	closed   bool

	wake chan struct{}
	done chan struct{}
}

// New creates a channel for signal name with payload signature sig and
// starts its delivery goroutine.
func New(name string, sig signature.Signature, optFns ...func(o *Options)) *Channel {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	c := &Channel{
		name: name,
		sig:  sig,
		opts: opts,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go c.run()
	return c
}

// Name returns the signal name.
func (c *Channel) Name() string { return c.name }

// Signature returns the payload signature.
func (c *Channel) Signature() signature.Signature {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sig
}

// Bind attaches the remote registration torn down by Close and adopts its
// payload signature.
// Binding a closed channel unsubscribes immediately.
func (c *Channel) Bind(sub transport.Subscription) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = sub.Unsubscribe(context.Background())
		return
	}
	c.sub = sub
	if s := sub.Signature(); s != "" {
		c.sig = s
	}
	c.mu.Unlock()
}

// AddHandler registers h. It fails with core.ErrClosed after Close.
func (c *Channel) AddHandler(h Handler) (HandlerID, error) {
	if h == nil {
		return "", fmt.Errorf("%w: nil handler", core.ErrArgumentMismatch)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", fmt.Errorf("%w: signal %q", core.ErrClosed, c.name)
	}
	id := HandlerID(core.NewID())
	c.handlers = append(c.handlers, entry{id: id, h: h})
	return id, nil
}

// RemoveHandler unregisters id. Unknown ids are ignored. Once it returns, h
// is not invoked again; an invocation already running is not interrupted.
func (c *Channel) RemoveHandler(id HandlerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.handlers {
		if e.id == id {
			c.handlers = append(c.handlers[:i:i], c.handlers[i+1:]...)
			return
		}
	}
}

// Handlers returns the number of registered handlers.
func (c *Channel) Handlers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

// Closed reports whether the channel was torn down.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Done is closed when the delivery goroutine has exited after Close.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Deliver queues one event. It copies the payload and never blocks on
// handlers.
func (c *Channel) Deliver(payload []*value.Value) {
	arena := value.NewArena()
	values := make([]*value.Value, 0, len(payload))
	for i, p := range payload {
		v, err := p.Clone(arena)
		if err != nil {
			arena.Release()
			c.opts.Logger.Warn("signal.deliver.invalid", "signal", c.name, "index", i, "error", err)
			c.opts.Metrics.ObserveDropped(c.name)
			return
		}
		values = append(values, v)
	}

	c.mu.Lock()
	if c.closed || (c.opts.Backlog > 0 && len(c.queue) >= c.opts.Backlog) {
		closed := c.closed
		c.mu.Unlock()
		arena.Release()
		c.opts.Metrics.ObserveDropped(c.name)
		if !closed {
			c.opts.Logger.Warn("signal.deliver.dropped", "signal", c.name, "backlog", c.opts.Backlog)
		}
		return
	}
	c.queue = append(c.queue, pending{
		handlers: append([]entry(nil), c.handlers...),
		payload:  values,
		arena:    arena,
	})
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Close tears the channel down: queued events are dropped, the remote
// registration is removed and no handler is invoked afterwards. Closing
// twice is a no-op.
func (c *Channel) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	queued := c.queue
	c.queue = nil
	c.handlers = nil
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	for _, p := range queued {
		p.arena.Release()
		c.opts.Metrics.ObserveDropped(c.name)
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}

	var err error
	if sub != nil {
		err = sub.Unsubscribe(ctx)
		c.opts.Metrics.SubscriptionRemoved()
	}
	if c.opts.OnClose != nil {
		c.opts.OnClose()
	}
	c.opts.Logger.Debug("signal.closed", "service", c.opts.Service, "signal", c.name, "dropped", len(queued))
	return err
}

func (c *Channel) run() {
	defer close(c.done)
	for range c.wake {
		for {
			p, ok, closed := c.next()
			if closed {
				return
			}
			if !ok {
				break
			}
			c.dispatch(p)
		}
	}
}

func (c *Channel) next() (pending, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return pending{}, false, true
	}
	if len(c.queue) == 0 {
		return pending{}, false, false
	}
	p := c.queue[0]
	c.queue[0] = pending{}
	c.queue = c.queue[1:]
	return p, true, false
}

func (c *Channel) dispatch(p pending) {
	defer p.arena.Release()
	start := time.Now()
	invoked := 0
	for _, e := range p.handlers {
		if !c.registered(e.id) {
			continue
		}
		c.invoke(e, p.payload)
		invoked++
	}
	c.opts.Metrics.ObserveDelivery(c.name)
	if dl, ok := c.opts.Logger.(logging.DeliveryLogger); ok {
		dl.LogDelivery(c.name, invoked, time.Since(start))
	} else {
		c.opts.Logger.Debug("signal.delivered", "service", c.opts.Service, "signal", c.name, "handler_count", invoked, "duration", time.Since(start))
	}
}

func (c *Channel) registered(id HandlerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	for _, e := range c.handlers {
		if e.id == id {
			return true
		}
	}
	return false
}

func (c *Channel) invoke(e entry, payload []*value.Value) {
	defer func() {
		if r := recover(); r != nil {
			c.opts.Metrics.ObservePanic(c.name)
			c.opts.Logger.Error("signal.handler.panic", "service", c.opts.Service, "signal", c.name, "handler_id", string(e.id), "panic", fmt.Sprint(r))
		}
	}()
	e.h(payload)
}
