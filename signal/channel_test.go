package signal

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/signature"
	"github.com/hupe1980/qibridge/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	calls atomic.Int32
}

func (f *fakeSub) ID() string                     { return "sub-1" }
func (f *fakeSub) Signal() string                 { return "signal" }
func (f *fakeSub) Signature() signature.Signature { return "(s)" }
func (f *fakeSub) Unsubscribe(context.Context) error {
	f.calls.Add(1)
	return nil
}

type recordLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordLogger) record(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordLogger) Debug(msg string, _ ...any) { r.record(msg) }
func (r *recordLogger) Info(msg string, _ ...any)  { r.record(msg) }
func (r *recordLogger) Warn(msg string, _ ...any)  { r.record(msg) }
func (r *recordLogger) Error(msg string, _ ...any) { r.record(msg) }

func (r *recordLogger) has(msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

func payload(a *value.Arena, s string) []*value.Value {
	return []*value.Value{a.String(s)}
}

func newChannel(t *testing.T, optFns ...func(o *Options)) *Channel {
	t.Helper()
	c := New("signal", "(s)", optFns...)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func wait(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("handler not invoked")
		return ""
	}
}

func TestDeliverInvokesHandlerOnce(t *testing.T) {
	c := newChannel(t)
	got := make(chan string, 4)
	_, err := c.AddHandler(func(p []*value.Value) {
		s, _ := p[0].ToString()
		got <- s
	})
	require.NoError(t, err)

	a := value.NewArena()
	c.Deliver(payload(a, "hello"))
	a.Release()

	assert.Equal(t, "hello", wait(t, got))
	select {
	case s := <-got:
		t.Fatalf("unexpected second invocation with %q", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeliverIsAsynchronous(t *testing.T) {
	c := newChannel(t)
	release := make(chan struct{})
	got := make(chan string, 1)
	_, err := c.AddHandler(func([]*value.Value) {
		<-release
		got <- "done"
	})
	require.NoError(t, err)

	a := value.NewArena()
	defer a.Release()
	returned := make(chan struct{})
	go func() {
		c.Deliver(payload(a, "x"))
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Deliver blocked on the handler")
	}
	close(release)
	assert.Equal(t, "done", wait(t, got))
}

func TestHandlersRunInOrder(t *testing.T) {
	c := newChannel(t)
	got := make(chan string, 8)
	for _, name := range []string{"first", "second"} {
		name := name
		_, err := c.AddHandler(func(p []*value.Value) {
			s, _ := p[0].ToString()
			got <- name + ":" + s
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Handlers())

	a := value.NewArena()
	defer a.Release()
	c.Deliver(payload(a, "a"))
	c.Deliver(payload(a, "b"))

	want := []string{"first:a", "second:a", "first:b", "second:b"}
	for _, w := range want {
		assert.Equal(t, w, wait(t, got))
	}
}

func TestRemoveHandler(t *testing.T) {
	c := newChannel(t)
	removed := make(chan string, 4)
	kept := make(chan string, 4)
	id, err := c.AddHandler(func([]*value.Value) { removed <- "removed" })
	require.NoError(t, err)
	_, err = c.AddHandler(func([]*value.Value) { kept <- "kept" })
	require.NoError(t, err)

	c.RemoveHandler(id)
	c.RemoveHandler(id)
	c.RemoveHandler("unknown")
	assert.Equal(t, 1, c.Handlers())

	a := value.NewArena()
	defer a.Release()
	c.Deliver(payload(a, "x"))
	assert.Equal(t, "kept", wait(t, kept))
	assert.Empty(t, removed)
}

func TestHandlerAddedLaterMissesEarlierEvents(t *testing.T) {
	c := newChannel(t)
	release := make(chan struct{})
	first := make(chan string, 4)
	_, err := c.AddHandler(func(p []*value.Value) {
		s, _ := p[0].ToString()
		if s == "one" {
			<-release
		}
		first <- s
	})
	require.NoError(t, err)

	a := value.NewArena()
	defer a.Release()
	c.Deliver(payload(a, "one"))
	c.Deliver(payload(a, "two"))

	late := make(chan string, 4)
	_, err = c.AddHandler(func(p []*value.Value) {
		s, _ := p[0].ToString()
		late <- s
	})
	require.NoError(t, err)
	close(release)

	assert.Equal(t, "one", wait(t, first))
	assert.Equal(t, "two", wait(t, first))
	c.Deliver(payload(a, "three"))
	assert.Equal(t, "three", wait(t, late))
	assert.Equal(t, "three", wait(t, first))
	assert.Empty(t, late)
}

func TestHandlerPanicIsContained(t *testing.T) {
	log := &recordLogger{}
	c := newChannel(t, func(o *Options) { o.Logger = log })
	got := make(chan string, 2)
	_, err := c.AddHandler(func([]*value.Value) { panic("boom") })
	require.NoError(t, err)
	_, err = c.AddHandler(func([]*value.Value) { got <- "survivor" })
	require.NoError(t, err)

	a := value.NewArena()
	defer a.Release()
	c.Deliver(payload(a, "x"))
	assert.Equal(t, "survivor", wait(t, got))
	assert.Eventually(t, func() bool { return log.has("signal.handler.panic") }, time.Second, 5*time.Millisecond)
}

func TestPayloadIsReleasedAfterHandlers(t *testing.T) {
	c := newChannel(t)
	kept := make(chan *value.Value, 1)
	_, err := c.AddHandler(func(p []*value.Value) { kept <- p[0] })
	require.NoError(t, err)

	a := value.NewArena()
	c.Deliver(payload(a, "x"))
	assert.Equal(t, 1, a.Release())

	v := <-kept
	assert.Eventually(t, v.Released, time.Second, 5*time.Millisecond)
}

func TestCloseTearsDown(t *testing.T) {
	sub := &fakeSub{}
	closed := 0
	c := New("signal", "(s)", func(o *Options) { o.OnClose = func() { closed++ } })
	c.Bind(sub)

	invoked := make(chan string, 1)
	_, err := c.AddHandler(func([]*value.Value) { invoked <- "late" })
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.True(t, c.Closed())
	assert.Equal(t, int32(1), sub.calls.Load())
	assert.Equal(t, 1, closed)
	assert.Equal(t, 0, c.Handlers())

	_, err = c.AddHandler(func([]*value.Value) {})
	assert.ErrorIs(t, err, core.ErrClosed)

	a := value.NewArena()
	defer a.Release()
	c.Deliver(payload(a, "x"))
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("delivery goroutine did not stop")
	}
	assert.Empty(t, invoked)
}

func TestBacklogDropsExcessEvents(t *testing.T) {
	c := newChannel(t, func(o *Options) { o.Backlog = 1 })
	release := make(chan struct{})
	got := make(chan string, 4)
	_, err := c.AddHandler(func(p []*value.Value) {
		s, _ := p[0].ToString()
		if s == "one" {
			<-release
		}
		got <- s
	})
	require.NoError(t, err)

	a := value.NewArena()
	defer a.Release()
	c.Deliver(payload(a, "one"))
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.queue) == 0
	}, time.Second, time.Millisecond)
	c.Deliver(payload(a, "two"))
	c.Deliver(payload(a, "three"))
	close(release)

	assert.Equal(t, "one", wait(t, got))
	assert.Equal(t, "two", wait(t, got))
	select {
	case s := <-got:
		t.Fatalf("dropped event %q was delivered", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAddHandlerRejectsNil(t *testing.T) {
	c := newChannel(t)
	_, err := c.AddHandler(nil)
	assert.ErrorIs(t, err, core.ErrArgumentMismatch)
	assert.Equal(t, "signal", c.Name())
	assert.Equal(t, signature.Signature("(s)"), c.Signature())
}
