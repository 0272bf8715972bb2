package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/transport/loopback"
	"github.com/hupe1980/qibridge/value"
)

// MemoryService is the name the memory fixture registers under.
const MemoryService = "ALMemory"

// SubscriberSignal is the signal raised by memory subscriber objects.
const SubscriberSignal = "signal"

// Memory is a key/value store with named events modelled on ALMemory.
//
// Methods: insertData(sm), getData(s) -> m, removeData(s),
// getDataListName() -> [s], declareEvent(s), raiseEvent(sm),
// removeEvent(s), getEventList() -> [s] and subscriber(s) -> o. The object
// returned by subscriber raises SubscriberSignal with payload (m) whenever
// raiseEvent is called for its event.
type Memory struct {
	broker *loopback.Broker

	mu     sync.Mutex
	arena  *value.Arena
	data   map[string]*value.Value
	events map[string]bool
}

// NewMemory registers a memory service on broker.
func NewMemory(broker *loopback.Broker) (*Memory, error) {
	m := &Memory{
		broker: broker,
		arena:  value.NewArena(),
		data:   make(map[string]*value.Value),
		events: make(map[string]bool),
	}
	_, err := NewObjectBuilder(MemoryService).
		Method("insertData", "(sm)", "v", m.insertData).
		Method("getData", "(s)", "m", m.getData).
		Method("removeData", "(s)", "v", m.removeData).
		Method("getDataListName", "()", "[s]", m.getDataListName).
		Method("declareEvent", "(s)", "v", m.declareEvent).
		Method("raiseEvent", "(sm)", "v", m.raiseEvent).
		Method("removeEvent", "(s)", "v", m.removeEvent).
		Method("getEventList", "()", "[s]", m.getEventList).
		Method("subscriber", "(s)", "o", m.subscriber).
		Signal("dataChanged", "(sm)").
		Register(broker)
	if err != nil {
		m.arena.Release()
		return nil, err
	}
	return m, nil
}

// SubscriberName returns the service name of the subscriber object for
// event.
func SubscriberName(event string) string { return MemoryService + "/subscriber/" + event }

// Live returns the number of stored value handles.
func (m *Memory) Live() int { return m.arena.Live() }

// Close releases every stored value.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arena.Release()
	m.data = make(map[string]*value.Value)
}

func (m *Memory) insertData(ctx context.Context, c *loopback.Call) (*value.Value, error) {
	key, err := c.Args[0].ToString()
	if err != nil {
		return nil, err
	}
	if err := m.store(key, c.Args[1]); err != nil {
		return nil, err
	}
	return nil, m.broker.Emit(ctx, MemoryService, "dataChanged", c.Args[0], c.Args[1])
}

func (m *Memory) store(key string, v *value.Value) error {
	cp, err := v.Clone(m.arena)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		_ = old.Release()
	}
	m.data[key] = cp
	return nil
}

func (m *Memory) getData(_ context.Context, c *loopback.Call) (*value.Value, error) {
	key, err := c.Args[0].ToString()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("no data for key %q", key)
	}
	return v.Clone(c.Arena)
}

func (m *Memory) removeData(_ context.Context, c *loopback.Call) (*value.Value, error) {
	key, err := c.Args[0].ToString()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		_ = old.Release()
		delete(m.data, key)
	}
	return nil, nil
}

func (m *Memory) getDataListName(_ context.Context, c *loopback.Call) (*value.Value, error) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	sort.Strings(keys)
	return c.Arena.From(keys)
}

func (m *Memory) declareEvent(_ context.Context, c *loopback.Call) (*value.Value, error) {
	name, err := c.Args[0].ToString()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[name] = true
	return nil, nil
}

func (m *Memory) raiseEvent(ctx context.Context, c *loopback.Call) (*value.Value, error) {
	name, err := c.Args[0].ToString()
	if err != nil {
		return nil, err
	}
	if err := m.store(name, c.Args[1]); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.events[name] = true
	m.mu.Unlock()

	if _, ok := m.broker.Object(SubscriberName(name)); !ok {
		return nil, nil
	}
	return nil, m.broker.Emit(ctx, SubscriberName(name), SubscriberSignal, c.Args[1])
}

func (m *Memory) removeEvent(_ context.Context, c *loopback.Call) (*value.Value, error) {
	name, err := c.Args[0].ToString()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	delete(m.events, name)
	m.mu.Unlock()
	m.broker.Unregister(SubscriberName(name))
	return nil, nil
}

func (m *Memory) getEventList(_ context.Context, c *loopback.Call) (*value.Value, error) {
	m.mu.Lock()
	names := make([]string, 0, len(m.events))
	for k := range m.events {
		names = append(names, k)
	}
	m.mu.Unlock()
	sort.Strings(names)
	return c.Arena.From(names)
}

func (m *Memory) subscriber(_ context.Context, c *loopback.Call) (*value.Value, error) {
	name, err := c.Args[0].ToString()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("empty event name")
	}
	m.mu.Lock()
	m.events[name] = true
	m.mu.Unlock()

	svc := SubscriberName(name)
	if _, ok := m.broker.Object(svc); !ok {
		_, err := NewObjectBuilder(svc).Signal(SubscriberSignal, "(m)").Register(m.broker)
		if err != nil {
			return nil, err
		}
	}
	return c.Arena.Object(core.ObjectRef{Service: svc}), nil
}
