package native

import (
	"fmt"
	"sync"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/signature"
)

// Handle addresses a slot in a Table. The low 32 bits hold the slot index
// plus one and the high 32 bits its generation; the zero Handle is invalid.
type Handle uint64

func makeHandle(index, gen uint32) Handle { return Handle(uint64(gen)<<32 | uint64(index+1)) }

func (h Handle) index() int { return int(uint32(h)) - 1 }

func (h Handle) generation() uint32 { return uint32(h >> 32) }

// String returns a short diagnostic form.
func (h Handle) String() string { return fmt.Sprintf("h%d.%d", h.index(), h.generation()) }

type slot struct {
	gen  uint32
	node *Node
}

// Table is a handle table. Slots are recycled after release with a bumped
// generation so stale handles are detected instead of aliasing.
type Table struct {
	mu    sync.Mutex
	slots []slot
	free  []int
	live  int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Create allocates the zero value for sig. A failed create allocates nothing.
func (t *Table) Create(sig string) (Handle, error) {
	shape, err := signature.Parse(sig)
	if err != nil {
		return 0, err
	}
	return t.Acquire(NewNode(shape)), nil
}

// Acquire takes ownership of n and returns its handle.
func (t *Table) Acquire(n *Node) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.live++
	if last := len(t.free) - 1; last >= 0 {
		idx := t.free[last]
		t.free = t.free[:last]
		t.slots[idx].node = n
		return makeHandle(uint32(idx), t.slots[idx].gen)
	}
	t.slots = append(t.slots, slot{gen: 1, node: n})
	return makeHandle(uint32(len(t.slots)-1), 1)
}

// Node returns the node addressed by h.
func (t *Table) Node(h Handle) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookupLocked(h)
	if err != nil {
		return nil, err
	}
	return s.node, nil
}

// Release frees h and its whole tree. Releasing twice returns core.ErrReleased.
func (t *Table) Release(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookupLocked(h)
	if err != nil {
		return err
	}
	t.releaseLocked(h.index(), s)
	return nil
}

// ReleaseAll frees every live handle and returns how many were freed.
func (t *Table) ReleaseAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := range t.slots {
		if s := &t.slots[i]; s.node != nil {
			t.releaseLocked(i, s)
			n++
		}
	}
	return n
}

// Live returns the number of handles not yet released.
func (t *Table) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

func (t *Table) lookupLocked(h Handle) (*slot, error) {
	idx := h.index()
	if idx < 0 || idx >= len(t.slots) {
		return nil, fmt.Errorf("%w: invalid handle %s", core.ErrReleased, h)
	}
	s := &t.slots[idx]
	if s.node == nil || s.gen != h.generation() {
		return nil, fmt.Errorf("%w: stale handle %s", core.ErrReleased, h)
	}
	return s, nil
}

func (t *Table) releaseLocked(idx int, s *slot) {
	s.node = nil
	s.gen++
	t.free = append(t.free, idx)
	t.live--
}
