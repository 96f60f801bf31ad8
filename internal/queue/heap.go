package queue

import (
	"github.com/PlanetLumi/TicketSystem/internal/access"
	"github.com/PlanetLumi/TicketSystem/internal/domain"
	apperrors "github.com/PlanetLumi/TicketSystem/pkg/util"
)

// heapStore is a slice-backed binary min-heap of tickets keyed by Priority,
// with an id -> slot side index kept in lockstep with every swap.
//
// heapStore is not safe for concurrent use. Queue serializes access.
type heapStore struct {
	items    []*domain.Ticket
	position map[int64]int
	capacity int // 0 means unbounded
}

func newHeapStore(capacity int) *heapStore {
	if capacity < 0 {
		capacity = 0
	}
	return &heapStore{
		items:    make([]*domain.Ticket, 0, initialSlots(capacity)),
		position: make(map[int64]int),
		capacity: capacity,
	}
}

func initialSlots(capacity int) int {
	if capacity > 0 && capacity < 64 {
		return capacity
	}
	return 64
}

func (h *heapStore) len() int { return len(h.items) }

// full reports whether an add would exceed the configured bound.
func (h *heapStore) full() bool {
	return h.capacity > 0 && len(h.items) >= h.capacity
}

// add appends t at the tail and sifts it up.
func (h *heapStore) add(t *domain.Ticket) error {
	if h.full() {
		return apperrors.NewCapacityExceeded(h.capacity)
	}
	if _, exists := h.position[t.ID]; exists {
		return apperrors.NewDuplicateID(t.ID)
	}
	h.items = append(h.items, t)
	i := len(h.items) - 1
	h.position[t.ID] = i
	h.siftUp(i)
	return nil
}

func (h *heapStore) peek() (*domain.Ticket, bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return h.items[0], true
}

// findByID returns the slot currently holding id.
func (h *heapStore) findByID(id int64) (int, bool) {
	i, ok := h.position[id]
	return i, ok
}

// firstVisible scans slots from index 0 and returns the first ticket the
// caller level may see. This is heap order, not strict priority order.
func (h *heapStore) firstVisible(level domain.SecurityLevel) (int, bool) {
	for i, t := range h.items {
		if access.Visible(*t, level) {
			return i, true
		}
	}
	return -1, false
}

// updatePriority sets a new key and repairs in both directions. Only one
// direction ever moves the ticket; running both is idempotent.
func (h *heapStore) updatePriority(i, priority int) {
	h.items[i].Priority = priority
	i = h.siftUp(i)
	h.siftDown(i)
}

// removeAt swaps slot i with the tail, truncates, and repairs the vacated
// slot. The moved tail may be smaller than its new parent when i is not the
// root, so the repair sifts up as well as down.
func (h *heapStore) removeAt(i int) *domain.Ticket {
	last := len(h.items) - 1
	removed := h.items[i]
	h.swap(i, last)
	h.items[last] = nil
	h.items = h.items[:last]
	delete(h.position, removed.ID)
	if i < last {
		i = h.siftDown(i)
		h.siftUp(i)
	}
	return removed
}

// snapshot copies every ticket in slot order.
func (h *heapStore) snapshot() []domain.Ticket {
	out := make([]domain.Ticket, len(h.items))
	for i, t := range h.items {
		out[i] = *t
	}
	return out
}

func (h *heapStore) maxID() int64 {
	var m int64
	for _, t := range h.items {
		if t.ID > m {
			m = t.ID
		}
	}
	return m
}

func (h *heapStore) siftUp(i int) int {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Priority >= h.items[parent].Priority {
			break
		}
		h.swap(i, parent)
		i = parent
	}
	return i
}

func (h *heapStore) siftDown(i int) int {
	n := len(h.items)
	for {
		l, r, smallest := 2*i+1, 2*i+2, i
		if l < n && h.items[l].Priority < h.items[smallest].Priority {
			smallest = l
		}
		if r < n && h.items[r].Priority < h.items[smallest].Priority {
			smallest = r
		}
		if smallest == i {
			return i
		}
		h.swap(i, smallest)
		i = smallest
	}
}

func (h *heapStore) swap(a, b int) {
	h.items[a], h.items[b] = h.items[b], h.items[a]
	h.position[h.items[a].ID] = a
	h.position[h.items[b].ID] = b
}
