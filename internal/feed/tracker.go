package feed

import (
	"sync"

	"github.com/Additional-Code/menudesk/internal/entity"
)

// Tracker remembers every order id a session has seen. The first observation
// only seeds it, so orders that existed before the session started never
// count as new.
type Tracker struct {
	mu     sync.Mutex
	seen   map[int64]struct{}
	seeded bool
}

// NewTracker returns an empty, unseeded tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[int64]struct{})}
}

// Observe records orders and returns those not seen before, in input order.
// It returns nil on the seeding call.
func (t *Tracker) Observe(orders []entity.Order) []entity.Order {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.seeded {
		for _, o := range orders {
			t.seen[o.ID] = struct{}{}
		}
		t.seeded = true
		return nil
	}

	var fresh []entity.Order
	for _, o := range orders {
		if _, ok := t.seen[o.ID]; ok {
			continue
		}
		t.seen[o.ID] = struct{}{}
		fresh = append(fresh, o)
	}
	return fresh
}

// Seeded reports whether the first observation has happened.
func (t *Tracker) Seeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seeded
}

// Len is the number of order ids remembered.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
