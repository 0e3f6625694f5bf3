package agenda

import (
	"context"
	"sync"
	"time"

	"github.com/mistakeknot/setores/internal/storage"
)

// Broadcaster delivers notices to whoever follows an owner's agenda.
type Broadcaster interface {
	Broadcast(owner string, event any)
}

// Registry hands out one Store per owner, opening it on first use.
// Safe for concurrent use.
type Registry struct {
	slot storage.Slot
	bus  Broadcaster
	now  func() time.Time

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates a Registry persisting every owner's agenda in slot.
func NewRegistry(slot storage.Slot, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{slot: slot, now: now, stores: make(map[string]*Store)}
}

// WithBroadcaster routes every store's notices to b.
func (r *Registry) WithBroadcaster(b Broadcaster) *Registry {
	r.bus = b
	return r
}

// Slot returns the storage every agenda is persisted in.
func (r *Registry) Slot() storage.Slot {
	return r.slot
}

// UpdatedAt reports when the owner's agenda was last persisted. It is false
// when the slot does not track write times or nothing was written yet.
func (r *Registry) UpdatedAt(ctx context.Context, owner string) (time.Time, bool) {
	stamped, ok := r.slot.(storage.Stamped)
	if !ok {
		return time.Time{}, false
	}
	t, err := stamped.UpdatedAt(ctx, SlotKey(owner))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// For returns the owner's store.
func (r *Registry) For(ctx context.Context, owner string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.stores[owner]; ok {
		return st
	}
	opts := Options{Key: SlotKey(owner), Now: r.now}
	if r.bus != nil {
		bus := r.bus
		opts.Notifier = NotifierFunc(func(n Notice) { bus.Broadcast(owner, n) })
	}
	st := Open(ctx, r.slot, opts)
	r.stores[owner] = st
	return st
}
