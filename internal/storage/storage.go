package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSlotNotFound is returned by Read when nothing was ever written under key.
var ErrSlotNotFound = errors.New("slot not found")

// Slot is a named blob store. The agenda keeps its whole serialized
// collection in a single slot and rewrites it after every change.
type Slot interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}

// Stamped is implemented by slots that record when each key was last written.
type Stamped interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, error)
}

// InMemory is a minimal in-memory slot store for tests and ephemeral runs.
type InMemory struct {
	mu    sync.RWMutex
	slots map[string][]byte
	// WriteErr, when set, makes every Write fail with it.
	WriteErr error
}

func NewInMemory() *InMemory {
	return &InMemory{slots: make(map[string][]byte)}
}

func (m *InMemory) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.slots[key]
	if !ok {
		return nil, ErrSlotNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *InMemory) Write(_ context.Context, key string, data []byte) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.slots[key] = buf
	return nil
}

// Keys lists the slots written so far.
func (m *InMemory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.slots))
	for k := range m.slots {
		out = append(out, k)
	}
	return out
}
