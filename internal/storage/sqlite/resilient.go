package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/mistakeknot/setores/internal/storage"
)

var (
	_ storage.Slot    = (*ResilientStore)(nil)
	_ storage.Stamped = (*ResilientStore)(nil)
	_ storage.Stamped = (*Store)(nil)
)

// ResilientStore wraps Store with RetryOnBusy behind a CircuitBreaker, so a
// wedged database fails fast instead of stalling every request.
type ResilientStore struct {
	inner *Store
	cb    *CircuitBreaker
	retry RetryConfig
}

// NewResilient uses a breaker with threshold 5 and a 30s reset timeout.
func NewResilient(inner *Store) *ResilientStore {
	return NewResilientWithBreaker(inner, NewCircuitBreaker(5, 30*time.Second))
}

func NewResilientWithBreaker(inner *Store, cb *CircuitBreaker) *ResilientStore {
	return &ResilientStore{inner: inner, cb: cb, retry: DefaultRetryConfig()}
}

// CircuitBreakerState returns the breaker state as a string.
func (r *ResilientStore) CircuitBreakerState() string {
	return r.cb.State().String()
}

func (r *ResilientStore) Read(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := r.cb.Execute(func() error {
		return RetryOnBusy(ctx, r.retry, func() error {
			var err error
			out, err = r.inner.Read(ctx, key)
			if errors.Is(err, storage.ErrSlotNotFound) {
				// A missing slot is an answer, not a failure.
				out = nil
				return nil
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, storage.ErrSlotNotFound
	}
	return out, nil
}

func (r *ResilientStore) Write(ctx context.Context, key string, data []byte) error {
	return r.cb.Execute(func() error {
		return RetryOnBusy(ctx, r.retry, func() error {
			return r.inner.Write(ctx, key, data)
		})
	})
}

func (r *ResilientStore) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var out time.Time
	missing := false
	err := r.cb.Execute(func() error {
		return RetryOnBusy(ctx, r.retry, func() error {
			var err error
			out, err = r.inner.UpdatedAt(ctx, key)
			if errors.Is(err, storage.ErrSlotNotFound) {
				missing = true
				return nil
			}
			return err
		})
	})
	if err != nil {
		return time.Time{}, err
	}
	if missing {
		return time.Time{}, storage.ErrSlotNotFound
	}
	return out, nil
}

func (r *ResilientStore) Close() error {
	return r.inner.Close()
}
