package storage

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryReadMissing(t *testing.T) {
	st := NewInMemory()
	if _, err := st.Read(context.Background(), "nope"); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestInMemoryWriteCopies(t *testing.T) {
	st := NewInMemory()
	buf := []byte(`[1]`)
	if err := st.Write(context.Background(), "k", buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf[1] = '2'
	got, err := st.Read(context.Background(), "k")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != `[1]` {
		t.Fatalf("expected stored copy to be unaffected, got %s", got)
	}
}
