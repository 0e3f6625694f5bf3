package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/mistakeknot/setores/internal/storage"
)

// Set SETORES_TEST_POSTGRES_DSN to run against a live database.
func openTest(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SETORES_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SETORES_TEST_POSTGRES_DSN not set")
	}
	st, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenRejectsBadDSN(t *testing.T) {
	if _, err := Open(context.Background(), "postgres://%zz"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRoundTrip(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	key := "agenda-events.test-" + uuid.NewString()

	if _, err := st.Read(ctx, key); !errors.Is(err, storage.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
	if err := st.Write(ctx, key, []byte(`[]`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := st.Write(ctx, key, []byte(`[{"id":"x"}]`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := st.Read(ctx, key)
	if err != nil || string(got) != `[{"id":"x"}]` {
		t.Fatalf("read: %q %v", got, err)
	}
}
