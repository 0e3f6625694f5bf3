package agenda

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mistakeknot/setores/internal/core"
	"github.com/mistakeknot/setores/internal/storage"
)

type recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notices[len(r.notices)-1]
}

func newTestStore(t *testing.T) (*Store, *storage.InMemory, *recorder) {
	t.Helper()
	slot := storage.NewInMemory()
	rec := &recorder{}
	st := Open(context.Background(), slot, Options{Notifier: rec, Now: func() time.Time { return fixedNow }})
	return st, slot, rec
}

func TestAddAssignsIDAndPersists(t *testing.T) {
	st, slot, rec := newTestStore(t)
	item := st.Add(core.AgendaItem{Title: "Reunião", Date: "2025-01-10", Time: "09:00"})
	if item.ID == "" {
		t.Fatal("expected generated id")
	}
	if item.CreatedAt != fixedNow.Format(time.RFC3339) {
		t.Fatalf("expected creation time %s, got %s", fixedNow, item.CreatedAt)
	}
	if got := rec.last().Description; got != "Reunião em 2025-01-10 às 09:00" {
		t.Fatalf("unexpected summary %q", got)
	}

	data, err := slot.Read(context.Background(), DefaultSlotKey)
	if err != nil {
		t.Fatalf("read slot: %v", err)
	}
	persisted, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(persisted) != 1 || persisted[0].ID != item.ID {
		t.Fatalf("expected persisted item, got %+v", persisted)
	}
}

func TestSummaryWithoutTime(t *testing.T) {
	if got := Summary(core.AgendaItem{Title: "Plantão", Date: "2025-01-10"}); got != "Plantão em 2025-01-10" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestUpdateUnknownIDIsNoop(t *testing.T) {
	st, _, rec := newTestStore(t)
	st.Add(core.AgendaItem{ID: "a", Title: "A", Date: "2025-01-10"})
	before := len(rec.notices)
	if st.Update(core.AgendaItem{ID: "missing", Title: "X", Date: "2025-01-10"}) {
		t.Fatal("expected update of missing id to report false")
	}
	if items := st.Items(); len(items) != 1 || items[0].Title != "A" {
		t.Fatalf("agenda changed: %+v", items)
	}
	if len(rec.notices) != before {
		t.Fatal("no notice expected for a missing id")
	}
}

func TestUpdateReplaces(t *testing.T) {
	st, _, _ := newTestStore(t)
	st.Add(core.AgendaItem{ID: "a", Title: "A", Date: "2025-01-10"})
	if !st.Update(core.AgendaItem{ID: "a", Title: "B", Date: "2025-01-11"}) {
		t.Fatal("expected update to find item")
	}
	got, ok := st.Get("a")
	if !ok || got.Title != "B" || got.Date != "2025-01-11" {
		t.Fatalf("unexpected item %+v", got)
	}
}

func TestRemoveReturnsItemForUndo(t *testing.T) {
	st, _, _ := newTestStore(t)
	st.Add(core.AgendaItem{ID: "a", Title: "A", Date: "2025-01-10"})
	st.Add(core.AgendaItem{ID: "b", Title: "B", Date: "2025-01-10"})

	removed, ok := st.Remove("a")
	if !ok || removed.ID != "a" {
		t.Fatalf("expected to remove a, got %+v %v", removed, ok)
	}
	if _, ok := st.Remove("a"); ok {
		t.Fatal("second remove should report false")
	}
	st.Add(removed)
	if len(st.Items()) != 2 {
		t.Fatalf("undo should restore the item, got %+v", st.Items())
	}
}

func TestToggleCompleted(t *testing.T) {
	st, _, _ := newTestStore(t)
	st.Add(core.AgendaItem{ID: "a", Title: "A", Date: "2025-01-10"})
	got, ok := st.ToggleCompleted("a")
	if !ok || !got.Completed {
		t.Fatalf("expected completed, got %+v", got)
	}
	got, _ = st.ToggleCompleted("a")
	if got.Completed {
		t.Fatal("expected second toggle to clear the flag")
	}
	if _, ok := st.ToggleCompleted("missing"); ok {
		t.Fatal("expected missing id to report false")
	}
}

func TestImportIsIdempotent(t *testing.T) {
	st, _, _ := newTestStore(t)
	batch := []core.AgendaItem{{ID: "x", Title: "X", Date: "2025-01-10"}}
	if n := st.Import(batch); n != 1 {
		t.Fatalf("first import: expected 1, got %d", n)
	}
	if n := st.Import(batch); n != 0 {
		t.Fatalf("second import: expected 0, got %d", n)
	}
	items := st.Items()
	if len(items) != 1 || items[0].ID != "x" {
		t.Fatalf("expected single item x, got %+v", items)
	}
}

func TestImportDedupsByIDOnly(t *testing.T) {
	st, _, _ := newTestStore(t)
	st.Add(core.AgendaItem{ID: "x", Title: "Original", Date: "2025-01-10"})
	n := st.Import([]core.AgendaItem{
		{ID: "x", Title: "Changed", Date: "2025-01-12"},
		{ID: "y", Title: "Y", Date: "2025-01-12"},
		{ID: "y", Title: "Y again", Date: "2025-01-12"},
	})
	if n != 1 {
		t.Fatalf("expected 1 inserted, got %d", n)
	}
	got, _ := st.Get("x")
	if got.Title != "Original" {
		t.Fatalf("existing item must be kept, got %+v", got)
	}
}

func TestReopenRoundTrip(t *testing.T) {
	st, slot, _ := newTestStore(t)
	st.Add(core.AgendaItem{ID: "1", Title: "Um", Date: "2025-01-12", Time: "10:00", Duration: dur(30), Category: core.CategoryVisit})
	st.Add(core.AgendaItem{ID: "2", Title: "Dois", Date: "2025-01-10", Notes: "n"})
	st.ToggleCompleted("2")

	reopened := Open(context.Background(), slot, Options{})
	want, got := st.Items(), reopened.Items()
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.ID != g.ID || w.Title != g.Title || w.Date != g.Date || w.Time != g.Time ||
			w.Notes != g.Notes || w.Completed != g.Completed || w.Category != g.Category ||
			w.DurationMinutes() != g.DurationMinutes() || w.CreatedAt != g.CreatedAt {
			t.Fatalf("item %d differs: want %+v, got %+v", i, w, g)
		}
	}
}

func TestReopenKeepsUnparsableCreationTimes(t *testing.T) {
	slot := storage.NewInMemory()
	seed := `[
  {"id": "a", "titulo": "Sem data", "data": "2025-01-10", "criadoEm": ""},
  {"id": "b", "titulo": "Legado", "data": "2025-01-11", "criadoEm": "ontem"},
  {"id": "c", "titulo": "Normal", "data": "2025-01-12", "criadoEm": "2025-01-01T00:00:00.123-03:00"}
]`
	if err := slot.Write(context.Background(), DefaultSlotKey, []byte(seed)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	st := Open(context.Background(), slot, Options{})
	items := st.Items()
	if len(items) != 3 {
		t.Fatalf("one odd timestamp must not discard the agenda, got %+v", items)
	}
	if items[1].CreatedAt != "ontem" || items[2].CreatedAt != "2025-01-01T00:00:00.123-03:00" {
		t.Fatalf("timestamps must be kept verbatim, got %+v", items)
	}

	st.ToggleCompleted("c")
	reopened := Open(context.Background(), slot, Options{})
	if got := reopened.Items(); len(got) != 3 || got[0].CreatedAt != "" || got[1].CreatedAt != "ontem" {
		t.Fatalf("rewrite changed timestamps: %+v", got)
	}
}

func TestOpenToleratesCorruptState(t *testing.T) {
	slot := storage.NewInMemory()
	if err := slot.Write(context.Background(), DefaultSlotKey, []byte(`{"not":"a list"`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	st := Open(context.Background(), slot, Options{})
	if len(st.Items()) != 0 {
		t.Fatalf("expected empty agenda, got %+v", st.Items())
	}
}

func TestWriteFailureKeepsMemoryState(t *testing.T) {
	slot := storage.NewInMemory()
	slot.WriteErr = errors.New("disk full")
	st := Open(context.Background(), slot, Options{})
	st.Add(core.AgendaItem{ID: "a", Title: "A", Date: "2025-01-10"})
	if len(st.Items()) != 1 {
		t.Fatal("mutation must survive a failed write")
	}
}

func TestStoreConflictsAndGroups(t *testing.T) {
	st, _, _ := newTestStore(t)
	st.Add(core.AgendaItem{ID: "a", Title: "A", Date: "2025-01-10", Time: "09:00", Duration: dur(90)})
	st.Add(core.AgendaItem{ID: "b", Title: "B", Date: "2025-01-10", Time: "10:00"})
	st.Add(core.AgendaItem{ID: "c", Title: "C", Date: "2025-01-11"})

	if got := st.Conflicts(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
	groups := st.Groups(Filter{Range: RangeWeek})
	if len(groups) != 2 || len(groups[0].Items) != 2 {
		t.Fatalf("unexpected groups %+v", groups)
	}
}

func TestRegistryIsolatesOwners(t *testing.T) {
	slot := storage.NewInMemory()
	reg := NewRegistry(slot, func() time.Time { return fixedNow })
	reg.For(context.Background(), "ana").Add(core.AgendaItem{ID: "a", Title: "A", Date: "2025-01-10"})
	if len(reg.For(context.Background(), "bruno").Items()) != 0 {
		t.Fatal("owners must not share items")
	}
	if reg.For(context.Background(), "ana") != reg.For(context.Background(), "ana") {
		t.Fatal("expected the same store per owner")
	}
	if _, err := slot.Read(context.Background(), SlotKey("ana")); err != nil {
		t.Fatalf("expected ana's slot to be written: %v", err)
	}
}

func TestExportCSVAndJSON(t *testing.T) {
	items := []core.AgendaItem{
		{ID: "a", Title: "Reunião, geral", Date: "2025-01-10", Time: "09:00", Duration: dur(90), Completed: true},
		{ID: "b", Title: "Plantão", Date: "2025-01-11"},
	}
	var csvBuf bytes.Buffer
	if err := WriteCSV(&csvBuf, items, time.UTC); err != nil {
		t.Fatalf("csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(lines))
	}
	if !strings.Contains(lines[1], `"Reunião, geral"`) || !strings.Contains(lines[1], "10:30") {
		t.Fatalf("unexpected row %q", lines[1])
	}

	var jsonBuf bytes.Buffer
	if err := WriteJSON(&jsonBuf, items); err != nil {
		t.Fatalf("json: %v", err)
	}
	back, err := ReadJSON(&jsonBuf)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(back) != 2 || back[0].DurationMinutes() != 90 || back[1].Duration != nil {
		t.Fatalf("unexpected round trip %+v", back)
	}
}

func TestReplaceRestoresSnapshot(t *testing.T) {
	st, slot, _ := newTestStore(t)
	a := st.Add(core.AgendaItem{Title: "A", Date: "2025-01-10"})
	snapshot := st.Items()
	st.Add(core.AgendaItem{Title: "B", Date: "2025-01-11"})
	st.Remove(a.ID)

	st.Replace(snapshot)
	items := st.Items()
	if len(items) != 1 || items[0].ID != a.ID {
		t.Fatalf("expected snapshot restored, got %+v", items)
	}

	reopened := Open(context.Background(), slot, Options{Now: func() time.Time { return fixedNow }})
	if got := reopened.Items(); len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("replace should persist, got %+v", got)
	}
}

func TestReplaceFillsIDsAndDropsDuplicates(t *testing.T) {
	st, _, rec := newTestStore(t)
	st.Add(core.AgendaItem{ID: "old", Title: "Antigo", Date: "2025-01-09"})

	n := st.Replace([]core.AgendaItem{
		{ID: "x", Title: "Primeiro", Date: "2025-01-10"},
		{Title: "Sem id", Date: "2025-01-11"},
		{ID: "x", Title: "Repetido", Date: "2025-01-12"},
	})
	if n != 2 {
		t.Fatalf("expected 2 kept, got %d", n)
	}
	items := st.Items()
	if len(items) != 2 || items[0].Title != "Primeiro" || items[1].ID == "" {
		t.Fatalf("unexpected collection %+v", items)
	}
	if items[1].CreatedAt != fixedNow.Format(time.RFC3339) {
		t.Fatalf("expected stamped creation time, got %q", items[1].CreatedAt)
	}
	if _, ok := st.Get("old"); ok {
		t.Fatal("replace must drop items not in the new collection")
	}
	if n := rec.last(); n.Type != core.EventAgendaReplaced || n.Count != 2 {
		t.Fatalf("unexpected notice %+v", n)
	}
}

func TestAddIfAbsentRejectsExistingID(t *testing.T) {
	st, _, _ := newTestStore(t)
	if _, ok := st.AddIfAbsent(core.AgendaItem{ID: "x", Title: "Original", Date: "2025-01-10"}); !ok {
		t.Fatal("first add should succeed")
	}
	if _, ok := st.AddIfAbsent(core.AgendaItem{ID: "x", Title: "Outro", Date: "2025-01-11"}); ok {
		t.Fatal("second add with the same id should fail")
	}
	if got, _ := st.Get("x"); got.Title != "Original" {
		t.Fatalf("existing item must be kept, got %+v", got)
	}
}

func TestAddIfAbsentConcurrent(t *testing.T) {
	st, _, _ := newTestStore(t)
	const workers = 16
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, ok := st.AddIfAbsent(core.AgendaItem{ID: "dup", Title: fmt.Sprint("t", i), Date: "2025-01-10"}); ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	if n := len(st.Items()); n != 1 {
		t.Fatalf("expected one stored item, got %d", n)
	}
}
