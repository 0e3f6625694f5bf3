package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mistakeknot/setores/internal/agenda"
	"github.com/mistakeknot/setores/internal/auth"
	"github.com/mistakeknot/setores/internal/directory"
	httpapi "github.com/mistakeknot/setores/internal/http"
	"github.com/mistakeknot/setores/internal/storage"
	"github.com/mistakeknot/setores/internal/ws"
)

func newAPIServer(t *testing.T, ring *auth.Keyring) *httptest.Server {
	t.Helper()
	srv, _ := newAPIServerWithHub(t, ring)
	return srv
}

func newAPIServerWithHub(t *testing.T, ring *auth.Keyring) (*httptest.Server, *ws.Hub) {
	t.Helper()
	dir, err := directory.Load("../internal/directory/testdata/setores.json")
	if err != nil {
		t.Fatalf("load directory: %v", err)
	}
	hub := ws.NewHub()
	agendas := agenda.NewRegistry(storage.NewInMemory(), nil).WithBroadcaster(hub)
	svc := httpapi.NewService(dir, agendas)
	srv := httptest.NewServer(httpapi.NewRouter(svc, hub.Handler(), auth.Middleware(ring)))
	t.Cleanup(srv.Close)
	return srv, hub
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClientWithoutServer(t *testing.T) {
	c := New("http://127.0.0.1:1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Statistics(ctx); err == nil {
		t.Fatalf("expected failure without server")
	}
}

func TestClientSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/api/setores" || r.URL.Query().Get("bloco") != "A" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]Setor{{ID: 7, Nome: "Protocolo"}})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithAPIKey(" k1 "))
	got, err := c.Search(testCtx(t), SearchFilters{Bloco: "A"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Nome != "Protocolo" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestDirectoryCalls(t *testing.T) {
	c := New(newAPIServer(t, nil).URL)
	ctx := testCtx(t)

	all, err := c.Search(ctx, SearchFilters{})
	if err != nil || len(all) != 3 {
		t.Fatalf("search all: %d %v", len(all), err)
	}
	found, err := c.Search(ctx, SearchFilters{Query: "paulo"})
	if err != nil || len(found) != 1 || found[0].Slug != "almoxarifado" {
		t.Fatalf("search paulo: %+v %v", found, err)
	}

	s, err := c.Setor(ctx, "dti")
	if err != nil || s.ID != 1 {
		t.Fatalf("setor dti: %+v %v", s, err)
	}
	_, err = c.Setor(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Setor not found" {
		t.Fatalf("expected server message, got %v", err)
	}

	stats, err := c.Statistics(ctx)
	if err != nil || stats.TotalSetores != 3 {
		t.Fatalf("statistics: %+v %v", stats, err)
	}
	opts, err := c.Filters(ctx)
	if err != nil || len(opts.Blocos) != 2 {
		t.Fatalf("filters: %+v %v", opts, err)
	}
	if _, err := c.Recent(ctx, 30); err != nil {
		t.Fatalf("recent: %v", err)
	}
}

func TestAgendaRoundTrip(t *testing.T) {
	c := New(newAPIServer(t, nil).URL, WithOwner("ana"))
	ctx := testCtx(t)

	a, err := c.Add(ctx, ItemInput{Title: "Reunião", Date: "2030-03-04", Time: Ptr("09:00"), Category: Ptr("Reunião")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	b, err := c.Add(ctx, ItemInput{Title: "Visita", Date: "2030-03-04", Time: Ptr("09:30")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	conflicts, err := c.Conflicts(ctx)
	if err != nil || len(conflicts.IDs) != 2 || len(conflicts.Pairs) != 1 {
		t.Fatalf("conflicts: %+v %v", conflicts, err)
	}

	updated, err := c.Update(ctx, b.ID, ItemInput{Time: Ptr("10:00")})
	if err != nil || updated.Time != "10:00" {
		t.Fatalf("update: %+v %v", updated, err)
	}
	conflicts, _ = c.Conflicts(ctx)
	if len(conflicts.IDs) != 0 {
		t.Fatalf("touching items must not conflict: %+v", conflicts)
	}

	toggled, err := c.Toggle(ctx, a.ID)
	if err != nil || !toggled.Completed {
		t.Fatalf("toggle: %+v %v", toggled, err)
	}
	open, err := c.Items(ctx, ItemQuery{HideCompleted: true})
	if err != nil || len(open) != 1 || open[0].ID != b.ID {
		t.Fatalf("items hide completed: %+v %v", open, err)
	}
	groups, err := c.Groups(ctx, ItemQuery{Date: "2030-03-04"})
	if err != nil || len(groups) != 1 || len(groups[0].Items) != 2 {
		t.Fatalf("groups: %+v %v", groups, err)
	}

	removed, err := c.Remove(ctx, a.ID)
	if err != nil || removed.ID != a.ID {
		t.Fatalf("remove: %+v %v", removed, err)
	}
	if _, err := c.Item(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}

	n, err := c.Import(ctx, []AgendaItem{removed, {ID: b.ID, Title: "dup", Date: "2030-03-05"}})
	if err != nil || n != 1 {
		t.Fatalf("import: %d %v", n, err)
	}

	var buf bytes.Buffer
	if err := c.Export(ctx, "csv", &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "ID,Título") {
		t.Fatalf("unexpected csv %q", buf.String())
	}
	if err := c.Export(ctx, "pdf", &buf); err == nil {
		t.Fatal("expected error for unknown format")
	}

	cats, err := c.Categories(ctx)
	if err != nil || len(cats) == 0 {
		t.Fatalf("categories: %v %v", cats, err)
	}

	kept, err := c.Replace(ctx, []AgendaItem{{ID: "r1", Title: "Restaurado", Date: "2030-03-06", Time: "8:00"}})
	if err != nil || kept != 1 {
		t.Fatalf("replace: %d %v", kept, err)
	}
	all, err := c.Items(ctx, ItemQuery{})
	if err != nil || len(all) != 1 || all[0].ID != "r1" || all[0].Time != "08:00" {
		t.Fatalf("items after replace: %+v %v", all, err)
	}
	if all[0].Today || all[0].Past {
		t.Fatalf("2030 item is neither today nor past: %+v", all[0])
	}
	if _, err := c.Replace(ctx, []AgendaItem{{Title: "x", Date: "amanhã"}}); err == nil {
		t.Fatal("expected error for invalid date")
	}
}

func TestAgendaRequiresOwner(t *testing.T) {
	c := New("http://127.0.0.1:1")
	if _, err := c.Items(context.Background(), ItemQuery{}); err == nil {
		t.Fatal("expected error without owner")
	}
}

func TestAgendaForbiddenForOtherOwner(t *testing.T) {
	srv := newAPIServer(t, auth.NewKeyring(false, map[string]string{"k-ana": "ana"}))
	c := New(srv.URL, WithAPIKey("k-ana"), WithOwner("bruno"))
	_, err := c.Items(testCtx(t), ItemQuery{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestWSClientReceivesNotices(t *testing.T) {
	srv, hub := newAPIServerWithHub(t, nil)
	ctx := testCtx(t)

	notices := make(chan Notice, 8)
	wsc := NewWSClient(srv.URL, "ana")
	wsc.OnNotice(FilterNotices(func(n Notice) { notices <- n }, NoticeAdded, NoticeRemoved))
	if err := wsc.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer wsc.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("ana") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	c := New(srv.URL, WithOwner("ana"))
	item, err := c.Add(ctx, ItemInput{Title: "Pessoal", Date: "2030-03-04"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := c.Toggle(ctx, item.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := c.Remove(ctx, item.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	want := []string{NoticeAdded, NoticeRemoved}
	for _, typ := range want {
		select {
		case n := <-notices:
			if n.Type != typ {
				t.Fatalf("expected %s, got %s", typ, n.Type)
			}
			if n.Item == nil || n.Item.ID != item.ID {
				t.Fatalf("notice without item: %+v", n)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s notice", typ)
		}
	}
}

func TestBuildWSURL(t *testing.T) {
	c := NewWSClient("https://setores.example.org", "ana maria")
	got, err := c.buildWSURL()
	if err != nil {
		t.Fatal(err)
	}
	if got != "wss://setores.example.org/ws/agenda/ana%20maria" {
		t.Fatalf("unexpected url %q", got)
	}
	if _, err := NewWSClient("http://x", "").buildWSURL(); err == nil {
		t.Fatal("expected error without owner")
	}
}
