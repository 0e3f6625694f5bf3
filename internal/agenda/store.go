package agenda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mistakeknot/setores/internal/core"
	"github.com/mistakeknot/setores/internal/storage"
)

// DefaultSlotKey is the slot the agenda lives in when no owner is given.
const DefaultSlotKey = "agenda-events"

// SlotKey returns the slot an owner's agenda is persisted under.
func SlotKey(owner string) string {
	if owner == "" {
		return DefaultSlotKey
	}
	return DefaultSlotKey + "." + owner
}

// Notice is the human-readable summary of a change, shown to the owner.
type Notice struct {
	Type        core.EventType   `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Item        *core.AgendaItem `json:"item,omitempty"`
	Count       int              `json:"count,omitempty"`
}

// Notifier receives notices after successful mutations.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Options configure a Store.
type Options struct {
	Key      string
	Notifier Notifier
	// Now defaults to time.Now. Its location is used to interpret dates.
	Now func() time.Time
}

// Store owns one agenda. Every mutation rewrites the whole collection to its
// slot. Persistence failures are logged and never returned: the in-memory
// state stays authoritative for the session.
type Store struct {
	mu     sync.Mutex
	items  []core.AgendaItem
	slot   storage.Slot
	key    string
	notify Notifier
	now    func() time.Time
}

// Open loads the agenda from slot. Missing or corrupt state yields an empty
// agenda.
func Open(ctx context.Context, slot storage.Slot, opts Options) *Store {
	s := &Store{
		slot:   slot,
		key:    opts.Key,
		notify: opts.Notifier,
		now:    opts.Now,
	}
	if s.key == "" {
		s.key = DefaultSlotKey
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.items = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) []core.AgendaItem {
	if s.slot == nil {
		return nil
	}
	data, err := s.slot.Read(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrSlotNotFound) {
			log.Printf("agenda: read %s: %v", s.key, err)
		}
		return nil
	}
	items, err := Decode(data)
	if err != nil {
		log.Printf("agenda: discard corrupt %s: %v", s.key, err)
		return nil
	}
	return items
}

// persist must be called with s.mu held.
func (s *Store) persist() {
	if s.slot == nil {
		return
	}
	data, err := Encode(s.items)
	if err != nil {
		log.Printf("agenda: encode %s: %v", s.key, err)
		return
	}
	if err := s.slot.Write(context.Background(), s.key, data); err != nil {
		log.Printf("agenda: write %s: %v", s.key, err)
	}
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Store) emit(n Notice) {
	if s.notify != nil {
		s.notify.Notify(n)
	}
}

// Location is the time zone agenda dates are read in.
func (s *Store) Location() *time.Location {
	return s.now().Location()
}

// Items returns a copy of the collection in insertion order.
func (s *Store) Items() []core.AgendaItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.AgendaItem, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the item with id.
func (s *Store) Get(id string) (core.AgendaItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return core.AgendaItem{}, false
}

// Add appends item, assigning an id and creation time when missing.
func (s *Store) Add(item core.AgendaItem) core.AgendaItem {
	item, _ = s.add(item, false)
	return item
}

// AddIfAbsent is Add for callers that choose the id. It reports false, and
// leaves the agenda untouched, when an item with that id already exists.
// The check and the append happen under one lock.
func (s *Store) AddIfAbsent(item core.AgendaItem) (core.AgendaItem, bool) {
	return s.add(item, true)
}

func (s *Store) add(item core.AgendaItem, unique bool) (core.AgendaItem, bool) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt == "" {
		item.CreatedAt = s.stamp()
	}
	s.mu.Lock()
	if unique && s.indexOf(item.ID) >= 0 {
		s.mu.Unlock()
		return core.AgendaItem{}, false
	}
	s.items = append(s.items, item)
	s.persist()
	s.mu.Unlock()

	added := item
	s.emit(Notice{
		Type:        core.EventAgendaAdded,
		Title:       "Compromisso adicionado",
		Description: Summary(item),
		Item:        &added,
	})
	return item, true
}

// Update replaces the item sharing updated's id. It reports whether one
// existed; an unknown id leaves the agenda untouched.
func (s *Store) Update(updated core.AgendaItem) bool {
	s.mu.Lock()
	i := s.indexOf(updated.ID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.items[i] = updated
	s.persist()
	s.mu.Unlock()

	s.emit(Notice{
		Type:        core.EventAgendaUpdated,
		Title:       "Compromisso atualizado",
		Description: updated.Title,
		Item:        &updated,
	})
	return true
}

// Remove deletes the item with id and returns it, so callers can offer undo
// by adding it back.
func (s *Store) Remove(id string) (core.AgendaItem, bool) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return core.AgendaItem{}, false
	}
	removed := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.persist()
	s.mu.Unlock()

	s.emit(Notice{
		Type:        core.EventAgendaRemoved,
		Title:       "Compromisso removido",
		Description: removed.Title,
		Item:        &removed,
	})
	return removed, true
}

// ToggleCompleted flips the completed flag of the item with id.
func (s *Store) ToggleCompleted(id string) (core.AgendaItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.AgendaItem{}, false
	}
	s.items[i].Completed = !s.items[i].Completed
	s.persist()
	return s.items[i], true
}

// Import merges items whose ids are not yet present and returns how many
// were inserted. Items are matched by id only; content is not compared.
// Items without an id get a fresh one.
func (s *Store) Import(items []core.AgendaItem) int {
	s.mu.Lock()
	seen := make(map[string]struct{}, len(s.items)+len(items))
	for _, it := range s.items {
		seen[it.ID] = struct{}{}
	}
	var fresh []core.AgendaItem
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if it.CreatedAt == "" {
			it.CreatedAt = s.stamp()
		}
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		fresh = append(fresh, it)
	}
	if len(fresh) == 0 {
		s.mu.Unlock()
		return 0
	}
	s.items = append(s.items, fresh...)
	s.persist()
	s.mu.Unlock()

	s.emit(Notice{
		Type:        core.EventAgendaImported,
		Title:       "Compromissos importados",
		Description: fmt.Sprintf("%d compromisso(s) importado(s)", len(fresh)),
		Count:       len(fresh),
	})
	return len(fresh)
}

// Replace swaps the whole collection, as restoring a backup or undoing
// several changes does. Missing ids and creation times are filled in and
// later duplicates of an id are dropped. It returns the number kept.
func (s *Store) Replace(items []core.AgendaItem) int {
	out := make([]core.AgendaItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if it.CreatedAt == "" {
			it.CreatedAt = s.stamp()
		}
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	s.mu.Lock()
	s.items = out
	s.persist()
	s.mu.Unlock()

	s.emit(Notice{
		Type:        core.EventAgendaReplaced,
		Title:       "Agenda restaurada",
		Description: fmt.Sprintf("%d compromisso(s) na agenda", len(out)),
		Count:       len(out),
	})
	return len(out)
}

// View runs the filter pipeline against the current collection.
func (s *Store) View(f Filter) []core.AgendaItem {
	return Apply(s.Items(), f, s.now())
}

// Groups runs the filter pipeline and buckets the result by date.
func (s *Store) Groups(f Filter) []Group {
	return GroupByDate(s.View(f))
}

// Conflicts returns the sorted ids of overlapping items.
func (s *Store) Conflicts() []string {
	return ConflictIDs(s.Items(), s.Location())
}

// ConflictPairs returns every overlapping pair.
func (s *Store) ConflictPairs() []ConflictPair {
	return ConflictPairs(s.Items(), s.Location())
}

func (s *Store) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Summary renders "title em date[ às time]".
func Summary(item core.AgendaItem) string {
	out := item.Title + " em " + item.Date
	if item.Time != "" {
		out += " às " + item.Time
	}
	return out
}

// Encode serializes a collection the way it is persisted.
func Encode(items []core.AgendaItem) ([]byte, error) {
	if items == nil {
		items = []core.AgendaItem{}
	}
	return json.Marshal(items)
}

// Decode parses a persisted collection. Anything other than a JSON array of
// items is an error.
func Decode(data []byte) ([]core.AgendaItem, error) {
	var items []core.AgendaItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode agenda: %w", err)
	}
	return items, nil
}
