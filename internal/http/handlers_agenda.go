package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mistakeknot/setores/internal/agenda"
	"github.com/mistakeknot/setores/internal/auth"
	"github.com/mistakeknot/setores/internal/core"
	"github.com/mistakeknot/setores/internal/validate"
)

// itemRequest is the body of add and update calls. Pointer fields left out
// of an update keep their current value.
type itemRequest struct {
	ID        string  `json:"id"`
	Title     string  `json:"titulo"`
	Date      string  `json:"data"`
	Time      *string `json:"hora"`
	Notes     *string `json:"notas"`
	Duration  *int    `json:"duracao"`
	Category  *string `json:"categoria"`
	Completed *bool   `json:"concluido"`
}

// itemView decorates an item with what the agenda screen shows next to it.
type itemView struct {
	core.AgendaItem
	Conflict bool   `json:"conflito"`
	End      string `json:"termino,omitempty"`
	Relative string `json:"relativo"`
	Today    bool   `json:"hoje"`
	Past     bool   `json:"passado"`
}

type groupView struct {
	Date     string     `json:"date"`
	Label    string     `json:"label"`
	Relative string     `json:"relativo"`
	Items    []itemView `json:"items"`
}

type conflictsResponse struct {
	IDs   []string              `json:"ids"`
	Pairs []agenda.ConflictPair `json:"pairs"`
}

func (s *Service) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, core.Categories())
}

// handleAgenda routes /api/agenda/{owner}/...
func (s *Service) handleAgenda(w http.ResponseWriter, r *http.Request) {
	if s.agendas == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/agenda/"), "/"), "/")
	owner := parts[0]
	if owner == "" || len(parts) < 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if info, ok := auth.FromContext(r.Context()); ok && !info.CanAccess(owner) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	st := s.agendas.For(r.Context(), owner)

	switch {
	case len(parts) == 2 && parts[1] == "items":
		switch r.Method {
		case http.MethodGet:
			s.listItems(w, r, st)
		case http.MethodPost:
			s.addItem(w, r, st)
		case http.MethodPut:
			s.replaceItems(w, r, st)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 3 && parts[1] == "items":
		id := parts[2]
		switch r.Method {
		case http.MethodGet:
			s.getItem(w, st, id)
		case http.MethodPut:
			s.updateItem(w, r, st, id)
		case http.MethodDelete:
			s.removeItem(w, st, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 4 && parts[1] == "items" && parts[3] == "toggle":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.toggleItem(w, st, parts[2])
	case len(parts) == 2 && parts[1] == "groups":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.listGroups(w, r, st)
	case len(parts) == 2 && parts[1] == "conflicts":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.listConflicts(w, st)
	case len(parts) == 2 && parts[1] == "import":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.importItems(w, r, st)
	case len(parts) == 2 && parts[1] == "export":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.exportItems(w, r, st)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Service) listItems(w http.ResponseWriter, r *http.Request, st *agenda.Store) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	s.lastModified(w, r)
	writeJSON(w, http.StatusOK, s.views(st, st.View(f)))
}

// lastModified sets Last-Modified from the slot's write time, when known.
func (s *Service) lastModified(w http.ResponseWriter, r *http.Request) {
	if t, ok := s.agendas.UpdatedAt(r.Context(), ownerOf(r)); ok {
		w.Header().Set("Last-Modified", t.UTC().Format(http.TimeFormat))
	}
}

func ownerOf(r *http.Request) string {
	owner, _, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/api/agenda/"), "/")
	return owner
}

func (s *Service) listGroups(w http.ResponseWriter, r *http.Request, st *agenda.Store) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	now := s.now().In(st.Location())
	groups := st.Groups(f)
	out := make([]groupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupView{
			Date:     g.Date,
			Label:    agenda.FriendlyDate(g.Date),
			Relative: agenda.RelativeDate(g.Date, now),
			Items:    s.views(st, g.Items),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) listConflicts(w http.ResponseWriter, st *agenda.Store) {
	resp := conflictsResponse{IDs: st.Conflicts(), Pairs: st.ConflictPairs()}
	if resp.IDs == nil {
		resp.IDs = []string{}
	}
	if resp.Pairs == nil {
		resp.Pairs = []agenda.ConflictPair{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) getItem(w http.ResponseWriter, st *agenda.Store, id string) {
	item, ok := st.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, s.views(st, []core.AgendaItem{item})[0])
}

func (s *Service) addItem(w http.ResponseWriter, r *http.Request, st *agenda.Store) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	item := core.AgendaItem{ID: strings.TrimSpace(req.ID)}
	if msg := applyRequest(&item, req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	added, ok := st.AddIfAbsent(item)
	if !ok {
		writeError(w, http.StatusConflict, "id already exists")
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Service) updateItem(w http.ResponseWriter, r *http.Request, st *agenda.Store, id string) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	item, ok := st.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if msg := applyRequest(&item, req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if !st.Update(item) {
		// Removed between Get and Update.
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Service) removeItem(w http.ResponseWriter, st *agenda.Store, id string) {
	removed, ok := st.Remove(id)
	if !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

func (s *Service) toggleItem(w http.ResponseWriter, st *agenda.Store, id string) {
	item, ok := st.ToggleCompleted(id)
	if !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Service) importItems(w http.ResponseWriter, r *http.Request, st *agenda.Store) {
	items, err := agenda.ReadJSON(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Items(items); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": st.Import(items)})
}

// replaceItems swaps the owner's whole agenda for the body, as a restore.
func (s *Service) replaceItems(w http.ResponseWriter, r *http.Request, st *agenda.Store) {
	items, err := agenda.ReadJSON(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Items(items); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i := range items {
		items[i].Title = validate.SanitizeString(items[i].Title)
		if items[i].Title == "" {
			writeError(w, http.StatusBadRequest, "item "+strconv.Itoa(i)+": titulo required")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"items": st.Replace(items)})
}

func (s *Service) exportItems(w http.ResponseWriter, r *http.Request, st *agenda.Store) {
	items := agenda.Sort(st.Items())
	stamp := s.now().Format("2006-01-02")
	s.lastModified(w, r)
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="agenda-`+stamp+`.json"`)
		_ = agenda.WriteJSON(w, items)
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="agenda-`+stamp+`.csv"`)
		_ = agenda.WriteCSV(w, items, st.Location())
	default:
		writeError(w, http.StatusBadRequest, "unknown format")
	}
}

func (s *Service) views(st *agenda.Store, items []core.AgendaItem) []itemView {
	loc := st.Location()
	now := s.now().In(loc)
	conflicts := agenda.Conflicts(st.Items(), loc)
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, itemView{
			AgendaItem: it,
			Conflict:   conflicts[it.ID],
			End:        agenda.FormatEndTime(it, loc),
			Relative:   agenda.RelativeDate(it.Date, now),
			Today:      agenda.IsToday(it.Date, now),
			Past:       agenda.IsPast(it.Date, now),
		})
	}
	return out
}

// applyRequest validates req and copies it onto item. It returns a message
// for the client when the request is invalid.
func applyRequest(item *core.AgendaItem, req itemRequest) string {
	title := validate.SanitizeString(req.Title)
	if title == "" && item.Title == "" {
		return "titulo required"
	}
	if title != "" {
		item.Title = title
	}
	date := strings.TrimSpace(req.Date)
	if date == "" && item.Date == "" {
		return "data required"
	}
	if date != "" {
		if !validate.Date(date) {
			return "invalid data"
		}
		item.Date = date
	}
	if req.Time != nil {
		if strings.TrimSpace(*req.Time) == "" {
			item.Time = ""
		} else {
			clock, ok := validate.Clock(*req.Time)
			if !ok {
				return "invalid hora"
			}
			item.Time = clock
		}
	}
	if req.Notes != nil {
		item.Notes = validate.SanitizeString(*req.Notes)
	}
	if req.Duration != nil {
		if *req.Duration <= 0 {
			return "duracao must be positive"
		}
		d := *req.Duration
		item.Duration = &d
	}
	if req.Category != nil {
		item.Category = validate.SanitizeString(*req.Category)
	}
	if req.Completed != nil {
		item.Completed = *req.Completed
	}
	return ""
}

// parseFilter reads ?filter=&search=&hide_completed=&categoria=&date=&week=.
func parseFilter(w http.ResponseWriter, r *http.Request) (agenda.Filter, bool) {
	q := r.URL.Query()
	f := agenda.Filter{
		Range:    agenda.ParseRange(q.Get("filter")),
		Search:   q.Get("search"),
		Category: q.Get("categoria"),
		Date:     strings.TrimSpace(q.Get("date")),
	}
	if f.Date != "" && !validate.Date(f.Date) {
		writeError(w, http.StatusBadRequest, "invalid date")
		return agenda.Filter{}, false
	}
	for name, dst := range map[string]*bool{"hide_completed": &f.HideCompleted, "week": &f.WeekFromDate} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+name)
			return agenda.Filter{}, false
		}
		*dst = b
	}
	return f, true
}
