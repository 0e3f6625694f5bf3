package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mistakeknot/setores/internal/core"
	"github.com/mistakeknot/setores/internal/directory"
)

func (s *Service) handleSetores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	f := core.SearchFilters{
		Query: q.Get("query"),
		Bloco: q.Get("bloco"),
		Andar: q.Get("andar"),
	}
	if f.Query == "" {
		f.Query = q.Get("q")
	}
	var out []core.Setor
	if f == (core.SearchFilters{}) {
		out = s.dir.All()
	} else {
		out = s.dir.Search(f)
	}
	if out == nil {
		out = []core.Setor{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleSetorByKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/setores/"), "/")
	if key == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	setor, err := s.dir.Lookup(key)
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Setor not found")
		return
	}
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, setor)
}

func (s *Service) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.dir.Statistics())
}

func (s *Service) handleFilters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.dir.FilterOptions())
}

// handleRecent lists setores updated in the last ?days=N days (default 7).
func (s *Service) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	window := directory.DefaultRecentWindow
	if v := r.URL.Query().Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		window = time.Duration(days) * 24 * time.Hour
	}
	out := s.dir.RecentlyUpdated(window, s.now())
	if out == nil {
		out = []core.Setor{}
	}
	writeJSON(w, http.StatusOK, out)
}
