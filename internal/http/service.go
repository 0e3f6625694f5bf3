// Package httpapi serves the setores directory and per-owner agendas over
// HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mistakeknot/setores/internal/agenda"
	"github.com/mistakeknot/setores/internal/directory"
)

type Service struct {
	dir     *directory.Directory
	agendas *agenda.Registry
	now     func() time.Time
}

func NewService(dir *directory.Directory, agendas *agenda.Registry) *Service {
	if dir == nil {
		dir = directory.New(nil)
	}
	return &Service{dir: dir, agendas: agendas, now: time.Now}
}

// WithClock overrides the clock used for relative labels and the recent
// updates window.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
