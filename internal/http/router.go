package httpapi

import "net/http"

// breaker is implemented by slots guarded by a circuit breaker.
type breaker interface {
	CircuitBreakerState() string
}

// NewRouter mounts the API. wsHandler, when set, serves /ws/agenda/{owner};
// mw wraps every route.
func NewRouter(svc *Service, wsHandler http.Handler, mw func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.Handler) http.Handler {
		if mw != nil {
			return mw(h)
		}
		return h
	}

	mux.Handle("/health", http.HandlerFunc(svc.handleHealth))

	mux.Handle("/api/setores", wrap(http.HandlerFunc(svc.handleSetores)))
	mux.Handle("/api/setores/", wrap(http.HandlerFunc(svc.handleSetorByKey)))
	mux.Handle("/api/statistics", wrap(http.HandlerFunc(svc.handleStatistics)))
	mux.Handle("/api/filters", wrap(http.HandlerFunc(svc.handleFilters)))
	mux.Handle("/api/recent", wrap(http.HandlerFunc(svc.handleRecent)))

	mux.Handle("/api/categories", wrap(http.HandlerFunc(svc.handleCategories)))
	mux.Handle("/api/agenda/", wrap(http.HandlerFunc(svc.handleAgenda)))

	if wsHandler != nil {
		mux.Handle("/ws/agenda/", wrap(wsHandler))
	}
	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := map[string]any{"status": "ok", "setores": s.dir.Len()}
	status := http.StatusOK
	if s.agendas != nil {
		if b, ok := s.agendas.Slot().(breaker); ok {
			state := b.CircuitBreakerState()
			resp["storage"] = state
			if state == "open" {
				resp["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
	}
	writeJSON(w, status, resp)
}
