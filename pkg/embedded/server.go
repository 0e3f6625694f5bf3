// Package embedded provides an embeddable setores server for in-process use.
package embedded

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/mistakeknot/setores/internal/agenda"
	"github.com/mistakeknot/setores/internal/auth"
	"github.com/mistakeknot/setores/internal/directory"
	httpapi "github.com/mistakeknot/setores/internal/http"
	"github.com/mistakeknot/setores/internal/server"
	"github.com/mistakeknot/setores/internal/storage/sqlite"
	"github.com/mistakeknot/setores/internal/ws"
)

const DefaultAddr = "127.0.0.1:7340"

// Config configures the embedded server
type Config struct {
	// DBPath is the SQLite database holding agendas.
	// If empty, defaults to ~/.setores/agenda.db
	DBPath string

	// DataPath is the setores JSON file. If empty, the directory is empty.
	DataPath string

	// Addr is the TCP address to listen on. Port 0 picks a free port.
	// If empty, defaults to DefaultAddr.
	Addr string

	// KeysFile is read by NewWithAuth. SETORES_KEYS_FILE takes precedence.
	KeysFile string

	// Now overrides the clock; its location is the agenda time zone.
	Now func() time.Time
}

// Server is an embedded setores server
type Server struct {
	cfg     Config
	slot    *sqlite.ResilientStore
	agendas *agenda.Registry
	hub     *ws.Hub
	srv     *server.Server
	started bool
	mu      sync.Mutex
}

// New creates an embedded server without authentication.
func New(cfg Config) (*Server, error) {
	return newServer(cfg, nil)
}

// NewWithAuth creates an embedded server that requires API keys from the
// keys file, except for localhost when the file allows it.
func NewWithAuth(cfg Config) (*Server, error) {
	ring, err := auth.LoadKeyring(auth.ResolveKeysPath(cfg.KeysFile))
	if err != nil {
		return nil, fmt.Errorf("load auth: %w", err)
	}
	return newServer(cfg, auth.Middleware(ring))
}

func newServer(cfg Config, mw func(http.Handler) http.Handler) (*Server, error) {
	if cfg.DBPath == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".setores", "agenda.db")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	dir := directory.New(nil)
	if cfg.DataPath != "" {
		var err error
		if dir, err = directory.Load(cfg.DataPath); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	slot := sqlite.NewResilient(store)

	hub := ws.NewHub()
	agendas := agenda.NewRegistry(slot, cfg.Now).WithBroadcaster(hub)
	svc := httpapi.NewService(dir, agendas).WithClock(cfg.Now)
	router := httpapi.NewRouter(svc, hub.Handler(), mw)

	srv, err := server.New(server.Config{Addr: cfg.Addr, Handler: router})
	if err != nil {
		slot.Close()
		return nil, err
	}
	return &Server{
		cfg:     cfg,
		slot:    slot,
		agendas: agendas,
		hub:     hub,
		srv:     srv,
	}, nil
}

// Start serves in a goroutine. The listener is already bound, so requests
// succeed as soon as Start returns.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	go func() {
		if err := s.srv.Start(); err != nil {
			log.Printf("embedded: serve: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully and closes the database.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return s.slot.Close()
	}
	s.started = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	if cerr := s.slot.Close(); err == nil {
		err = cerr
	}
	return err
}

// Addr returns the bound listen address
func (s *Server) Addr() string {
	return s.srv.Addr()
}

// URL returns the base URL for the server
func (s *Server) URL() string {
	return "http://" + s.srv.Addr()
}

// Agendas returns the registry for direct access to owners' agendas.
func (s *Server) Agendas() *agenda.Registry {
	return s.agendas
}
