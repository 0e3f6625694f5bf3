// Package ws streams agenda notices to websocket subscribers.
package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mistakeknot/setores/internal/auth"
)

const writeTimeout = 5 * time.Second

// Hub fans notices out to every connection following an owner's agenda.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]struct{})}
}

// Handler serves /ws/agenda/{owner}.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/agenda/"), "/")
		if owner == "" || strings.Contains(owner, "/") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if info, ok := auth.FromContext(r.Context()); ok && !info.CanAccess(owner) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		h.add(owner, conn)
		defer h.remove(owner, conn)

		// Subscribers only listen; reading drains pings and detects close.
		ctx := r.Context()
		for {
			var v any
			if err := wsjson.Read(ctx, conn, &v); err != nil {
				return
			}
		}
	}
}

// Broadcast writes event to every subscriber of owner. Connections that
// fail to accept the write are dropped.
func (h *Hub) Broadcast(owner string, event any) {
	for _, conn := range h.snapshot(owner) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, conn, event)
		cancel()
		if err != nil {
			go func(c *websocket.Conn) {
				c.Close(websocket.StatusGoingAway, "write error")
				h.remove(owner, c)
			}(conn)
		}
	}
}

// Subscribers returns the number of open connections for owner.
func (h *Hub) Subscribers(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[owner])
}

func (h *Hub) snapshot(owner string) []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*websocket.Conn, 0, len(h.conns[owner]))
	for conn := range h.conns[owner] {
		out = append(out, conn)
	}
	return out
}

func (h *Hub) add(owner string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	perOwner, ok := h.conns[owner]
	if !ok {
		perOwner = make(map[*websocket.Conn]struct{})
		h.conns[owner] = perOwner
	}
	perOwner[conn] = struct{}{}
}

func (h *Hub) remove(owner string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	perOwner, ok := h.conns[owner]
	if !ok {
		return
	}
	delete(perOwner, conn)
	if len(perOwner) == 0 {
		delete(h.conns, owner)
	}
}
