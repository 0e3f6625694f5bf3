package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Notice is a change to an agenda, pushed by the server.
type Notice struct {
	Type        string      `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Item        *AgendaItem `json:"item,omitempty"`
	Count       int         `json:"count,omitempty"`
}

// Notice types.
const (
	NoticeAdded    = "agenda.added"
	NoticeUpdated  = "agenda.updated"
	NoticeRemoved  = "agenda.removed"
	NoticeImported = "agenda.imported"
	NoticeReplaced = "agenda.replaced"
)

type NoticeHandler func(Notice)

// WSClient follows one owner's agenda notices over a websocket.
type WSClient struct {
	baseURL   string
	owner     string
	apiKey    string
	conn      *websocket.Conn
	handlers  []NoticeHandler
	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
	reconnect bool
}

type WSOption func(*WSClient)

func WithWSAPIKey(key string) WSOption {
	return func(c *WSClient) {
		c.apiKey = key
	}
}

// WithAutoReconnect redials with backoff after a dropped connection.
func WithAutoReconnect(enabled bool) WSOption {
	return func(c *WSClient) {
		c.reconnect = enabled
	}
}

func NewWSClient(baseURL, owner string, opts ...WSOption) *WSClient {
	c := &WSClient{
		baseURL: baseURL,
		owner:   owner,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *WSClient) OnNotice(handler NoticeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

func (c *WSClient) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}
	go c.readLoop(ctx)
	return nil
}

func (c *WSClient) dial(ctx context.Context) error {
	wsURL, err := c.buildWSURL()
	if err != nil {
		return fmt.Errorf("build websocket url: %w", err)
	}
	opts := &websocket.DialOptions{}
	if c.apiKey != "" {
		opts.HTTPHeader = map[string][]string{"Authorization": {"Bearer " + c.apiKey}}
	}
	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *WSClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			err = conn.Close(websocket.StatusNormalClosure, "client closing")
		}
	})
	return err
}

func (c *WSClient) buildWSURL() (string, error) {
	if c.owner == "" {
		return "", fmt.Errorf("owner required")
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws/agenda/" + c.owner
	return u.String(), nil
}

func (c *WSClient) readLoop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		var n Notice
		if err := wsjson.Read(ctx, conn, &n); err != nil {
			if !c.reconnect || !c.redial(ctx) {
				return
			}
			continue
		}
		c.dispatch(n)
	}
}

func (c *WSClient) dispatch(n Notice) {
	c.mu.RLock()
	handlers := make([]NoticeHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	for _, h := range handlers {
		h(n)
	}
}

// redial retries until it connects or the client is closed.
func (c *WSClient) redial(ctx context.Context) bool {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second
	for {
		select {
		case <-c.done:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		if err := c.dial(ctx); err == nil {
			return true
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// FilterNotices wraps handler so it only sees the given notice types.
func FilterNotices(handler NoticeHandler, types ...string) NoticeHandler {
	return func(n Notice) {
		for _, t := range types {
			if n.Type == t {
				handler(n)
				return
			}
		}
	}
}
