// Package client is a Go client for the setores directory and agenda API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mistakeknot/setores/internal/core"
)

type (
	Setor         = core.Setor
	Statistics    = core.Statistics
	FilterOptions = core.FilterOptions
	SearchFilters = core.SearchFilters
	AgendaItem    = core.AgendaItem
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError carries a non-success status and the server's error message.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed: %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s failed: %d", e.Op, e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	APIKey  string
	Owner   string
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.APIKey = strings.TrimSpace(key)
	}
}

// WithOwner selects whose agenda the agenda calls act on.
func WithOwner(owner string) Option {
	return func(c *Client) {
		c.Owner = strings.TrimSpace(owner)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.HTTP = httpClient
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search lists setores matching f. A zero f lists every setor.
func (c *Client) Search(ctx context.Context, f SearchFilters) ([]Setor, error) {
	values := url.Values{}
	if f.Query != "" {
		values.Set("query", f.Query)
	}
	if f.Bloco != "" {
		values.Set("bloco", f.Bloco)
	}
	if f.Andar != "" {
		values.Set("andar", f.Andar)
	}
	var out []Setor
	err := c.getJSON(ctx, "search", withQuery("/api/setores", values), &out)
	return out, err
}

// Setor looks a setor up by slug or numeric id.
func (c *Client) Setor(ctx context.Context, key string) (Setor, error) {
	var out Setor
	err := c.getJSON(ctx, "setor", "/api/setores/"+url.PathEscape(key), &out)
	return out, err
}

func (c *Client) Statistics(ctx context.Context) (Statistics, error) {
	var out Statistics
	err := c.getJSON(ctx, "statistics", "/api/statistics", &out)
	return out, err
}

func (c *Client) Filters(ctx context.Context) (FilterOptions, error) {
	var out FilterOptions
	err := c.getJSON(ctx, "filters", "/api/filters", &out)
	return out, err
}

// Recent lists setores updated within the last days days.
func (c *Client) Recent(ctx context.Context, days int) ([]Setor, error) {
	values := url.Values{}
	if days > 0 {
		values.Set("days", strconv.Itoa(days))
	}
	var out []Setor
	err := c.getJSON(ctx, "recent", withQuery("/api/recent", values), &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decode(op, resp, http.StatusOK, out)
}

func (c *Client) sendJSON(ctx context.Context, op, method, path string, payload any, want int, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decode(op, resp, want, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.HTTP.Do(req)
}

func (c *Client) applyHeaders(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
}

func decode(op string, resp *http.Response, want int, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode != want {
		apiErr := &APIError{Op: op, Status: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil {
			apiErr.Message = body.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func withQuery(path string, values url.Values) string {
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}
