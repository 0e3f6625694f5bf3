package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ItemInput is the body of Add and Update. Nil pointers are left unchanged
// by Update.
type ItemInput struct {
	ID        string  `json:"id,omitempty"`
	Title     string  `json:"titulo,omitempty"`
	Date      string  `json:"data,omitempty"`
	Time      *string `json:"hora,omitempty"`
	Notes     *string `json:"notas,omitempty"`
	Duration  *int    `json:"duracao,omitempty"`
	Category  *string `json:"categoria,omitempty"`
	Completed *bool   `json:"concluido,omitempty"`
}

// ItemView is an item as listed by the server.
type ItemView struct {
	AgendaItem
	Conflict bool   `json:"conflito"`
	End      string `json:"termino,omitempty"`
	Relative string `json:"relativo"`
	Today    bool   `json:"hoje"`
	Past     bool   `json:"passado"`
}

type Group struct {
	Date     string     `json:"date"`
	Label    string     `json:"label"`
	Relative string     `json:"relativo"`
	Items    []ItemView `json:"items"`
}

type ConflictPair struct {
	A string `json:"a"`
	B string `json:"b"`
}

type Conflicts struct {
	IDs   []string       `json:"ids"`
	Pairs []ConflictPair `json:"pairs"`
}

// ItemQuery selects which items Items and Groups return.
type ItemQuery struct {
	Range         string // all, today, week or month
	Search        string
	HideCompleted bool
	Category      string
	Date          string
	Week          bool
}

func (q ItemQuery) values() url.Values {
	v := url.Values{}
	if q.Range != "" {
		v.Set("filter", q.Range)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.HideCompleted {
		v.Set("hide_completed", "true")
	}
	if q.Category != "" {
		v.Set("categoria", q.Category)
	}
	if q.Date != "" {
		v.Set("date", q.Date)
	}
	if q.Week {
		v.Set("week", "true")
	}
	return v
}

func (c *Client) agendaPath(parts ...string) (string, error) {
	if c.Owner == "" {
		return "", fmt.Errorf("owner required")
	}
	p := "/api/agenda/" + url.PathEscape(c.Owner)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p, nil
}

func (c *Client) Items(ctx context.Context, q ItemQuery) ([]ItemView, error) {
	path, err := c.agendaPath("items")
	if err != nil {
		return nil, err
	}
	var out []ItemView
	err = c.getJSON(ctx, "list items", withQuery(path, q.values()), &out)
	return out, err
}

func (c *Client) Groups(ctx context.Context, q ItemQuery) ([]Group, error) {
	path, err := c.agendaPath("groups")
	if err != nil {
		return nil, err
	}
	var out []Group
	err = c.getJSON(ctx, "list groups", withQuery(path, q.values()), &out)
	return out, err
}

func (c *Client) Item(ctx context.Context, id string) (ItemView, error) {
	path, err := c.agendaPath("items", id)
	if err != nil {
		return ItemView{}, err
	}
	var out ItemView
	err = c.getJSON(ctx, "get item", path, &out)
	return out, err
}

func (c *Client) Add(ctx context.Context, in ItemInput) (AgendaItem, error) {
	path, err := c.agendaPath("items")
	if err != nil {
		return AgendaItem{}, err
	}
	var out AgendaItem
	err = c.sendJSON(ctx, "add item", http.MethodPost, path, in, http.StatusCreated, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id string, in ItemInput) (AgendaItem, error) {
	path, err := c.agendaPath("items", id)
	if err != nil {
		return AgendaItem{}, err
	}
	var out AgendaItem
	err = c.sendJSON(ctx, "update item", http.MethodPut, path, in, http.StatusOK, &out)
	return out, err
}

// Remove deletes an item and returns it, so it can be added back to undo.
func (c *Client) Remove(ctx context.Context, id string) (AgendaItem, error) {
	path, err := c.agendaPath("items", id)
	if err != nil {
		return AgendaItem{}, err
	}
	var out AgendaItem
	err = c.sendJSON(ctx, "remove item", http.MethodDelete, path, nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) Toggle(ctx context.Context, id string) (AgendaItem, error) {
	path, err := c.agendaPath("items", id, "toggle")
	if err != nil {
		return AgendaItem{}, err
	}
	var out AgendaItem
	err = c.sendJSON(ctx, "toggle item", http.MethodPost, path, nil, http.StatusOK, &out)
	return out, err
}

// Import merges items by id and returns how many were new.
func (c *Client) Import(ctx context.Context, items []AgendaItem) (int, error) {
	path, err := c.agendaPath("import")
	if err != nil {
		return 0, err
	}
	if items == nil {
		items = []AgendaItem{}
	}
	var out struct {
		Imported int `json:"imported"`
	}
	err = c.sendJSON(ctx, "import", http.MethodPost, path, items, http.StatusOK, &out)
	return out.Imported, err
}

// Replace swaps the whole agenda for items and returns how many were kept.
func (c *Client) Replace(ctx context.Context, items []AgendaItem) (int, error) {
	path, err := c.agendaPath("items")
	if err != nil {
		return 0, err
	}
	if items == nil {
		items = []AgendaItem{}
	}
	var out struct {
		Items int `json:"items"`
	}
	err = c.sendJSON(ctx, "replace items", http.MethodPut, path, items, http.StatusOK, &out)
	return out.Items, err
}

// Export writes the agenda in format ("json" or "csv") to w.
func (c *Client) Export(ctx context.Context, format string, w io.Writer) error {
	path, err := c.agendaPath("export")
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodGet, withQuery(path, url.Values{"format": {format}}), nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return decode("export", resp, http.StatusOK, nil)
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) Conflicts(ctx context.Context) (Conflicts, error) {
	path, err := c.agendaPath("conflicts")
	if err != nil {
		return Conflicts{}, err
	}
	var out Conflicts
	err = c.getJSON(ctx, "conflicts", path, &out)
	return out, err
}

// Categories lists the known agenda categories.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out []string
	err := c.getJSON(ctx, "categories", "/api/categories", &out)
	return out, err
}

// Ptr returns a pointer to v, for ItemInput fields.
func Ptr[T any](v T) *T { return &v }
