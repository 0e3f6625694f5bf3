// Package directory serves the read-only department directory loaded from
// the structured JSON export.
package directory

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mistakeknot/setores/internal/core"
)

// record is the nested shape of one entry in the source file.
type record struct {
	ID    int `json:"id"`
	Setor struct {
		Sigla             string          `json:"sigla"`
		Nome              string          `json:"nome"`
		Bloco             string          `json:"bloco"`
		Andar             string          `json:"andar"`
		Observacoes       string          `json:"observacoes"`
		Email             string          `json:"email"`
		Slug              string          `json:"slug"`
		RamalPrincipal    string          `json:"ramal_principal"`
		Ramais            []string        `json:"ramais"`
		Telefones         []core.Telefone `json:"telefones"`
		TelefonesExternos []core.Telefone `json:"telefones_externos"`
	} `json:"setor"`
	Responsaveis []core.Responsavel `json:"responsaveis"`
	Contatos     struct {
		Celular  string   `json:"celular"`
		Whatsapp string   `json:"whatsapp"`
		Outros   []string `json:"outros"`
	} `json:"contatos"`
	UltimaAtualizacao string `json:"ultima_atualizacao"`
}

func (r record) toSetor() core.Setor {
	return core.Setor{
		ID:                r.ID,
		Sigla:             r.Setor.Sigla,
		Nome:              r.Setor.Nome,
		Bloco:             r.Setor.Bloco,
		Andar:             r.Setor.Andar,
		Observacoes:       r.Setor.Observacoes,
		Email:             r.Setor.Email,
		Slug:              r.Setor.Slug,
		RamalPrincipal:    r.Setor.RamalPrincipal,
		Ramais:            orEmpty(r.Setor.Ramais),
		Telefones:         orEmpty(r.Setor.Telefones),
		TelefonesExternos: orEmpty(r.Setor.TelefonesExternos),
		Responsaveis:      orEmpty(r.Responsaveis),
		Celular:           r.Contatos.Celular,
		Whatsapp:          r.Contatos.Whatsapp,
		OutrosContatos:    orEmpty(r.Contatos.Outros),
		UltimaAtualizacao: r.UltimaAtualizacao,
	}
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// Directory indexes setores by id and slug. It is immutable after load and
// safe for concurrent use.
type Directory struct {
	sorted []core.Setor
	byID   map[int]core.Setor
	bySlug map[string]core.Setor
}

// New builds a Directory over setores.
func New(setores []core.Setor) *Directory {
	d := &Directory{
		byID:   make(map[int]core.Setor, len(setores)),
		bySlug: make(map[string]core.Setor, len(setores)),
	}
	for _, s := range setores {
		d.byID[s.ID] = s
		if s.Slug != "" {
			d.bySlug[s.Slug] = s
		}
	}
	d.sorted = make([]core.Setor, 0, len(d.byID))
	for _, s := range d.byID {
		d.sorted = append(d.sorted, s)
	}
	sortByName(d.sorted)
	return d
}

// Load reads the directory file at path.
func Load(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open directory: %w", err)
	}
	defer f.Close()
	d, err := Read(f)
	if err != nil {
		return nil, err
	}
	log.Printf("directory: loaded %d setores from %s", d.Len(), path)
	return d, nil
}

// Read parses a directory file.
func Read(r io.Reader) (*Directory, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("parse directory: %w", err)
	}
	setores := make([]core.Setor, 0, len(records))
	for _, rec := range records {
		setores = append(setores, rec.toSetor())
	}
	return New(setores), nil
}

// Len returns the number of setores.
func (d *Directory) Len() int { return len(d.sorted) }

// All returns every setor ordered by name.
func (d *Directory) All() []core.Setor {
	out := make([]core.Setor, len(d.sorted))
	copy(out, d.sorted)
	return out
}

func (d *Directory) ByID(id int) (core.Setor, error) {
	s, ok := d.byID[id]
	if !ok {
		return core.Setor{}, core.ErrNotFound
	}
	return s, nil
}

func (d *Directory) BySlug(slug string) (core.Setor, error) {
	s, ok := d.bySlug[slug]
	if !ok {
		return core.Setor{}, core.ErrNotFound
	}
	return s, nil
}

// Lookup resolves key as a slug first and then as a numeric id.
func (d *Directory) Lookup(key string) (core.Setor, error) {
	key = strings.TrimSpace(key)
	if s, err := d.BySlug(key); err == nil {
		return s, nil
	}
	if id, err := strconv.Atoi(key); err == nil {
		return d.ByID(id)
	}
	return core.Setor{}, core.ErrNotFound
}

// Search filters setores by free text, bloco and andar, ordered by name.
// The query matches nome, sigla, bloco, andar, e-mail or a responsável.
func (d *Directory) Search(f core.SearchFilters) []core.Setor {
	q := strings.ToLower(f.Query)
	bloco, andar := activeFilter(f.Bloco), activeFilter(f.Andar)
	out := make([]core.Setor, 0)
	for _, s := range d.sorted {
		if q != "" && !matches(s, q) {
			continue
		}
		if bloco && s.Bloco != f.Bloco {
			continue
		}
		if andar && s.Andar != f.Andar {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matches(s core.Setor, q string) bool {
	for _, field := range []string{s.Nome, s.Sigla, s.Bloco, s.Andar, s.Email} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	for _, r := range s.Responsaveis {
		if strings.Contains(strings.ToLower(r.Nome), q) {
			return true
		}
	}
	return false
}

func activeFilter(v string) bool {
	return strings.TrimSpace(v) != "" && v != "all"
}

// Statistics counts setores, distinct blocos and andares, and extensions.
func (d *Directory) Statistics() core.Statistics {
	opts := d.FilterOptions()
	stats := core.Statistics{
		TotalSetores: len(d.sorted),
		TotalBlocos:  len(opts.Blocos),
		TotalAndares: len(opts.Andares),
	}
	for _, s := range d.sorted {
		stats.TotalRamais += len(s.Ramais)
	}
	return stats
}

// FilterOptions lists the distinct non-blank blocos and andares, sorted.
func (d *Directory) FilterOptions() core.FilterOptions {
	blocos := make(map[string]struct{})
	andares := make(map[string]struct{})
	for _, s := range d.sorted {
		if strings.TrimSpace(s.Bloco) != "" {
			blocos[s.Bloco] = struct{}{}
		}
		if strings.TrimSpace(s.Andar) != "" {
			andares[s.Andar] = struct{}{}
		}
	}
	return core.FilterOptions{Blocos: sortedKeys(blocos), Andares: sortedKeys(andares)}
}

// DefaultRecentWindow is how long a setor counts as recently updated.
const DefaultRecentWindow = 7 * 24 * time.Hour

// RecentlyUpdated returns setores updated within window of now, by name.
func (d *Directory) RecentlyUpdated(window time.Duration, now time.Time) []core.Setor {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	days := int(window / (24 * time.Hour))
	out := make([]core.Setor, 0)
	for _, s := range d.sorted {
		updated, ok := s.UpdatedAt()
		if !ok {
			continue
		}
		if int(now.Sub(updated)/(24*time.Hour)) <= days {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// sortByName orders setores by nome using Portuguese collation, so accented
// names sort next to their plain forms.
func sortByName(setores []core.Setor) {
	c := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	sort.SliceStable(setores, func(i, j int) bool {
		if cmp := c.CompareString(setores[i].Nome, setores[j].Nome); cmp != 0 {
			return cmp < 0
		}
		return setores[i].ID < setores[j].ID
	})
}
