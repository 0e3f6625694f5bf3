package core

import (
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Telefone is a phone number attached to a setor, keeping the extension it
// was normalized from.
type Telefone struct {
	Numero        string `json:"numero"`
	Link          string `json:"link"`
	RamalOriginal string `json:"ramal_original"`
}

// Responsavel is a person in charge of a setor.
type Responsavel struct {
	Nome string `json:"nome"`
}

// Setor is a department record of the directory.
type Setor struct {
	ID                int           `json:"id"`
	Sigla             string        `json:"sigla"`
	Nome              string        `json:"nome"`
	Bloco             string        `json:"bloco"`
	Andar             string        `json:"andar"`
	Observacoes       string        `json:"observacoes"`
	Email             string        `json:"email"`
	Slug              string        `json:"slug"`
	RamalPrincipal    string        `json:"ramal_principal"`
	Ramais            []string      `json:"ramais"`
	Telefones         []Telefone    `json:"telefones"`
	TelefonesExternos []Telefone    `json:"telefones_externos"`
	Responsaveis      []Responsavel `json:"responsaveis"`
	Celular           string        `json:"celular"`
	Whatsapp          string        `json:"whatsapp"`
	OutrosContatos    []string      `json:"outros_contatos"`
	UltimaAtualizacao string        `json:"ultima_atualizacao"`
}

// UpdatedAt parses UltimaAtualizacao. It accepts RFC 3339 timestamps and
// plain dates.
func (s Setor) UpdatedAt() (time.Time, bool) {
	if s.UltimaAtualizacao == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s.UltimaAtualizacao); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s.UltimaAtualizacao); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// SearchFilters narrows a directory search. Empty fields are ignored.
type SearchFilters struct {
	Query string
	Bloco string
	Andar string
}

// Statistics aggregates counts over the whole directory.
type Statistics struct {
	TotalSetores int `json:"totalSetores"`
	TotalBlocos  int `json:"totalBlocos"`
	TotalAndares int `json:"totalAndares"`
	TotalRamais  int `json:"totalRamais"`
}

// FilterOptions lists the distinct values usable as search filters.
type FilterOptions struct {
	Blocos  []string `json:"blocos"`
	Andares []string `json:"andares"`
}
