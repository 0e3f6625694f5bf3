package agenda

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mistakeknot/setores/internal/core"
)

var csvHeader = []string{"ID", "Título", "Data", "Hora", "Término", "Duração (min)", "Categoria", "Concluído", "Notas"}

// WriteJSON writes items as an indented JSON array, importable with Import.
func WriteJSON(w io.Writer, items []core.AgendaItem) error {
	if items == nil {
		items = []core.AgendaItem{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}

// WriteCSV writes items as CSV with a header row.
func WriteCSV(w io.Writer, items []core.AgendaItem, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	for _, it := range items {
		duration := ""
		if it.Time != "" {
			duration = strconv.Itoa(it.DurationMinutes())
		}
		end := ""
		if it.Time != "" {
			end = FormatEndTime(it, loc)
		}
		done := "não"
		if it.Completed {
			done = "sim"
		}
		row := []string{it.ID, it.Title, it.Date, it.Time, end, duration, it.Category, done, it.Notes}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}

// ReadJSON parses an export produced by WriteJSON or by the web client.
func ReadJSON(r io.Reader) ([]core.AgendaItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	return Decode(data)
}
