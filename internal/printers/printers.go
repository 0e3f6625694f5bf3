// Package printers renders directory and agenda data for the terminal.
package printers

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/mistakeknot/setores/internal/agenda"
	"github.com/mistakeknot/setores/internal/core"
	"github.com/mistakeknot/setores/internal/validate"
)

// Row is one agenda item with the labels shown next to it.
type Row struct {
	Item     core.AgendaItem
	Conflict bool
	End      string
	Relative string
	Today    bool
	Past     bool
}

// Day is the rows of one calendar date.
type Day struct {
	Date     string
	Label    string
	Relative string
	Rows     []Row
}

// Clash is a pair of overlapping items.
type Clash struct {
	A core.AgendaItem
	B core.AgendaItem
}

var categoryColors = map[string]*color.Color{
	core.CategoryMeeting:  color.New(color.FgBlue),
	core.CategoryVisit:    color.New(color.FgGreen),
	core.CategoryInternal: color.New(color.FgMagenta),
	core.CategoryUrgent:   color.New(color.FgRed, color.Bold),
	core.CategoryPersonal: color.New(color.FgCyan),
	core.CategoryOther:    color.New(color.FgWhite),
}

type Printer struct {
	Out io.Writer
}

// New returns a Printer writing to out, or to color.Output when out is nil.
func New(out io.Writer) *Printer {
	if out == nil {
		out = color.Output
	}
	return &Printer{Out: out}
}

// JSON writes v indented.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) none() {
	f := color.New(color.Faint, color.Italic)
	_, _ = f.Fprint(p.Out, " none\n\n")
}

func (p *Printer) title(title string, count int) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)
	_, _ = t.Fprint(p.Out, title)
	switch count {
	case 1:
		_, _ = c.Fprintf(p.Out, " - %d entry\n", count)
	default:
		_, _ = c.Fprintf(p.Out, " - %d entries\n", count)
	}
}

// Setores prints one line per setor.
func (p *Printer) Setores(list []core.Setor) {
	p.title("Setores", len(list))
	if len(list) == 0 {
		p.none()
		return
	}
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 48
	tbl.AddRow(bold.Sprint("Sigla"), bold.Sprint("Nome"), bold.Sprint("Local"), bold.Sprint("Ramal"))
	for _, s := range list {
		tbl.AddRow(s.Sigla, s.Nome, faint.Sprint(location(s)), s.RamalPrincipal)
	}
	_, _ = fmt.Fprintln(p.Out, tbl)
	_, _ = fmt.Fprintln(p.Out, "")
}

// Setor prints the full contact card of s.
func (p *Printer) Setor(s core.Setor) {
	t := color.New(color.Bold, color.Underline)
	if s.Sigla != "" {
		_, _ = t.Fprintf(p.Out, "%s - %s\n", s.Sigla, s.Nome)
	} else {
		_, _ = t.Fprintln(p.Out, s.Nome)
	}

	label := color.New(color.Faint)
	tbl := uitable.New()
	tbl.Separator = "  "
	add := func(k, v string) {
		if strings.TrimSpace(v) == "" {
			return
		}
		tbl.AddRow(label.Sprint(k), v)
	}
	bad := color.New(color.FgYellow)
	checked := func(v string, ok bool) string {
		if ok {
			return v
		}
		return v + bad.Sprint(" (inválido)")
	}
	phone := func(v string) string {
		return checked(validate.FormatPhone(v), strings.TrimSpace(v) == "" || validate.Phone(v))
	}
	add("Local", location(s))
	add("Email", checked(s.Email, validate.OptionalEmail(s.Email)))
	add("Ramal", s.RamalPrincipal)
	if len(s.Ramais) > 1 {
		add("Ramais", strings.Join(s.Ramais, ", "))
	}
	for _, tel := range s.Telefones {
		add("Telefone", phone(tel.Numero))
	}
	for _, tel := range s.TelefonesExternos {
		add("Externo", phone(tel.Numero))
	}
	add("Celular", phone(s.Celular))
	add("WhatsApp", phone(s.Whatsapp))
	for _, o := range s.OutrosContatos {
		add("Contato", o)
	}
	if len(s.Responsaveis) > 0 {
		names := make([]string, 0, len(s.Responsaveis))
		for _, r := range s.Responsaveis {
			names = append(names, r.Nome)
		}
		add("Responsáveis", strings.Join(names, ", "))
	}
	add("Observações", s.Observacoes)
	add("Atualizado", s.UltimaAtualizacao)
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(p.Out, tbl)
	_, _ = fmt.Fprintln(p.Out, "")
}

// Statistics prints the directory totals.
func (p *Printer) Statistics(st core.Statistics) {
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Setores"), strconv.Itoa(st.TotalSetores))
	tbl.AddRow(bold.Sprint("Blocos"), strconv.Itoa(st.TotalBlocos))
	tbl.AddRow(bold.Sprint("Andares"), strconv.Itoa(st.TotalAndares))
	tbl.AddRow(bold.Sprint("Ramais"), strconv.Itoa(st.TotalRamais))
	tbl.RightAlign(1)
	_, _ = fmt.Fprintln(p.Out, tbl)
}

// Rows prints items without date headers.
func (p *Printer) Rows(rows []Row) {
	p.title("Agenda", len(rows))
	if len(rows) == 0 {
		p.none()
		return
	}
	p.table(rows, true)
	_, _ = fmt.Fprintln(p.Out, "")
}

// Days prints items under one header per date.
func (p *Printer) Days(days []Day) {
	if len(days) == 0 {
		p.title("Agenda", 0)
		p.none()
		return
	}
	head := color.New(color.Bold, color.Underline)
	rel := color.New(color.Faint)
	for _, d := range days {
		_, _ = head.Fprint(p.Out, d.Label)
		if d.Relative != "" {
			_, _ = rel.Fprintf(p.Out, " (%s)", d.Relative)
		}
		_, _ = fmt.Fprintln(p.Out, "")
		p.table(d.Rows, false)
		_, _ = fmt.Fprintln(p.Out, "")
	}
}

func (p *Printer) table(rows []Row, withDate bool) {
	faint := color.New(color.Faint)
	warn := color.New(color.FgYellow, color.Bold)
	done := color.New(color.Faint, color.CrossedOut)
	today := color.New(color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	for _, r := range rows {
		cells := []interface{}{}
		if withDate {
			date := faint
			if r.Today {
				date = today
			}
			cells = append(cells, date.Sprint(agendaDate(r)))
		}
		cells = append(cells, clock(r))

		mark := "•"
		title := r.Item.Title
		switch {
		case r.Item.Completed:
			mark = "✓"
			title = done.Sprint(title)
		case r.Past:
			title = faint.Sprint(title)
		}
		if r.Conflict {
			mark = warn.Sprint("!")
		}
		cells = append(cells, mark, title, category(r.Item.Category), faint.Sprint(r.Item.ID))
		tbl.AddRow(cells...)
	}
	_, _ = fmt.Fprintln(p.Out, tbl)
}

// Conflicts prints each overlapping pair.
func (p *Printer) Conflicts(clashes []Clash) {
	p.title("Conflitos", len(clashes))
	if len(clashes) == 0 {
		p.none()
		return
	}
	warn := color.New(color.FgYellow)
	tbl := uitable.New()
	tbl.Separator = "  "
	for _, c := range clashes {
		tbl.AddRow(describe(c.A), warn.Sprint("×"), describe(c.B))
	}
	_, _ = fmt.Fprintln(p.Out, tbl)
	_, _ = fmt.Fprintln(p.Out, "")
}

// Notice prints a one-line confirmation.
func (p *Printer) Notice(title, description string) {
	ok := color.New(color.FgGreen, color.Bold)
	_, _ = ok.Fprint(p.Out, title)
	if description != "" {
		_, _ = fmt.Fprintf(p.Out, ": %s", description)
	}
	_, _ = fmt.Fprintln(p.Out, "")
}

func location(s core.Setor) string {
	var parts []string
	if s.Bloco != "" {
		parts = append(parts, "Bloco "+s.Bloco)
	}
	if s.Andar != "" {
		parts = append(parts, s.Andar)
	}
	return strings.Join(parts, ", ")
}

// agendaDate renders "sex, 10 jan (Amanhã)". The relative label is left out
// when it is only the full date again.
func agendaDate(r Row) string {
	short := agenda.ShortDate(r.Item.Date)
	if r.Relative != "" && r.Relative != agenda.FriendlyDate(r.Item.Date) {
		return short + " (" + r.Relative + ")"
	}
	return short
}

func clock(r Row) string {
	if r.Item.Time == "" {
		return "--:--"
	}
	if r.End != "" {
		return r.Item.Time + "-" + r.End
	}
	return r.Item.Time
}

func category(c string) string {
	if c == "" {
		return ""
	}
	if col, ok := categoryColors[c]; ok {
		return col.Sprint(c)
	}
	return c
}

func describe(item core.AgendaItem) string {
	s := item.Date
	if item.Time != "" {
		s += " " + item.Time
	}
	return s + " " + item.Title
}
