package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	base "github.com/n3wscott/cli-base/pkg/commands/options"
	"github.com/spf13/cobra"

	"github.com/mistakeknot/setores/client"
	"github.com/mistakeknot/setores/internal/agenda"
	"github.com/mistakeknot/setores/internal/config"
	"github.com/mistakeknot/setores/internal/core"
	"github.com/mistakeknot/setores/internal/printers"
	"github.com/mistakeknot/setores/internal/validate"
)

var errNoItem = errors.New("no such item")

// agendaSource acts on one owner's agenda, either in the local slot or on a
// server.
type agendaSource interface {
	Rows(ctx context.Context, q client.ItemQuery) ([]printers.Row, error)
	Days(ctx context.Context, q client.ItemQuery) ([]printers.Day, error)
	Add(ctx context.Context, in client.ItemInput) (core.AgendaItem, error)
	Toggle(ctx context.Context, id string) (core.AgendaItem, error)
	Remove(ctx context.Context, id string) (core.AgendaItem, error)
	Clashes(ctx context.Context) ([]printers.Clash, error)
	Import(ctx context.Context, items []core.AgendaItem) (int, error)
	Replace(ctx context.Context, items []core.AgendaItem) (int, error)
	Export(ctx context.Context, format string, w io.Writer) error
	Close() error
}

type localAgenda struct {
	store *agenda.Store
	now   func() time.Time
	close func() error
}

func toFilter(q client.ItemQuery) agenda.Filter {
	return agenda.Filter{
		Range:         agenda.ParseRange(q.Range),
		Search:        q.Search,
		HideCompleted: q.HideCompleted,
		Category:      q.Category,
		Date:          q.Date,
		WeekFromDate:  q.Week,
	}
}

func (l *localAgenda) rows(items []core.AgendaItem) []printers.Row {
	loc := l.store.Location()
	now := l.now().In(loc)
	conflicts := agenda.Conflicts(l.store.Items(), loc)
	out := make([]printers.Row, 0, len(items))
	for _, it := range items {
		out = append(out, printers.Row{
			Item:     it,
			Conflict: conflicts[it.ID],
			End:      agenda.FormatEndTime(it, loc),
			Relative: agenda.RelativeDate(it.Date, now),
			Today:    agenda.IsToday(it.Date, now),
			Past:     agenda.IsPast(it.Date, now),
		})
	}
	return out
}

func (l *localAgenda) Rows(_ context.Context, q client.ItemQuery) ([]printers.Row, error) {
	return l.rows(l.store.View(toFilter(q))), nil
}

func (l *localAgenda) Days(_ context.Context, q client.ItemQuery) ([]printers.Day, error) {
	now := l.now().In(l.store.Location())
	groups := l.store.Groups(toFilter(q))
	out := make([]printers.Day, 0, len(groups))
	for _, g := range groups {
		out = append(out, printers.Day{
			Date:     g.Date,
			Label:    agenda.FriendlyDate(g.Date),
			Relative: agenda.RelativeDate(g.Date, now),
			Rows:     l.rows(g.Items),
		})
	}
	return out, nil
}

func (l *localAgenda) Add(_ context.Context, in client.ItemInput) (core.AgendaItem, error) {
	item := core.AgendaItem{ID: in.ID, Title: in.Title, Date: in.Date, Duration: in.Duration}
	if in.Time != nil {
		item.Time = *in.Time
	}
	if in.Notes != nil {
		item.Notes = *in.Notes
	}
	if in.Category != nil {
		item.Category = *in.Category
	}
	added, ok := l.store.AddIfAbsent(item)
	if !ok {
		return core.AgendaItem{}, fmt.Errorf("item %q already exists", item.ID)
	}
	return added, nil
}

func (l *localAgenda) Toggle(_ context.Context, id string) (core.AgendaItem, error) {
	item, ok := l.store.ToggleCompleted(id)
	if !ok {
		return core.AgendaItem{}, errNoItem
	}
	return item, nil
}

func (l *localAgenda) Remove(_ context.Context, id string) (core.AgendaItem, error) {
	item, ok := l.store.Remove(id)
	if !ok {
		return core.AgendaItem{}, errNoItem
	}
	return item, nil
}

func (l *localAgenda) Clashes(_ context.Context) ([]printers.Clash, error) {
	items := l.store.Items()
	byID := make(map[string]core.AgendaItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	pairs := l.store.ConflictPairs()
	out := make([]printers.Clash, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, printers.Clash{A: byID[p.A], B: byID[p.B]})
	}
	return out, nil
}

func (l *localAgenda) Import(_ context.Context, items []core.AgendaItem) (int, error) {
	return l.store.Import(items), nil
}

func (l *localAgenda) Replace(_ context.Context, items []core.AgendaItem) (int, error) {
	return l.store.Replace(items), nil
}

func (l *localAgenda) Export(_ context.Context, format string, w io.Writer) error {
	items := agenda.Sort(l.store.Items())
	switch format {
	case "json":
		return agenda.WriteJSON(w, items)
	case "csv":
		return agenda.WriteCSV(w, items, l.store.Location())
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func (l *localAgenda) Close() error { return l.close() }

type remoteAgenda struct {
	c *client.Client
}

func fromViews(views []client.ItemView) []printers.Row {
	out := make([]printers.Row, 0, len(views))
	for _, v := range views {
		out = append(out, printers.Row{
			Item:     v.AgendaItem,
			Conflict: v.Conflict,
			End:      v.End,
			Relative: v.Relative,
			Today:    v.Today,
			Past:     v.Past,
		})
	}
	return out
}

func (r remoteAgenda) Rows(ctx context.Context, q client.ItemQuery) ([]printers.Row, error) {
	views, err := r.c.Items(ctx, q)
	if err != nil {
		return nil, err
	}
	return fromViews(views), nil
}

func (r remoteAgenda) Days(ctx context.Context, q client.ItemQuery) ([]printers.Day, error) {
	groups, err := r.c.Groups(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]printers.Day, 0, len(groups))
	for _, g := range groups {
		out = append(out, printers.Day{Date: g.Date, Label: g.Label, Relative: g.Relative, Rows: fromViews(g.Items)})
	}
	return out, nil
}

func (r remoteAgenda) Add(ctx context.Context, in client.ItemInput) (core.AgendaItem, error) {
	return r.c.Add(ctx, in)
}

func (r remoteAgenda) Toggle(ctx context.Context, id string) (core.AgendaItem, error) {
	item, err := r.c.Toggle(ctx, id)
	if errors.Is(err, client.ErrNotFound) {
		return item, errNoItem
	}
	return item, err
}

func (r remoteAgenda) Remove(ctx context.Context, id string) (core.AgendaItem, error) {
	item, err := r.c.Remove(ctx, id)
	if errors.Is(err, client.ErrNotFound) {
		return item, errNoItem
	}
	return item, err
}

func (r remoteAgenda) Clashes(ctx context.Context) ([]printers.Clash, error) {
	cs, err := r.c.Conflicts(ctx)
	if err != nil {
		return nil, err
	}
	if len(cs.Pairs) == 0 {
		return nil, nil
	}
	views, err := r.c.Items(ctx, client.ItemQuery{})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]core.AgendaItem, len(views))
	for _, v := range views {
		byID[v.ID] = v.AgendaItem
	}
	out := make([]printers.Clash, 0, len(cs.Pairs))
	for _, p := range cs.Pairs {
		out = append(out, printers.Clash{A: byID[p.A], B: byID[p.B]})
	}
	return out, nil
}

func (r remoteAgenda) Import(ctx context.Context, items []core.AgendaItem) (int, error) {
	return r.c.Import(ctx, items)
}

func (r remoteAgenda) Replace(ctx context.Context, items []core.AgendaItem) (int, error) {
	return r.c.Replace(ctx, items)
}

func (r remoteAgenda) Export(ctx context.Context, format string, w io.Writer) error {
	return r.c.Export(ctx, format, w)
}

func (r remoteAgenda) Close() error { return nil }

func openAgenda(ctx context.Context, cfg *config.Config) (agendaSource, error) {
	if cfg.ServerURL != "" {
		if cfg.Owner == "" {
			return nil, errors.New("--owner required with --server")
		}
		return remoteAgenda{c: newClient(cfg)}, nil
	}
	now, err := clock(cfg)
	if err != nil {
		return nil, err
	}
	slot, closeSlot, err := openSlot(ctx, cfg)
	if err != nil {
		return nil, err
	}
	st := agenda.Open(ctx, slot, agenda.Options{Key: agenda.SlotKey(cfg.Owner), Now: now})
	return &localAgenda{store: st, now: now, close: closeSlot}, nil
}

// withAgenda opens the configured agenda, runs fn and closes it.
func withAgenda(cmd *cobra.Command, fn func(ctx context.Context, src agendaSource) error) error {
	cfg, err := settings(cmd)
	if err != nil {
		return err
	}
	src, err := openAgenda(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer src.Close()
	return fn(cmd.Context(), src)
}

func addAgenda(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: base.Wrap80("Manage a personal agenda."),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().String("storage", "", "Agenda storage backend: sqlite, file, postgres or memory.")
	cmd.PersistentFlags().String("storage-path", "", "Database file (sqlite) or directory (file).")

	addAgendaAdd(cmd)
	addAgendaList(cmd)
	addAgendaGroups(cmd)
	addAgendaDone(cmd)
	addAgendaRemove(cmd)
	addAgendaConflicts(cmd)
	addAgendaImport(cmd)
	addAgendaRestore(cmd)
	addAgendaExport(cmd)

	topLevel.AddCommand(cmd)
}

func addAgendaAdd(parent *cobra.Command) {
	output := &base.OutputOptions{}
	var (
		date, at, notes, category string
		duration                  int
	)
	cmd := &cobra.Command{
		Use:   "add <titulo>",
		Short: base.Wrap80("Add an item to the agenda."),
		Example: `
setores agenda add "Reunião de equipe" --date 2025-01-10 --time 09:00 --duration 90 --category Reunião
setores agenda add "Entregar relatório" --date 2025-01-12
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := client.ItemInput{Title: validate.SanitizeString(strings.Join(args, " "))}
			if in.Title == "" {
				return output.HandleError(errors.New("titulo required"))
			}
			if date == "" {
				cfg, err := settings(cmd)
				if err != nil {
					return output.HandleError(err)
				}
				now, err := clock(cfg)
				if err != nil {
					return output.HandleError(err)
				}
				date = now().Format("2006-01-02")
			}
			if !validate.Date(date) {
				return output.HandleError(fmt.Errorf("invalid date %q, want YYYY-MM-DD", date))
			}
			in.Date = date
			if at != "" {
				hhmm, ok := validate.Clock(at)
				if !ok {
					return output.HandleError(fmt.Errorf("invalid time %q, want HH:mm", at))
				}
				in.Time = client.Ptr(hhmm)
			}
			if notes != "" {
				in.Notes = client.Ptr(validate.SanitizeString(notes))
			}
			if category != "" {
				in.Category = client.Ptr(validate.SanitizeString(category))
			}
			if cmd.Flags().Changed("duration") {
				if duration <= 0 {
					return output.HandleError(errors.New("duration must be positive"))
				}
				in.Duration = client.Ptr(duration)
			}
			return output.HandleError(withAgenda(cmd, func(ctx context.Context, src agendaSource) error {
				item, err := src.Add(ctx, in)
				if err != nil {
					return err
				}
				p := printers.New(cmd.OutOrStdout())
				if output.JSON {
					return p.JSON(item)
				}
				p.Notice("Compromisso adicionado", agenda.Summary(item)+" ["+item.ID+"]")
				return nil
			}))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date, YYYY-MM-DD. Defaults to today.")
	cmd.Flags().StringVar(&at, "time", "", "Time of day, HH:mm.")
	cmd.Flags().IntVar(&duration, "duration", core.DefaultDurationMinutes, "Duration in minutes.")
	cmd.Flags().StringVar(&notes, "notes", "", "Free text notes.")
	cmd.Flags().StringVar(&category, "category", "", "Category: "+strings.Join(core.Categories(), ", ")+".")
	base.AddOutputArg(cmd, output)

	parent.AddCommand(cmd)
}

func addQueryFlags(cmd *cobra.Command, q *client.ItemQuery) {
	cmd.Flags().StringVar(&q.Range, "filter", "all", "Relative range: all, today, week or month.")
	cmd.Flags().StringVar(&q.Search, "search", "", "Only items whose titulo or notas contain this text.")
	cmd.Flags().BoolVar(&q.HideCompleted, "hide-completed", false, "Leave out completed items.")
	cmd.Flags().StringVar(&q.Category, "category", "", "Only items of this category.")
	cmd.Flags().StringVar(&q.Date, "date", "", "Only items on this date, YYYY-MM-DD.")
	cmd.Flags().BoolVar(&q.Week, "week", false, "With --date, show seven days from it.")
}

func checkQuery(q client.ItemQuery) error {
	if q.Date != "" && !validate.Date(q.Date) {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD", q.Date)
	}
	return nil
}

func addAgendaList(parent *cobra.Command) {
	output := &base.OutputOptions{}
	q := client.ItemQuery{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: base.Wrap80("List agenda items in date order."),
		Example: `
setores agenda list --filter week
setores agenda list --date 2025-01-10 --week --hide-completed
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkQuery(q); err != nil {
				return output.HandleError(err)
			}
			return output.HandleError(withAgenda(cmd, func(ctx context.Context, src agendaSource) error {
				rows, err := src.Rows(ctx, q)
				if err != nil {
					return err
				}
				p := printers.New(cmd.OutOrStdout())
				if output.JSON {
					items := make([]core.AgendaItem, 0, len(rows))
					for _, r := range rows {
						items = append(items, r.Item)
					}
					return p.JSON(items)
				}
				p.Rows(rows)
				return nil
			}))
		},
	}
	addQueryFlags(cmd, &q)
	base.AddOutputArg(cmd, output)

	parent.AddCommand(cmd)
}

func addAgendaGroups(parent *cobra.Command) {
	q := client.ItemQuery{}
	cmd := &cobra.Command{
		Use:   "groups",
		Short: base.Wrap80("Show agenda items grouped by date."),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkQuery(q); err != nil {
				return err
			}
			return withAgenda(cmd, func(ctx context.Context, src agendaSource) error {
				days, err := src.Days(ctx, q)
				if err != nil {
					return err
				}
				printers.New(cmd.OutOrStdout()).Days(days)
				return nil
			})
		},
	}
	addQueryFlags(cmd, &q)

	parent.AddCommand(cmd)
}

func addAgendaDone(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: base.Wrap80("Toggle whether an item is completed."),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgenda(cmd, func(ctx context.Context, src agendaSource) error {
				item, err := src.Toggle(ctx, args[0])
				if err != nil {
					return fmt.Errorf("toggle %s: %w", args[0], err)
				}
				state := "pendente"
				if item.Completed {
					state = "concluído"
				}
				printers.New(cmd.OutOrStdout()).Notice("Compromisso "+state, agenda.Summary(item))
				return nil
			})
		},
	}

	parent.AddCommand(cmd)
}

func addAgendaRemove(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   base.Wrap80("Remove an item from the agenda."),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgenda(cmd, func(ctx context.Context, src agendaSource) error {
				item, err := src.Remove(ctx, args[0])
				if err != nil {
					return fmt.Errorf("remove %s: %w", args[0], err)
				}
				printers.New(cmd.OutOrStdout()).Notice("Compromisso removido", agenda.Summary(item))
				return nil
			})
		},
	}

	parent.AddCommand(cmd)
}

func addAgendaConflicts(parent *cobra.Command) {
	output := &base.OutputOptions{}
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: base.Wrap80("List pairs of items whose times overlap."),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return output.HandleError(withAgenda(cmd, func(ctx context.Context, src agendaSource) error {
				clashes, err := src.Clashes(ctx)
				if err != nil {
					return err
				}
				p := printers.New(cmd.OutOrStdout())
				if output.JSON {
					pairs := make([]agenda.ConflictPair, 0, len(clashes))
					for _, c := range clashes {
						pairs = append(pairs, agenda.ConflictPair{A: c.A.ID, B: c.B.ID})
					}
					return p.JSON(pairs)
				}
				p.Conflicts(clashes)
				return nil
			}))
		},
	}
	base.AddOutputArg(cmd, output)

	parent.AddCommand(cmd)
}

// readExport loads and checks a JSON export, padding times to HH:mm.
func readExport(path string) ([]core.AgendaItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	items, err := agenda.ReadJSON(f)
	if err != nil {
		return nil, err
	}
	if err := validate.Items(items); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

func addAgendaImport(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: base.Wrap80("Merge items from a JSON export. Items whose id already exists are skipped."),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readExport(args[0])
			if err != nil {
				return err
			}
			return withAgenda(cmd, func(ctx context.Context, src agendaSource) error {
				n, err := src.Import(ctx, items)
				if err != nil {
					return err
				}
				printers.New(cmd.OutOrStdout()).Notice("Importação concluída", fmt.Sprintf("%d compromisso(s) importado(s)", n))
				return nil
			})
		},
	}

	parent.AddCommand(cmd)
}

func addAgendaRestore(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: base.Wrap80("Replace the whole agenda with a JSON export. Items not in the file are dropped."),
		Example: `
setores agenda export > backup.json
setores agenda restore backup.json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readExport(args[0])
			if err != nil {
				return err
			}
			for i := range items {
				items[i].Title = validate.SanitizeString(items[i].Title)
				if items[i].Title == "" {
					return fmt.Errorf("%s: item %d: titulo required", args[0], i)
				}
			}
			return withAgenda(cmd, func(ctx context.Context, src agendaSource) error {
				n, err := src.Replace(ctx, items)
				if err != nil {
					return err
				}
				printers.New(cmd.OutOrStdout()).Notice("Agenda restaurada", fmt.Sprintf("%d compromisso(s) na agenda", n))
				return nil
			})
		},
	}

	parent.AddCommand(cmd)
}

func addAgendaExport(parent *cobra.Command) {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: base.Wrap80("Write the agenda as JSON or CSV."),
		Example: `
setores agenda export > agenda.json
setores agenda export --format csv --out agenda.csv
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != "json" && format != "csv" {
				return fmt.Errorf("unknown format %q, want json or csv", format)
			}
			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return withAgenda(cmd, func(ctx context.Context, src agendaSource) error {
				return src.Export(ctx, format, w)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or csv.")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file instead of stdout.")

	parent.AddCommand(cmd)
}
