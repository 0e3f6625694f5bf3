package agenda

import (
	"sort"
	"strings"
	"time"

	"github.com/mistakeknot/setores/internal/core"
)

// Range selects the relative date window used when no explicit date is set.
type Range string

const (
	RangeAll   Range = "all"
	RangeToday Range = "today"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// ParseRange maps a query value to a Range. Unknown values mean RangeAll.
func ParseRange(v string) Range {
	switch Range(strings.ToLower(strings.TrimSpace(v))) {
	case RangeToday:
		return RangeToday
	case RangeWeek:
		return RangeWeek
	case RangeMonth:
		return RangeMonth
	default:
		return RangeAll
	}
}

// AllCategories is the sentinel the web client sends for "no category filter".
const AllCategories = "__all__"

// Filter describes one view over the agenda.
type Filter struct {
	Range         Range
	Search        string
	HideCompleted bool
	Category      string
	// Date, when set (YYYY-MM-DD), replaces Range with that single day.
	Date string
	// WeekFromDate extends Date's window by seven days.
	WeekFromDate bool
}

// Group is the items of one calendar date.
type Group struct {
	Date  string            `json:"date"`
	Items []core.AgendaItem `json:"items"`
}

// Sort returns a copy of items ordered by date then time.
func Sort(items []core.AgendaItem) []core.AgendaItem {
	out := make([]core.AgendaItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortKey() < out[j].SortKey()
	})
	return out
}

// Apply sorts items and runs them through the completion, category, date
// and text stages in that order.
func Apply(items []core.AgendaItem, f Filter, now time.Time) []core.AgendaItem {
	loc := now.Location()
	base := Sort(items)

	if f.HideCompleted {
		base = keep(base, func(i core.AgendaItem) bool { return !i.Completed })
	}
	if category := strings.TrimSpace(f.Category); categoryActive(category) {
		base = keep(base, func(i core.AgendaItem) bool { return strings.TrimSpace(i.Category) == category })
	}

	if from, to, bounded := window(f, now); bounded {
		base = keep(base, func(i core.AgendaItem) bool {
			dt, ok := Start(i, loc)
			if !ok {
				return false
			}
			return !dt.Before(from) && !dt.After(to)
		})
	}

	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return base
	}
	return keep(base, func(i core.AgendaItem) bool {
		return strings.Contains(strings.ToLower(i.Title), q) ||
			strings.Contains(strings.ToLower(i.Notes), q)
	})
}

// GroupByDate buckets items by date, dates ascending, each bucket ordered by
// time with untimed items first.
func GroupByDate(items []core.AgendaItem) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, item := range items {
		i, ok := index[item.Date]
		if !ok {
			i = len(groups)
			index[item.Date] = i
			groups = append(groups, Group{Date: item.Date})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Date < groups[j].Date })
	for _, g := range groups {
		sort.SliceStable(g.Items, func(i, j int) bool {
			return g.Items[i].ClockOrMidnight() < g.Items[j].ClockOrMidnight()
		})
	}
	return groups
}

// window returns the inclusive bounds of the date stage. bounded is false
// when every item passes.
func window(f Filter, now time.Time) (from, to time.Time, bounded bool) {
	loc := now.Location()
	if f.Date != "" {
		day, ok := ParseDateTime(f.Date, "", loc)
		if !ok {
			// An unparseable selection matches nothing.
			return time.Time{}, time.Time{}.Add(-time.Nanosecond), true
		}
		end := endOfDay(day)
		if f.WeekFromDate {
			end = end.AddDate(0, 0, 7)
		}
		return day, end, true
	}

	today := startOfDay(now)
	switch f.Range {
	case RangeToday:
		return today, endOfDay(today), true
	case RangeWeek:
		return today, today.AddDate(0, 0, 7), true
	case RangeMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		last := first.AddDate(0, 1, -1)
		return first, endOfDay(last), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

func categoryActive(c string) bool {
	return c != "" && c != AllCategories && c != string(RangeAll)
}

func keep(items []core.AgendaItem, pred func(core.AgendaItem) bool) []core.AgendaItem {
	out := make([]core.AgendaItem, 0, len(items))
	for _, item := range items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}
