// Package agenda implements the personal agenda: item intervals, conflict
// detection, the filter and grouping pipeline and the persisted store.
package agenda

import (
	"time"

	"github.com/mistakeknot/setores/internal/core"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04"
)

// Interval is the half-open span [Start, End) an item occupies.
type Interval struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two intervals share any instant. Touching
// endpoints do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// ParseDateTime combines a calendar date and an optional HH:mm clock in loc.
// A missing clock means midnight.
func ParseDateTime(date, clock string, loc *time.Location) (time.Time, bool) {
	if date == "" {
		return time.Time{}, false
	}
	if clock == "" {
		clock = "00:00"
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(dateTimeLayout, date+"T"+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Start returns the instant an item begins.
func Start(item core.AgendaItem, loc *time.Location) (time.Time, bool) {
	return ParseDateTime(item.Date, item.Time, loc)
}

// End returns Start plus the item's duration. The default duration is
// applied here, never stored on the item.
func End(item core.AgendaItem, loc *time.Location) (time.Time, bool) {
	start, ok := Start(item, loc)
	if !ok {
		return time.Time{}, false
	}
	return start.Add(time.Duration(item.DurationMinutes()) * time.Minute), true
}

// IntervalOf returns the item's interval. Items without a time have no end
// boundary and report false.
func IntervalOf(item core.AgendaItem, loc *time.Location) (Interval, bool) {
	if item.Time == "" {
		return Interval{}, false
	}
	start, ok := Start(item, loc)
	if !ok {
		return Interval{}, false
	}
	end, _ := End(item, loc)
	return Interval{ID: item.ID, Start: start, End: end}, true
}

// FormatEndTime renders the item's end as HH:mm, or "" when it has none.
func FormatEndTime(item core.AgendaItem, loc *time.Location) string {
	if item.Time == "" {
		return ""
	}
	end, ok := End(item, loc)
	if !ok {
		return ""
	}
	return end.Format("15:04")
}
