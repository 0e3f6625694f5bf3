package agenda

import (
	"sort"
	"time"

	"github.com/mistakeknot/setores/internal/core"
)

// ConflictPair is two items whose intervals overlap.
type ConflictPair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Conflicts returns the ids of timed items overlapping at least one other
// item. Items without a time never appear.
func Conflicts(items []core.AgendaItem, loc *time.Location) map[string]bool {
	out := make(map[string]bool)
	for _, p := range ConflictPairs(items, loc) {
		out[p.A] = true
		out[p.B] = true
	}
	return out
}

// ConflictPairs lists every overlapping pair. It sweeps intervals by start
// time, so each item is only compared with the ones still open when it
// begins; the result matches checking every pair.
func ConflictPairs(items []core.AgendaItem, loc *time.Location) []ConflictPair {
	intervals := make([]Interval, 0, len(items))
	for _, item := range items {
		if iv, ok := IntervalOf(item, loc); ok {
			intervals = append(intervals, iv)
		}
	}
	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})

	var pairs []ConflictPair
	var active []Interval
	for _, cur := range intervals {
		kept := active[:0]
		for _, open := range active {
			if open.End.After(cur.Start) {
				kept = append(kept, open)
			}
		}
		active = kept
		for _, open := range active {
			if open.Overlaps(cur) {
				pairs = append(pairs, ConflictPair{A: open.ID, B: cur.ID})
			}
		}
		active = append(active, cur)
	}
	return pairs
}

// ConflictIDs returns the conflicting ids sorted, for stable output.
func ConflictIDs(items []core.AgendaItem, loc *time.Location) []string {
	set := Conflicts(items, loc)
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
