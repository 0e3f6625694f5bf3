package agenda

import (
	"fmt"
	"time"
)

var (
	weekdays = [...]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"}
	months   = [...]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"}
)

// FriendlyDate renders a date like "sexta-feira, 10 de janeiro de 2025".
// Unparseable input is returned as is.
func FriendlyDate(date string) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s, %d de %s de %d", weekdays[d.Weekday()], d.Day(), months[d.Month()-1], d.Year())
}

// ShortDate renders a date like "sex, 10 jan".
func ShortDate(date string) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s, %d %s", abbrev(weekdays[d.Weekday()]), d.Day(), abbrev(months[d.Month()-1]))
}

// DaysFrom returns the number of calendar days from now's date to date.
func DaysFrom(date string, now time.Time) (int, bool) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(today) / (24 * time.Hour)), true
}

// IsToday reports whether date is now's calendar date.
func IsToday(date string, now time.Time) bool {
	n, ok := DaysFrom(date, now)
	return ok && n == 0
}

// IsPast reports whether date is before now's calendar date.
func IsPast(date string, now time.Time) bool {
	n, ok := DaysFrom(date, now)
	return ok && n < 0
}

// RelativeDate describes date relative to now: Hoje, Amanhã, Ontem, a
// count of days within a week either way, or the full date beyond that.
func RelativeDate(date string, now time.Time) string {
	n, ok := DaysFrom(date, now)
	if !ok {
		return date
	}
	switch {
	case n == 0:
		return "Hoje"
	case n == 1:
		return "Amanhã"
	case n == -1:
		return "Ontem"
	case n > 0 && n <= 7:
		return fmt.Sprintf("Em %d dias", n)
	case n < 0 && n >= -7:
		return fmt.Sprintf("Há %d dias", -n)
	}
	return FriendlyDate(date)
}

func abbrev(s string) string {
	r := []rune(s)
	if len(r) <= 3 {
		return s
	}
	return string(r[:3])
}
