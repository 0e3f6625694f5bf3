// Package validate holds the input checks and contact formatting shared by
// the HTTP API and the CLI.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mistakeknot/setores/internal/core"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern  = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)
	nonDigits    = regexp.MustCompile(`\D`)
)

// MaxStringLen bounds free text accepted from clients.
const MaxStringLen = 1000

// Email reports whether v looks like an e-mail address.
func Email(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && emailPattern.MatchString(v)
}

// OptionalEmail accepts an empty value or a valid address.
func OptionalEmail(v string) bool {
	return strings.TrimSpace(v) == "" || Email(v)
}

// Phone accepts Brazilian numbers of 8 to 11 digits, punctuation ignored.
func Phone(v string) bool {
	n := len(Digits(v))
	return n >= 8 && n <= 11
}

// Date accepts calendar dates written as YYYY-MM-DD.
func Date(v string) bool {
	if !datePattern.MatchString(v) {
		return false
	}
	_, err := time.Parse("2006-01-02", v)
	return err == nil
}

// Time accepts a 24h clock written as H:MM or HH:MM.
func Time(v string) bool {
	return timePattern.MatchString(v)
}

// Clock validates v as a time of day and pads the hour to two digits, so
// "9:05" becomes "09:05".
func Clock(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if !Time(v) {
		return "", false
	}
	if len(v) == 4 {
		v = "0" + v
	}
	return v, true
}

// Items checks a collection read from an export, in place. Dates must be
// valid and times are normalised by Clock. The error names the first bad item
// by position.
func Items(items []core.AgendaItem) error {
	for i := range items {
		if !Date(items[i].Date) {
			return fmt.Errorf("item %d: invalid data %q", i, items[i].Date)
		}
		if items[i].Time == "" {
			continue
		}
		clock, ok := Clock(items[i].Time)
		if !ok {
			return fmt.Errorf("item %d: invalid hora %q", i, items[i].Time)
		}
		items[i].Time = clock
	}
	return nil
}

// Digits strips everything but digits.
func Digits(v string) string {
	return nonDigits.ReplaceAllString(v, "")
}

// FormatPhone renders 10 and 11 digit numbers as (DD) NNNN-NNNN and
// (DD) NNNNN-NNNN. Other inputs are returned unchanged.
func FormatPhone(v string) string {
	d := Digits(v)
	switch len(d) {
	case 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	case 11:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	default:
		return v
	}
}

// SanitizeString trims v, drops angle brackets and caps it at MaxStringLen
// characters.
func SanitizeString(v string) string {
	v = strings.TrimSpace(v)
	v = strings.NewReplacer("<", "", ">", "").Replace(v)
	if utf8.RuneCountInString(v) > MaxStringLen {
		v = string([]rune(v)[:MaxStringLen])
	}
	return v
}
