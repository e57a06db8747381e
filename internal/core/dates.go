package core

import (
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

// DefaultDateFormats is the ordered pattern list used when none is configured.
var DefaultDateFormats = []string{
	"dd/MM/yyyy",
	"yyyy-MM-dd",
	"dd-MM-yyyy",
	"dd.MM.yyyy",
	"yyyy/MM/dd",
}

// fallbackLayouts are tried by MonthKey and YearOf when a date was kept in its
// raw form.
var fallbackLayouts = []string{"02/01/2006", "2/1/2006", "02-01-2006", "01/2006", "1/2006"}

// patternTokens maps user-facing pattern tokens to Go layout fragments.
// Longer tokens must be replaced first. Day and month map to the unpadded
// Go fields, which accept both "5" and "05".
var patternTokens = []struct{ token, layout string }{
	{"yyyy", "2006"},
	{"YYYY", "2006"},
	{"yy", "06"},
	{"YY", "06"},
	{"MM", "1"},
	{"dd", "2"},
	{"DD", "2"},
	{"M", "1"},
	{"d", "2"},
}

// GoLayout converts a pattern such as "dd/MM/yyyy" into a Go time layout.
// Patterns that already contain the Go reference year are returned as is.
func GoLayout(pattern string) string {
	if strings.Contains(pattern, "2006") {
		return pattern
	}
	var b strings.Builder
	for i := 0; i < len(pattern); {
		matched := false
		for _, pt := range patternTokens {
			if strings.HasPrefix(pattern[i:], pt.token) {
				b.WriteString(pt.layout)
				i += len(pt.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

// ParseDate tries each format in order and returns the first match as an
// ISO-8601 date. When nothing matches, the trimmed input is returned
// unchanged so later stages can still make a best-effort guess. The boolean
// is false only for blank input.
func ParseDate(s string, formats []string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, f := range formats {
		if t, err := time.Parse(GoLayout(f), s); err == nil {
			return t.Format(isoLayout), true
		}
	}
	return s, true
}

// MonthKey returns the MM/YYYY grouping key of a date, or UnknownMonth.
func MonthKey(date string) string {
	t, ok := bestEffortDate(date)
	if !ok {
		return UnknownMonth
	}
	return t.Format("01/2006")
}

// YearOf returns the four digit year of a date, or "" when it has none.
func YearOf(date string) string {
	if len(date) >= 4 && isDigits(date[:4]) {
		return date[:4]
	}
	if t, ok := bestEffortDate(date); ok {
		return t.Format("2006")
	}
	return ""
}

// MonthKeyTime parses a MM/YYYY key back into the first day of that month.
func MonthKeyTime(key string) (time.Time, bool) {
	t, err := time.Parse("01/2006", key)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func bestEffortDate(date string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(isoLayout, date); err == nil {
		return t, true
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
