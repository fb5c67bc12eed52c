package normalize

import (
	"strconv"
	"strings"
	"time"
)

// Layouts tried in order; the first that parses wins.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"20060102",
}

const (
	minYear = 1900
	maxYear = 2100
)

// ParseDateAt resolves s to a calendar date (UTC midnight). Empty, malformed
// and out-of-range inputs resolve to the calendar date of now.
func ParseDateAt(s string, now time.Time) time.Time {
	if t, ok := parseDate(strings.TrimSpace(s)); ok {
		return t
	}
	return CalendarDate(now)
}

// CalendarDate drops the clock part of t, keeping its wall date
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return inRange(CalendarDate(t))
		}
	}

	// Epoch seconds or milliseconds
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		switch len(s) {
		case 10:
			return inRange(CalendarDate(time.Unix(n, 0).UTC()))
		case 13:
			return inRange(CalendarDate(time.UnixMilli(n).UTC()))
		}
	}

	return time.Time{}, false
}

func inRange(t time.Time) (time.Time, bool) {
	if t.Year() < minYear || t.Year() > maxYear {
		return time.Time{}, false
	}
	return t, true
}
