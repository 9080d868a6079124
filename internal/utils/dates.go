package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/microtask-api/internal/constants"
)

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekdayNumber converts t to Monday=1 ... Sunday=7.
func WeekdayNumber(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// DatesBetween lists every calendar date in [start, end).
func DatesBetween(start, end time.Time) []time.Time {
	start = StartOfDay(start)
	end = StartOfDay(end)

	var dates []time.Time
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// ParseDate parses a YYYY-MM-DD string as midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(constants.DateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", value, constants.DateLayout)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(constants.DateLayout)
}

// DateIn returns the calendar date of t as seen from loc, at midnight in loc.
// Drivers may hand stored dates back in UTC; nil loc keeps t's own zone.
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return StartOfDay(t)
}

// CanonicalDayLabel normalizes user input such as "mon" or " MON " to "Mon".
func CanonicalDayLabel(day string) string {
	day = strings.ToLower(strings.TrimSpace(day))
	if day == "" {
		return ""
	}
	return strings.ToUpper(day[:1]) + day[1:]
}
