// Package timeutil holds the minute-of-day arithmetic shared by the planner
// and the timeline.
package timeutil

import (
	"fmt"
	"math"
	"time"
)

const (
	// MinutesPerDay is the number of minutes between two midnights.
	MinutesPerDay = 24 * 60

	// DayKeyLayout is the canonical day key format.
	DayKeyLayout = "2006-01-02"
)

// MinutesSinceMidnight returns t.Hour()*60 + t.Minute() in t's own location.
// Seconds are ignored.
func MinutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// DiffInMinutes returns a-b rounded to whole minutes. The result is negative
// when a precedes b.
func DiffInMinutes(a, b time.Time) int {
	return int(math.Round(a.Sub(b).Minutes()))
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day as seen
// from b's location.
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DayKey returns the canonical key for t's calendar day.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// ParseDayKey parses a day key into local midnight in loc.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DayKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return t, nil
}

// AtMinutes anchors a minute-of-day to day's calendar date as wall-clock
// time, so DST transitions do not shift the result.
func AtMinutes(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, minutes, 0, 0, day.Location())
}

// FormatClock renders minutes since midnight as HH:MM. Values outside a
// single day wrap.
func FormatClock(minutes int) string {
	m := ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Days returns n consecutive calendar days starting at start's day.
func Days(start time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	first := StartOfDay(start)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = first.AddDate(0, 0, i)
	}
	return out
}
