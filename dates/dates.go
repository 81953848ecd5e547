// Package dates normalizes instants into the day and week boundaries the
// progression engine reasons about. Weeks start on Monday.
package dates

import "time"

const dayKeyLayout = "2006-01-02"

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfWeek truncates t to the Monday midnight of its week.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// DayKey is the stable mapping key for the calendar day containing t.
func DayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

func SameDay(a, b time.Time) bool {
	return DayKey(a) == DayKey(b)
}

func SameWeek(a, b time.Time) bool {
	return StartOfWeek(a).Equal(StartOfWeek(b))
}
