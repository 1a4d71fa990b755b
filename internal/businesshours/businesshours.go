// Package businesshours computes elapsed working time on a fixed UTC
// calendar. Saturdays and Sundays contribute nothing; partial first and last
// days are clipped to the actual instants.
package businesshours

import "time"

// OneBusinessDay is the within-one-day classification threshold.
const OneBusinessDay = 24.0

// Elapsed returns the business hours between start and end. A reversed range
// yields 0, never a negative duration.
func Elapsed(start, end time.Time) float64 {
	start = start.UTC()
	end = end.UTC()
	if !end.After(start) {
		return 0
	}

	total := 0.0
	day := truncateToDay(start)
	for !day.After(end) {
		if isWeekday(day) {
			dayStart := day
			dayEnd := day.AddDate(0, 0, 1)
			// Clip the day window to [start, end).
			if dayStart.Before(start) {
				dayStart = start
			}
			if dayEnd.After(end) {
				dayEnd = end
			}
			if dayEnd.After(dayStart) {
				total += dayEnd.Sub(dayStart).Hours()
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return total
}

// WithinOneDay reports whether end falls within one business day of start.
func WithinOneDay(start, end time.Time) bool {
	return Elapsed(start, end) <= OneBusinessDay
}

// WeekStart returns the Monday 00:00 UTC beginning the ISO week containing t.
// A Sunday maps to the preceding Monday.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return truncateToDay(t).AddDate(0, 0, -offset)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isWeekday(t time.Time) bool {
	weekday := t.Weekday()
	return weekday != time.Saturday && weekday != time.Sunday
}
