// Package calendar holds the date arithmetic shared by the projection steps.
//
// All helpers work on calendar dates: the time-of-day is dropped and dates
// from different zones compare by their wall dates.
package calendar

import (
	"math"
	"time"
)

// StepDays is the nominal length of one monthly cycle.
const StepDays = 30

// Date returns t's wall date as midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Before reports whether a's date is strictly before b's date.
func Before(a, b time.Time) bool {
	return Date(a).Before(Date(b))
}

// DaysBetween returns the number of whole days from a's date to b's date.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(Date(b).Sub(Date(a)).Hours() / 24))
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// OnDay moves t to the given day of its own month, clamped to the month's
// last day.
func OnDay(t time.Time, day int) time.Time {
	y, m, _ := t.Date()
	if last := DaysIn(y, m, t.Location()); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(y, m, day, 0, 0, 0, 0, t.Location())
}

// Advance moves t forward by cycles*StepDays days and then back onto
// anchorDay within the month it lands in.
//
// Anchoring to a fixed day keeps month-end dates from drifting: Jan 31
// advances to Mar 31 (via Mar 2), and Mar 31 to Apr 30. The result is
// always after t: Dec 1 lands on Dec 31 and moves on to Jan 1 rather than
// back to Dec 1.
func Advance(t time.Time, cycles, anchorDay int) time.Time {
	from := Date(t)
	landed := from.AddDate(0, 0, cycles*StepDays)
	next := OnDay(landed, anchorDay)
	if !next.After(from) {
		y, m, _ := landed.Date()
		next = OnDay(time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC), anchorDay)
	}
	return next
}

// MonthIndex orders months across years.
func MonthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}
