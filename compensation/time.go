package compensation

import (
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD CLASSIFICATION
// =============================================================================

const (
	nightStartHour = 18 // inclusive
	nightEndHour   = 6  // exclusive
)

// PeriodForHour classifies a start hour. [6,18) is day, everything else night.
func PeriodForHour(hour int) Period {
	if hour >= nightStartHour || hour < nightEndHour {
		return PeriodNight
	}
	return PeriodDay
}

// ClassifyPeriod classifies a shift by its start time alone. End time and
// duration never matter. A start time that cannot be parsed is day.
func ClassifyPeriod(startTime string) Period {
	hour, _, err := ParseClock(startTime)
	if err != nil {
		return PeriodDay
	}
	return PeriodForHour(hour)
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, &ClockError{Input: s}
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, &ClockError{Input: s}
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, &ClockError{Input: s}
	}
	if len(parts) == 3 {
		if sec, serr := strconv.Atoi(parts[2]); serr != nil || sec < 0 || sec > 59 {
			return 0, 0, &ClockError{Input: s}
		}
	}
	return hour, minute, nil
}

// =============================================================================
// CALENDAR HELPERS
// =============================================================================

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func StartOfMonth(year int, month time.Month) time.Time { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// MonthsBetween lists every (year, month) touched by [from, to], in order.
func MonthsBetween(from, to time.Time) []YearMonth {
	if to.Before(from) {
		return nil
	}
	var months []YearMonth
	cur := StartOfMonth(from.Year(), from.Month())
	last := StartOfMonth(to.Year(), to.Month())
	for !cur.After(last) {
		months = append(months, YearMonth{Year: cur.Year(), Month: cur.Month()})
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

type YearMonth struct {
	Year  int
	Month time.Month
}
