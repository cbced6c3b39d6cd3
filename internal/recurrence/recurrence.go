// Package recurrence computes due dates for repeating reminders.
package recurrence

import (
	"fmt"
	"time"
)

// Pattern is the unit a reminder repeats in.
type Pattern string

const (
	Daily   Pattern = "daily"
	Weekly  Pattern = "weekly"
	Monthly Pattern = "monthly"
	Yearly  Pattern = "yearly"
)

// ParsePattern validates a pattern name.
func ParsePattern(s string) (Pattern, error) {
	switch p := Pattern(s); p {
	case Daily, Weekly, Monthly, Yearly:
		return p, nil
	}
	return "", fmt.Errorf("unknown recurrence pattern %q", s)
}

// NextOccurrence adds interval units of pattern to due. Month and year
// arithmetic overflows into the following month the way time.AddDate does,
// so 2024-01-31 plus one month is 2024-03-02. An interval below one is
// treated as one.
func NextOccurrence(due time.Time, pattern Pattern, interval int) (time.Time, error) {
	if interval < 1 {
		interval = 1
	}
	switch pattern {
	case Daily:
		return due.AddDate(0, 0, interval), nil
	case Weekly:
		return due.AddDate(0, 0, 7*interval), nil
	case Monthly:
		return due.AddDate(0, interval, 0), nil
	case Yearly:
		return due.AddDate(interval, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("unknown recurrence pattern %q", pattern)
}

// ShouldContinue reports whether an occurrence on next is still within the
// series. A nil end means the series never ends.
func ShouldContinue(next time.Time, end *time.Time) bool {
	if end == nil {
		return true
	}
	return !next.After(*end)
}
