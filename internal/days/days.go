// Package days converts between the day-count fields used by the shadow
// table and calendar values. All counts are days since the Unix epoch.
package days

import (
	"fmt"
	"strconv"
	"time"
)

const secondsPerDay = 86400

// Date turns a day count into the matching UTC timestamp.
func Date(count int64) time.Time {
	return time.Unix(count*secondsPerDay, 0).UTC()
}

// Count turns a timestamp back into days since the epoch.
func Count(t time.Time) int64 {
	return t.Unix() / secondsPerDay
}

// Today is the current day count.
func Today() int64 {
	return Count(time.Now())
}

// ParseDate parses an optional date field. The empty string means the
// field is absent.
func ParseDate(field string) (*time.Time, error) {
	if field == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid day count %q: %w", field, err)
	}
	t := Date(n)
	return &t, nil
}

// FormatDate renders a date as its day count, or as the empty string
// when absent.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(Count(*t), 10)
}

// ParseDuration parses an optional duration-in-days field.
func ParseDuration(field string) (*int64, error) {
	if field == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", field, err)
	}
	return &n, nil
}

// FormatDuration renders a duration in days, or the empty string when
// absent.
func FormatDuration(d *int64) string {
	if d == nil {
		return ""
	}
	return strconv.FormatInt(*d, 10)
}
