package common

import (
	"errors"
	"strings"
	"time"
)

// ErrNoLayout is returned by ParseUTC when no layout matched.
var ErrNoLayout = errors.New("time does not match any accepted layout")

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ParseUTC parses s with the first matching layout. Values without a zone
// are read as UTC; the result is always in UTC.
func ParseUTC(s string, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrNoLayout
}

// ParseIn parses a wall-clock time in loc and returns it in UTC.
func ParseIn(s, layout string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(layout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
