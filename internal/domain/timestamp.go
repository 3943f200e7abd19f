package domain

import (
	"errors"
	"strings"
	"time"
)

const naiveLayout = "2006-01-02T15:04:05.999999999"

// ParseTimestamp parses an ISO-8601 timestamp from the wire. A trailing UTC marker or
// explicit offset is honoured; naive timestamps are read as UTC. The result is always in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation(naiveLayout, strings.TrimSuffix(s, "Z"), time.UTC)
}

// Cutoff returns the start of the time window: now minus daysBack days, truncated to midnight UTC.
func Cutoff(now time.Time, daysBack int) time.Time {
	d := now.UTC().AddDate(0, 0, -daysBack)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
