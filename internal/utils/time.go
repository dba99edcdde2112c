package utils

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the wire format for every timestamp the API emits.
const TimestampLayout = "2006-01-02T15:04:05.999999-07:00"

var awareLayouts = []string{
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02T15:04-07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04-07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 date or date-time. A trailing "Z" is
// rewritten to "+00:00" first. Input without an offset is taken as UTC.
// The result is always in UTC.
func ParseTimestamp(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "+00:00"
	}

	for _, layout := range awareLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid isoformat string: %q", value)
}

// FormatTimestamp renders t in UTC with an explicit +00:00 offset.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
