package bead

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultUTCOffset is appended to timestamps that were persisted without an
// explicit offset. Historical data was written from hosts in this zone.
const DefaultUTCOffset = "-06:00"

var (
	// timestampShape matches YYYY-MM-DDTHH:MM:SS with optional fraction and
	// optional Z / ±HH:MM offset. A space is accepted in place of the T.
	timestampShape = regexp.MustCompile(
		`^(\d{4}-\d{2}-\d{2})[T ](\d{2}:\d{2}:\d{2})(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)

	// offsetSuffix matches a trailing explicit UTC offset or Z.
	offsetSuffix = regexp.MustCompile(`(Z|[+-]\d{2}:\d{2})$`)
)

// TimestampResult reports the outcome of validating one timestamp value.
type TimestampResult struct {
	Valid   bool
	Error   string
	Warning string
}

// ValidateTimestamp checks that s is a recognizable date-time. An empty
// string is an error. A value matching the date-time shape but lacking an
// offset/Z suffix is valid with a warning; a bare local time must never be
// silently trusted as UTC.
func ValidateTimestamp(s string) TimestampResult {
	if strings.TrimSpace(s) == "" {
		return TimestampResult{Error: "timestamp required"}
	}
	m := timestampShape.FindStringSubmatch(s)
	if m == nil {
		return TimestampResult{Error: fmt.Sprintf("malformed timestamp %q", s)}
	}
	// The shape regexp admits impossible dates like month 13; let the time
	// package be the judge of the calendar.
	if _, err := time.Parse("2006-01-02 15:04:05", m[1]+" "+m[2]); err != nil {
		return TimestampResult{Error: fmt.Sprintf("invalid date-time %q", s)}
	}
	if m[4] == "" {
		return TimestampResult{
			Valid:   true,
			Warning: fmt.Sprintf("timestamp %q has no timezone offset", s),
		}
	}
	return TimestampResult{Valid: true}
}

// NormalizeTimestamp returns s unchanged if it already carries an offset or
// Z suffix, otherwise appends DefaultUTCOffset. Empty input is returned
// unchanged; no value is fabricated.
func NormalizeTimestamp(s string) string {
	return NormalizeTimestampTo(s, DefaultUTCOffset)
}

// NormalizeTimestampTo is NormalizeTimestamp with an explicit offset.
func NormalizeTimestampTo(s, offset string) string {
	if s == "" {
		return s
	}
	if offsetSuffix.MatchString(s) {
		return s
	}
	return s + offset
}

// ParseTime parses a stored timestamp into a time.Time. Values without an
// offset are interpreted in the default offset, matching what
// NormalizeTimestamp would have written.
func ParseTime(s string) (time.Time, error) {
	s = NormalizeTimestamp(s)
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bead: unparseable timestamp %q", s)
}
