package accidents

import (
	"strings"
	"time"
)

const (
	// DateTimeLayout is the form Load rewrites parsed accident dates into.
	DateTimeLayout = "2006-01-02 15:04:05"
	// CleanDateLayout is the form Clean rewrites accident dates into.
	CleanDateLayout = "2006/01/02"
	// CleanHourLayout is the form Clean rewrites accident hours into.
	CleanHourLayout = "15:04"
)

// DefaultDateLayouts are tried in order when no layouts are configured.
var DefaultDateLayouts = []string{
	"2006-01-02",
	DateTimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	CleanDateLayout,
	"2006/01/02 15:04:05",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"01/02/2006 03:04:05 PM",
	"1/2/2006",
	"1/2/2006 15:04",
	"01-02-2006",
}

// DefaultHourLayouts are tried in order when no layouts are configured.
var DefaultHourLayouts = []string{
	"15:04:05",
	CleanHourLayout,
	"3:04:05 PM",
	"3:04 PM",
	"03:04:05 PM",
	"03:04 PM",
	DateTimeLayout,
}

// parseWithLayouts returns the first successful parse of v.
func parseWithLayouts(v string, layouts []string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseStoredDate parses a date cell written by Load or Clean.
func parseStoredDate(v string) (time.Time, bool) {
	return parseWithLayouts(v, []string{CleanDateLayout, DateTimeLayout})
}
