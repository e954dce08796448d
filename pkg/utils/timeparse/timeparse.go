package timeparse

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// layouts tried after cast's built-in formats
var extraLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006 3:04 PM",
	"January 2, 2006 3:04 PM",
	"January 2, 2006 15:04",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006 15:04",
	"2 January 2006 15:04",
	"Monday, January 2, 2006 3:04 PM",
}

// Parse reads s in any supported format. Values without a zone are placed
// in loc, UTC when loc is nil. ok is false for empty or unparseable input.
func Parse(s string, loc *time.Location) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := cast.ToTimeInDefaultLocationE(s, loc); err == nil {
		return t, true
	}

	for _, layout := range extraLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
