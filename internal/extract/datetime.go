package extract

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"newsarc/internal/types"
)

// isoLayouts are tried before the lenient pass. Structured metadata and
// <time datetime> attributes are ISO 8601 with or without seconds/zone.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime parses a timestamp from structured metadata or visible text
// and normalizes it to Taipei time. Naive timestamps are assumed to
// already be Taipei-local. Returns false when nothing parseable remains.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, types.Taipei); err == nil {
			return t.In(types.Taipei), true
		}
	}

	// Visible bylines carry looser formats (RFC1123 dates, slashes,
	// month names); dateparse covers those.
	if t, err := dateparse.ParseIn(s, types.Taipei); err == nil {
		return t.In(types.Taipei), true
	}

	return time.Time{}, false
}
