package etl

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layouts tried after dateparse gives up. dateparse covers the common US and
// ISO shapes; these catch a few day-first forms seen in exported ledgers.
var fallbackLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"2006-01",
}

// ParseDate parses a cell into a timestamp, accepting common formats.
// Returns false when the value cannot be read as a date.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if parsed, err := dateparse.ParseAny(s); err == nil {
			return parsed, true
		}
		for _, layout := range fallbackLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
