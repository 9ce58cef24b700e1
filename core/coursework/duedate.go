package coursework

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

// layouts without an explicit offset are read in the checker's location.
var dueDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006",
}

// ParseDueDate reads a stored due date: an RFC 3339 string, a local date[-time] string or epoch milliseconds
// (before or after 1970, within ±8.64e15).
// Any other value yields an invalid null.Time, ie. "no due date".
func ParseDueDate(raw interface{}, loc *time.Location) null.Time {
	if loc == nil {
		loc = time.UTC
	}

	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return null.Time{}
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return null.TimeFrom(t)
		}
		for _, layout := range dueDateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return null.TimeFrom(t)
			}
		}
		return null.Time{}
	case float64:
		return fromMillis(v)
	case int64:
		return fromMillis(float64(v))
	case int:
		return fromMillis(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return null.Time{}
		}
		return fromMillis(f)
	default:
		return null.Time{}
	}
}

// maxEpochMillis bounds epoch due dates to ±100,000,000 days around 1970.
const maxEpochMillis = 8.64e15

func fromMillis(ms float64) null.Time {
	if math.IsNaN(ms) || math.Abs(ms) > maxEpochMillis {
		return null.Time{}
	}
	return null.TimeFrom(time.UnixMilli(int64(ms)))
}
