// Package dates turns the date representations emitted by data providers into comparable
// calendar-day keys and builds the date windows used in provider queries.
package dates

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// KeyLayout is the layout of a canonical day key.
const KeyLayout = "2006-01-02"

// Sentinel bounds used when a request carries no date, covering all published data.
const (
	SentinelStart = "2000-01-01"
	SentinelEnd   = "2023-12-21"
)

// Matches "2020-3-5", "2020/03/05", "2020.3", "2020-03-05T10:00:00Z" and so on.
// Groups: 1=year, 2=month, 3=day.
var looseDate = regexp.MustCompile(`^(\d{4})(?:[-/.](\d{1,2})(?:[-/.](\d{1,2}))?)?(?:$|[T\s])`)

var basicDate = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)

var textLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
}

// DayKey returns the YYYY-MM-DD key of v, or "" when v is not a recognisable date.
// Numbers are unix milliseconds. Strings keep the calendar day they were written with.
func DayKey(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(KeyLayout)
	case *time.Time:
		if x == nil {
			return ""
		}
		return DayKey(*x)
	case int:
		return fromMillis(float64(x))
	case int64:
		return fromMillis(float64(x))
	case float64:
		return fromMillis(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return ""
		}
		return fromMillis(f)
	case string:
		return fromString(x)
	default:
		return ""
	}
}

// Parse resolves v to midnight UTC of its calendar day.
func Parse(v any) (time.Time, bool) {
	key := DayKey(v)
	if key == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(KeyLayout, key)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// BuildRange returns the day keys halfWidthDays before and after center.
// A zero center yields the sentinel range.
func BuildRange(center time.Time, halfWidthDays int) (string, string) {
	if center.IsZero() {
		return SentinelStart, SentinelEnd
	}
	if halfWidthDays < 0 {
		halfWidthDays = 0
	}
	start := center.AddDate(0, 0, -halfWidthDays)
	end := center.AddDate(0, 0, halfWidthDays)
	return start.Format(KeyLayout), end.Format(KeyLayout)
}

// InRange reports whether key lies in the inclusive window [start, end].
// Canonical keys order lexicographically.
func InRange(key, start, end string) bool {
	if key == "" {
		return false
	}
	return key >= start && key <= end
}

func fromMillis(ms float64) string {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return ""
	}
	return time.UnixMilli(int64(ms)).UTC().Format(KeyLayout)
}

func fromString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if m := looseDate.FindStringSubmatch(s); m != nil {
		return assemble(m[1], m[2], m[3])
	}
	if m := basicDate.FindStringSubmatch(s); m != nil {
		return assemble(m[1], m[2], m[3])
	}

	for _, layout := range textLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(KeyLayout)
		}
	}

	return ""
}

// assemble validates the parts and pads them. Missing month or day default to 1.
func assemble(year, month, day string) string {
	y, err := strconv.Atoi(year)
	if err != nil {
		return ""
	}
	m, d := 1, 1
	if month != "" {
		if m, err = strconv.Atoi(month); err != nil {
			return ""
		}
	}
	if day != "" {
		if d, err = strconv.Atoi(day); err != nil {
			return ""
		}
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalises overflow (Feb 30 -> Mar 1); reject it instead
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return ""
	}
	return t.Format(KeyLayout)
}
