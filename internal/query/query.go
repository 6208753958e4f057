// Package query serializes layer query parameters into provider query strings.
package query

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FiltersKey is emitted as a single comma separated "k=v" segment instead of being camel cased.
const FiltersKey = "filters"

// Serialize renders params as "key=value" pairs joined with "&". Keys are camel cased
// and emitted in sorted order. Values are not URL-encoded.
func Serialize(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}

	parts := make([]string, 0, len(params))
	for _, key := range sortedKeys(params) {
		value := params[key]
		if key == FiltersKey {
			if filters, ok := asMap(value); ok {
				parts = append(parts, FiltersKey+"="+serializeFilters(filters))
				continue
			}
		}
		parts = append(parts, CamelCase(key)+"="+stringify(value))
	}

	return strings.Join(parts, "&")
}

// CamelCase converts "begin_date_time", "Begin Date-Time" or "BEGIN_DATE" to "beginDateTime".
func CamelCase(s string) string {
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}

	// cases.Caser is stateful, so one per call
	title := cases.Title(language.Und)

	var b strings.Builder
	b.WriteString(strings.ToLower(words[0]))
	for _, w := range words[1:] {
		b.WriteString(title.String(w))
	}
	return b.String()
}

func serializeFilters(filters map[string]any) string {
	pairs := make([]string, 0, len(filters))
	for _, k := range sortedKeys(filters) {
		pairs = append(pairs, k+"="+stringify(filters[k]))
	}
	return strings.Join(pairs, ",")
}

// splitWords breaks s on separators, lower-to-upper transitions, acronym ends and
// letter/digit boundaries.
func splitWords(s string) []string {
	runes := []rune(s)
	var words []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(r):
				flush()
			case unicode.IsUpper(prev) && unicode.IsUpper(r) &&
				i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			case unicode.IsDigit(prev) != unicode.IsDigit(r):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	return words
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	}
	return nil, false
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
