package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var templatePlaceholder = regexp.MustCompile(`\{.*?\}`)

// Tokens ordered longest first so "YYYY" wins over "YY".
var formatTokens = []string{"YYYY", "YY", "MM", "M", "DD", "D", "HH", "H", "mm", "ss"}

// Format renders t with moment-style tokens (YYYY, YY, MM, M, DD, D, HH, H, mm, ss).
// Text in square brackets is copied literally.
func Format(t time.Time, layout string) string {
	var b strings.Builder
	for i := 0; i < len(layout); {
		if layout[i] == '[' {
			if end := strings.IndexByte(layout[i:], ']'); end > 0 {
				b.WriteString(layout[i+1 : i+end])
				i += end + 1
				continue
			}
		}

		matched := false
		for _, tok := range formatTokens {
			if strings.HasPrefix(layout[i:], tok) {
				b.WriteString(renderToken(t, tok))
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(layout[i])
			i++
		}
	}
	return b.String()
}

// ExpandTemplate replaces every {layout} placeholder in s with t rendered by Format.
func ExpandTemplate(s string, t time.Time) string {
	return templatePlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		return Format(t, match[1:len(match)-1])
	})
}

func renderToken(t time.Time, tok string) string {
	switch tok {
	case "YYYY":
		return pad(t.Year(), 4)
	case "YY":
		return pad(t.Year()%100, 2)
	case "MM":
		return pad(int(t.Month()), 2)
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "DD":
		return pad(t.Day(), 2)
	case "D":
		return strconv.Itoa(t.Day())
	case "HH":
		return pad(t.Hour(), 2)
	case "H":
		return strconv.Itoa(t.Hour())
	case "mm":
		return pad(t.Minute(), 2)
	case "ss":
		return pad(t.Second(), 2)
	}
	return tok
}

func pad(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
