package layerdata

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// DataRecord is one tabular row reduced to its administrative key and value.
// Value is a string, a number or nil. Extra carries the layer's feature info fields.
type DataRecord struct {
	AdminKey string
	Value    any
	Date     any
	Extra    map[string]any
}

// MarshalJSON flattens the record: {"adminKey":..,"value":..,"date":..,<extra>...}.
func (r DataRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["adminKey"] = r.AdminKey
	out["value"] = r.Value
	if r.Date != nil {
		out["date"] = r.Date
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat form written by MarshalJSON.
func (r *DataRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	key, ok := raw["adminKey"].(string)
	if !ok && raw["adminKey"] != nil {
		return fmt.Errorf("adminKey: expected string, got %T", raw["adminKey"])
	}
	r.AdminKey = key
	r.Value = raw["value"]
	r.Date = raw["date"]
	delete(raw, "adminKey")
	delete(raw, "value")
	delete(raw, "date")

	r.Extra = nil
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Coerce turns numeric-looking strings into float64, reading the leading number the way
// JavaScript's parseFloat does ("12.5mm" is 12.5). Other values pass through unchanged.
func Coerce(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if f, ok := parseFloatPrefix(s); ok {
		return f
	}
	return v
}

func parseFloatPrefix(s string) (float64, bool) {
	m := numericPrefix.FindString(trimLeftSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func trimLeftSpace(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
}
