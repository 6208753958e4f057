// Package geo handles the GeoJSON structures exchanged with the map: administrative
// boundaries, point layers and loosely typed feature properties.
package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// ErrNoAdminCode is returned when a boundary collection is configured without an admin code path.
var ErrNoAdminCode = errors.New("boundary admin code path is empty")

// Boundaries is a read-only administrative boundary collection together with the
// property path holding each feature's administrative code.
type Boundaries struct {
	Collection *geojson.FeatureCollection
	AdminCode  string
}

// LoadBoundaries parses a GeoJSON FeatureCollection.
func LoadBoundaries(data []byte, adminCode string) (*Boundaries, error) {
	if adminCode == "" {
		return nil, ErrNoAdminCode
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boundaries: %w", err)
	}

	return &Boundaries{Collection: fc, AdminCode: adminCode}, nil
}

// Code returns the administrative code of f, if it is a non-empty string.
func (b *Boundaries) Code(f *geojson.Feature) (string, bool) {
	if f == nil {
		return "", false
	}
	v, ok := Lookup(map[string]any(f.Properties), b.AdminCode)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// Len returns the number of boundary features.
func (b *Boundaries) Len() int {
	if b == nil || b.Collection == nil {
		return 0
	}
	return len(b.Collection.Features)
}

// Lookup resolves a dotted path ("a.b.0.c") inside a decoded JSON value.
// It reports false instead of failing when any segment is missing.
func Lookup(v any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case geojson.Properties:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}

	return cur, true
}
