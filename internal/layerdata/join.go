package layerdata

import (
	"fmt"
	"strings"

	"github.com/woozymasta/geodash/internal/geo"
	"github.com/woozymasta/geodash/internal/metrics"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tiendc/go-deepcopy"
)

// DataProperty is the feature property receiving the joined value.
const DataProperty = "data"

// Join attaches records to the boundary features whose administrative code starts with
// the record's admin key. For each feature the first qualifying record, in record order,
// wins; one record may serve several features. Features without a qualifying record are
// left out. A match whose value is nil keeps the feature with its properties unchanged;
// such a feature is not dropped.
// The boundaries are never modified.
//
// The scan is O(features × records).
func Join(b *geo.Boundaries, records []DataRecord) (*geojson.FeatureCollection, error) {
	if b == nil || b.Collection == nil {
		return nil, ErrBoundaryNotLoaded
	}

	keyed := make([]DataRecord, 0, len(records))
	for _, r := range records {
		if r.AdminKey != "" {
			keyed = append(keyed, r)
		}
	}

	out := geojson.NewFeatureCollection()
	if len(b.Collection.BBox) > 0 {
		out.BBox = append(geojson.BBox(nil), b.Collection.BBox...)
	}
	if len(b.Collection.ExtraMembers) > 0 {
		if err := deepcopy.Copy(&out.ExtraMembers, b.Collection.ExtraMembers); err != nil {
			return nil, fmt.Errorf("copy boundary members: %w", err)
		}
	}

	for _, f := range b.Collection.Features {
		code, ok := b.Code(f)
		if !ok {
			continue
		}

		match, ok := firstPrefixMatch(keyed, code)
		if !ok {
			continue
		}

		nf, err := copyFeature(f)
		if err != nil {
			return nil, err
		}

		if match.Value != nil {
			for k, v := range match.Extra {
				nf.Properties[k] = v
			}
			nf.Properties[DataProperty] = Coerce(match.Value)
		}

		out.Append(nf)
	}

	metrics.JoinedFeatures.Observe(float64(len(out.Features)))

	return out, nil
}

func firstPrefixMatch(records []DataRecord, code string) (DataRecord, bool) {
	for _, r := range records {
		if strings.HasPrefix(code, r.AdminKey) {
			return r, true
		}
	}
	return DataRecord{}, false
}

// copyFeature returns a feature sharing nothing mutable with f.
func copyFeature(f *geojson.Feature) (*geojson.Feature, error) {
	var geometry orb.Geometry
	if f.Geometry != nil {
		geometry = orb.Clone(f.Geometry)
	}

	nf := geojson.NewFeature(geometry)
	nf.ID = f.ID
	if len(f.BBox) > 0 {
		nf.BBox = append(geojson.BBox(nil), f.BBox...)
	}

	var props map[string]any
	if err := deepcopy.Copy(&props, map[string]any(f.Properties)); err != nil {
		return nil, fmt.Errorf("copy feature properties: %w", err)
	}
	if props == nil {
		props = make(map[string]any)
	}
	nf.Properties = props

	return nf, nil
}
