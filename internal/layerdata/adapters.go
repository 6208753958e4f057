package layerdata

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/woozymasta/geodash/internal/config"
	"github.com/woozymasta/geodash/internal/geo"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// DefaultNSOValueField is read when an nso layer does not name a dataField.
const DefaultNSOValueField = "DTVAL_CO"

// TabularFields names the record fields the tabular adapter reads.
// Every field is a gjson path, so nested values ("stats.mean") resolve.
type TabularFields struct {
	AdminCode  string
	Value      string
	Date       string
	InfoFields []string
}

// TabularFieldsFor derives the fields of a joined layer.
func TabularFieldsFor(l config.Layer) TabularFields {
	value := l.DataField
	if value == "" && l.Type == config.TypeNSO {
		value = DefaultNSOValueField
	}
	return TabularFields{
		AdminCode:  l.AdminCode,
		Value:      value,
		Date:       "date",
		InfoFields: l.FeatureInfoNames(),
	}
}

// AdaptTabular converts a {"DataList": [...]} document into records. Rows without a
// truthy admin key are dropped; a missing value becomes nil.
func AdaptTabular(body []byte, fields TabularFields) ([]DataRecord, error) {
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: tabular source is not an object", ErrUnexpectedPayload)
	}

	list := doc.Get("DataList")
	if !list.Exists() || list.Type == gjson.Null {
		return []DataRecord{}, nil
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: DataList is not an array", ErrUnexpectedPayload)
	}

	rows := list.Array()
	records := make([]DataRecord, 0, len(rows))
	for _, row := range rows {
		key, ok := adminKey(row.Get(fields.AdminCode))
		if !ok {
			continue
		}

		rec := DataRecord{
			AdminKey: key,
			Value:    jsonValue(row.Get(fields.Value)),
		}
		if fields.Date != "" {
			rec.Date = jsonValue(row.Get(fields.Date))
		}
		for _, name := range fields.InfoFields {
			if v := row.Get(name); v.Exists() {
				if rec.Extra == nil {
					rec.Extra = make(map[string]any, len(fields.InfoFields))
				}
				rec.Extra[name] = v.Value()
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

// AdaptWMS converts a GeoJSON feature collection of points into flat point records.
// GeoJSON coordinates are [lon, lat]. Every point gets the request date in unix
// milliseconds unless its own properties carry a date.
func AdaptWMS(body []byte, date time.Time) ([]geo.Point, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
	}

	points := make([]geo.Point, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			log.Debug().
				Int("feature", i).
				Str("geometry", geometryType(f.Geometry)).
				Msg("Skipping non-point WMS feature")
			continue
		}

		props := make(map[string]any, len(f.Properties)+1)
		if !date.IsZero() {
			props["date"] = date.UnixMilli()
		}
		for k, v := range f.Properties {
			props[k] = v
		}

		points = append(points, geo.Point{Lat: pt.Lat(), Lon: pt.Lon(), Properties: props})
	}

	return points, nil
}

// AdaptBasePoints decodes a JSON array already shaped as point records.
func AdaptBasePoints(body []byte) ([]geo.Point, error) {
	if !gjson.ParseBytes(body).IsArray() {
		return nil, fmt.Errorf("%w: point source is not an array", ErrUnexpectedPayload)
	}

	var points []geo.Point
	if err := json.Unmarshal(body, &points); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
	}
	if points == nil {
		points = []geo.Point{}
	}
	return points, nil
}

// adminKey accepts non-empty strings and non-zero numbers, the values JavaScript treats as truthy.
func adminKey(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.String:
		return r.Str, r.Str != ""
	case gjson.Number:
		if r.Num == 0 {
			return "", false
		}
		return r.Raw, true
	default:
		return "", false
	}
}

func jsonValue(r gjson.Result) any {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	return r.Value()
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "none"
	}
	return g.GeoJSONType()
}
