package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Point is a flat point observation: coordinates plus arbitrary properties such as "date".
type Point struct {
	Lat        float64
	Lon        float64
	Properties map[string]any
}

var errMissingCoordinates = errors.New("point without lat/lon")

// UnmarshalJSON accepts {"lat":..,"lon":..,...}; coordinates may be numbers or numeric strings.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	lat, okLat := toFloat(raw["lat"])
	lon, okLon := toFloat(raw["lon"])
	if !okLat || !okLon {
		return fmt.Errorf("%w: lat=%v lon=%v", errMissingCoordinates, raw["lat"], raw["lon"])
	}

	delete(raw, "lat")
	delete(raw, "lon")

	p.Lat, p.Lon, p.Properties = lat, lon, raw
	return nil
}

// MarshalJSON writes the flat form read by UnmarshalJSON.
func (p Point) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Properties)+2)
	for k, v := range p.Properties {
		out[k] = v
	}
	out["lat"] = p.Lat
	out["lon"] = p.Lon
	return json.Marshal(out)
}

// PointsToFeatureCollection wraps each point in a Point feature carrying its other fields
// as properties. An empty input yields an empty collection.
func PointsToFeatureCollection(points []Point) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
		for k, v := range p.Properties {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc
}
