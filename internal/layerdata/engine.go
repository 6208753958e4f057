package layerdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/woozymasta/geodash/internal/config"
	"github.com/woozymasta/geodash/internal/datasets"
	"github.com/woozymasta/geodash/internal/dates"
	"github.com/woozymasta/geodash/internal/fetcher"
	"github.com/woozymasta/geodash/internal/geo"
	"github.com/woozymasta/geodash/internal/metrics"
	"github.com/woozymasta/geodash/internal/query"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// Fetcher retrieves a JSON document.
type Fetcher interface {
	Fetch(ctx context.Context, url string, mode fetcher.Mode) ([]byte, error)
}

// DatasetStore serves bundled datasets by key.
type DatasetStore interface {
	Has(key string) bool
	Load(key string) ([]byte, error)
}

// Params is the input of a single layer resolution.
type Params struct {
	// Date selects the day to show; the zero value means no date.
	Date  time.Time
	Layer config.Layer
	// Boundaries is required by joined layers and ignored by point layers.
	Boundaries *geo.Boundaries
}

// Result is the output of a layer resolution. LayerData is nil for point layers.
type Result struct {
	Features  *geojson.FeatureCollection `json:"features"`
	LayerData []DataRecord               `json:"layerData,omitempty"`
}

// Engine resolves layers. It keeps no state between calls and is safe for concurrent use.
type Engine struct {
	fetcher  Fetcher
	datasets DatasetStore
	now      func() time.Time
}

// NewEngine returns an Engine. datasets may be nil when no layer references bundled data.
func NewEngine(f Fetcher, store DatasetStore) *Engine {
	return &Engine{fetcher: f, datasets: store, now: time.Now}
}

// Resolve dispatches on the layer type.
func (e *Engine) Resolve(ctx context.Context, p Params) (*Result, error) {
	start := time.Now()
	var res *Result
	var err error

	switch p.Layer.Type {
	case config.TypeAdminLevelData:
		res, err = e.FetchAdminLevelData(ctx, p)
	case config.TypeNSO:
		res, err = e.FetchNSOData(ctx, p)
	case config.TypePointData:
		var fc *geojson.FeatureCollection
		if fc, err = e.FetchPointData(ctx, p); err == nil {
			res = &Result{Features: fc}
		}
	default:
		err = fmt.Errorf("%w %q", ErrUnknownLayerType, p.Layer.Type)
	}

	status := "ok"
	if err != nil {
		status = string(Classify(err))
	}
	metrics.LayerResolveTotal.WithLabelValues(string(p.Layer.Type), status).Inc()

	event := log.Debug()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.
		Str("layer", p.Layer.ID).
		Str("type", string(p.Layer.Type)).
		Str("date", dates.DayKey(p.Date)).
		Dur("duration", time.Since(start)).
		Msg("Layer resolved")

	return res, err
}

// FetchAdminLevelData fetches tabular records, keeps those of the requested day (or window)
// and joins them onto the boundaries. The fallback source gets the same date filter.
func (e *Engine) FetchAdminLevelData(ctx context.Context, p Params) (*Result, error) {
	if p.Boundaries == nil || p.Boundaries.Collection == nil {
		return nil, ErrBoundaryNotLoaded
	}

	l := p.Layer
	fields := TabularFieldsFor(l)

	fb := Fallback[DataRecord]{
		Primary: func(ctx context.Context) ([]DataRecord, error) {
			body, err := e.fetcher.Fetch(ctx, l.Path, fetcher.ModeFor(l.Path))
			if err != nil {
				return nil, err
			}
			return AdaptTabular(body, fields)
		},
		Keep:          recordDateFilter(p.Date, l.ValidityDays),
		FilterPrimary: true,
		Label:         string(l.Type),
	}
	if l.FallbackData != "" {
		fb.Secondary = func(ctx context.Context) ([]DataRecord, error) {
			body, err := e.load(ctx, l.FallbackData)
			if err != nil {
				return nil, err
			}
			return AdaptTabular(body, fields)
		}
	}

	records, err := fb.Run(ctx)
	if err != nil {
		return nil, err
	}

	features, err := Join(p.Boundaries, records)
	if err != nil {
		return nil, err
	}

	return &Result{Features: features, LayerData: records}, nil
}

// FetchNSOData reads a bundled dataset and joins it onto the boundaries. Bundled
// datasets are not dated, so no date filter applies.
func (e *Engine) FetchNSOData(ctx context.Context, p Params) (*Result, error) {
	if p.Boundaries == nil || p.Boundaries.Collection == nil {
		return nil, ErrBoundaryNotLoaded
	}
	if e.datasets == nil {
		return nil, fmt.Errorf("%w: no dataset store", datasets.ErrUnknownDatasetKey)
	}

	body, err := e.datasets.Load(p.Layer.Path)
	if err != nil {
		return nil, err
	}

	fields := TabularFieldsFor(p.Layer)
	fields.Date = ""
	records, err := AdaptTabular(body, fields)
	if err != nil {
		return nil, err
	}

	features, err := Join(p.Boundaries, records)
	if err != nil {
		return nil, err
	}

	return &Result{Features: features, LayerData: records}, nil
}

// FetchPointData fetches point observations in the layer's dataFormat. On failure it reads
// the fallback source, keeping only the points of the requested day, even when the layer
// has a validity window.
func (e *Engine) FetchPointData(ctx context.Context, p Params) (*geojson.FeatureCollection, error) {
	l := p.Layer
	url := e.pointURL(l, p.Date)

	fb := Fallback[geo.Point]{
		Primary: func(ctx context.Context) ([]geo.Point, error) {
			format := l.DataFormat
			if format == "" {
				format = config.FormatBase
			}
			if format != config.FormatBase && format != config.FormatWMS {
				return nil, &UnsupportedFormatError{Format: string(format)}
			}

			body, err := e.fetcher.Fetch(ctx, url, fetcher.ModeFor(url))
			if err != nil {
				return nil, err
			}
			if format == config.FormatWMS {
				return AdaptWMS(body, p.Date)
			}
			return AdaptBasePoints(body)
		},
		// validityDays widens the API window only; static dumps keep the exact day
		Keep:  pointDateFilter(p.Date),
		Label: string(l.Type),
	}
	if l.FallbackData != "" {
		fb.Secondary = func(ctx context.Context) ([]geo.Point, error) {
			body, err := e.load(ctx, l.FallbackData)
			if err != nil {
				return nil, err
			}
			return AdaptBasePoints(body)
		}
	}

	points, err := fb.Run(ctx)
	if err != nil {
		return nil, err
	}

	return geo.PointsToFeatureCollection(points), nil
}

// pointURL fills {FORMAT} placeholders and, for date-range APIs, appends the
// beginDateTime/endDateTime window and the layer's extra parameters.
func (e *Engine) pointURL(l config.Layer, date time.Time) string {
	templateDate := date
	if templateDate.IsZero() {
		templateDate = e.now().UTC()
	}
	url := dates.ExpandTemplate(l.Data, templateDate)

	if !l.UsesDateRange() {
		return url
	}

	start, end := dates.BuildRange(date, l.ValidityDays)
	params := []string{"beginDateTime=" + start, "endDateTime=" + end}
	if extra := query.Serialize(l.AdditionalQueryParams); extra != "" {
		params = append(params, extra)
	}

	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + strings.Join(params, "&")
}

// LoadBoundaries reads the boundary collection from a bundled dataset or a URL.
func (e *Engine) LoadBoundaries(ctx context.Context, b config.Boundary) (*geo.Boundaries, error) {
	body, err := e.load(ctx, b.Path)
	if err != nil {
		return nil, fmt.Errorf("load boundaries %q: %w", b.Path, err)
	}
	return geo.LoadBoundaries(body, b.AdminCode)
}

// load reads a bundled dataset when ref names one, otherwise fetches ref as a URL.
func (e *Engine) load(ctx context.Context, ref string) ([]byte, error) {
	if e.datasets != nil && e.datasets.Has(ref) {
		return e.datasets.Load(ref)
	}
	return e.fetcher.Fetch(ctx, ref, fetcher.ModeFor(ref))
}

func recordDateFilter(date time.Time, validityDays int) func(DataRecord) bool {
	keep := DateFilter(date, validityDays)
	if keep == nil {
		return nil
	}
	return func(r DataRecord) bool { return keep(r.Date) }
}

func pointDateFilter(date time.Time) func(geo.Point) bool {
	keep := DateFilter(date, 0)
	if keep == nil {
		return nil
	}
	return func(p geo.Point) bool { return keep(p.Properties["date"]) }
}
