package layerdata

import (
	"context"
	"time"

	"github.com/woozymasta/geodash/internal/dates"
	"github.com/woozymasta/geodash/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Source produces the records of one source.
type Source[T any] func(ctx context.Context) ([]T, error)

// Fallback runs Primary and, when it fails with a retryable error, Secondary.
// Secondary sources are static dumps, so Keep is always applied to their records.
type Fallback[T any] struct {
	Primary   Source[T]
	Secondary Source[T]
	// Keep filters records; nil keeps everything.
	Keep func(T) bool
	// FilterPrimary applies Keep to the primary records as well.
	FilterPrimary bool
	// Label identifies the caller in logs and metrics.
	Label string
}

// Run resolves the records. Primary and Secondary run strictly one after the other.
// When both fail the secondary error is returned unchanged.
func (f Fallback[T]) Run(ctx context.Context) ([]T, error) {
	records, err := f.Primary(ctx)
	if err == nil {
		metrics.FallbackTotal.WithLabelValues(f.Label, "primary").Inc()
		if f.FilterPrimary {
			records = filter(records, f.Keep)
		}
		return records, nil
	}

	if ctx.Err() != nil || !Retryable(err) || f.Secondary == nil {
		metrics.FallbackTotal.WithLabelValues(f.Label, "failed").Inc()
		return nil, err
	}

	log.Warn().
		Err(err).
		Str("layer", f.Label).
		Str("failure", string(Classify(err))).
		Msg("Primary source failed, using fallback")

	records, err = f.Secondary(ctx)
	if err != nil {
		metrics.FallbackTotal.WithLabelValues(f.Label, "failed").Inc()
		return nil, err
	}

	metrics.FallbackTotal.WithLabelValues(f.Label, "fallback").Inc()
	return filter(records, f.Keep), nil
}

func filter[T any](records []T, keep func(T) bool) []T {
	if keep == nil {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// DateFilter returns a predicate over record date values matching the calendar day of
// date, or the ±validityDays window around it. A zero date matches everything.
func DateFilter(date time.Time, validityDays int) func(any) bool {
	if date.IsZero() {
		return nil
	}

	if validityDays > 0 {
		start, end := dates.BuildRange(date, validityDays)
		return func(v any) bool {
			return dates.InRange(dates.DayKey(v), start, end)
		}
	}

	key := dates.DayKey(date)
	return func(v any) bool {
		return dates.DayKey(v) == key
	}
}
