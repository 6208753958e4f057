// Package layerdata resolves a layer configuration and an optional date into map-ready
// GeoJSON: it fetches the layer's sources, falls back to secondary sources on failure,
// filters records by date and joins tabular records onto administrative boundaries.
package layerdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/woozymasta/geodash/internal/datasets"
	"github.com/woozymasta/geodash/internal/fetcher"
)

var (
	// ErrBoundaryNotLoaded is returned when a joined layer is resolved without boundaries.
	ErrBoundaryNotLoaded = errors.New("boundary layer not loaded")
	// ErrUnexpectedPayload is returned when a fetched document does not have the adapter's shape.
	ErrUnexpectedPayload = errors.New("unexpected payload")
	// ErrUnknownLayerType is returned by Resolve for unsupported layer variants.
	ErrUnknownLayerType = errors.New("unknown layer type")
)

// UnsupportedFormatError reports a point layer dataFormat no adapter handles.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unhandled data format: %q", e.Format)
}

// Failure classifies why a source failed.
type Failure string

const (
	FailureNone         Failure = ""
	FailureFetch        Failure = "fetch"
	FailureFormat       Failure = "format"
	FailurePayload      Failure = "payload"
	FailurePrecondition Failure = "precondition"
	FailureCanceled     Failure = "canceled"
	FailureOther        Failure = "other"
)

// Classify maps err onto a Failure class.
func Classify(err error) Failure {
	var fe *fetcher.FetchError
	var ufe *UnsupportedFormatError

	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrBoundaryNotLoaded), errors.Is(err, datasets.ErrUnknownDatasetKey):
		return FailurePrecondition
	case errors.As(err, &ufe):
		return FailureFormat
	case errors.As(err, &fe):
		// client timeouts surface as DeadlineExceeded inside the fetch error
		return FailureFetch
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	case errors.Is(err, ErrUnexpectedPayload):
		return FailurePayload
	default:
		return FailureOther
	}
}

// Retryable reports whether a primary failure should be retried against the fallback source.
// Configuration and precondition defects surface immediately. Fallback.Run also stops
// when the caller's context is done.
func Retryable(err error) bool {
	switch Classify(err) {
	case FailureNone, FailurePrecondition, FailureCanceled:
		return false
	}
	return true
}
