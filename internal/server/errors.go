package server

import (
	"errors"
	"net/http"

	"github.com/woozymasta/geodash/internal/layerdata"
)

var (
	errUnknownLayer = errors.New("unknown layer")
	errBadDate      = errors.New("date must be YYYY-MM-DD")
)

// statusFor maps resolution errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnknownLayer), errors.Is(err, errBadDate):
		return http.StatusBadRequest
	case errors.Is(err, layerdata.ErrBoundaryNotLoaded):
		return http.StatusConflict
	}

	switch layerdata.Classify(err) {
	case layerdata.FailureFetch, layerdata.FailurePayload, layerdata.FailureFormat:
		return http.StatusBadGateway
	case layerdata.FailureCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}
