// Package metrics registers the Prometheus collectors of the layer data engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodash_fetch_requests_total",
		Help: "Remote and local source fetches by mode and outcome",
	}, []string{"mode", "outcome"})
	FetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geodash_fetch_duration_ms",
		Help:    "Source fetch duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})
	FallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodash_fallback_total",
		Help: "Primary/fallback resolutions by layer type and outcome",
	}, []string{"layer_type", "outcome"})
	LayerResolveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodash_layer_resolve_total",
		Help: "Layer resolutions by layer type and status",
	}, []string{"layer_type", "status"})
	JoinedFeatures = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geodash_joined_features",
		Help:    "Number of boundary features kept by a join",
		Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodash_http_requests_total",
		Help: "HTTP requests by route pattern and status code",
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(FetchRequestsTotal)
	prometheus.MustRegister(FetchDurationMs)
	prometheus.MustRegister(FallbackTotal)
	prometheus.MustRegister(LayerResolveTotal)
	prometheus.MustRegister(JoinedFeatures)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
