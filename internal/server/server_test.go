package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/woozymasta/geodash/internal/config"
	"github.com/woozymasta/geodash/internal/datasets"
	"github.com/woozymasta/geodash/internal/fetcher"
	"github.com/woozymasta/geodash/internal/geo"
	"github.com/woozymasta/geodash/internal/layerdata"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBoundariesJSON = `{"type":"FeatureCollection","features":[
	{"type":"Feature","geometry":{"type":"Point","coordinates":[80,7]},"properties":{"code":"LK-11"}},
	{"type":"Feature","geometry":{"type":"Point","coordinates":[81,8]},"properties":{"code":"LK-21"}}
]}`

func testConfig() *config.Config {
	return &config.Config{
		Boundary: config.Boundary{Path: "boundaries", AdminCode: "code"},
		Layers: []config.Layer{
			{ID: "poverty", Type: config.TypeNSO, Path: "poverty", AdminCode: "code"},
			{ID: "stations", Type: config.TypePointData, Data: "https://api.example.org/stations"},
		},
	}
}

func newTestServer(t *testing.T, resolver Resolver, withBoundaries bool) *ServerContext {
	t.Helper()

	var b *geo.Boundaries
	if withBoundaries {
		var err error
		b, err = geo.LoadBoundaries([]byte(testBoundariesJSON), "code")
		require.NoError(t, err)
	}

	s, err := NewServerContext(testConfig(), b, resolver)
	require.NoError(t, err)
	return s
}

func engine() *layerdata.Engine {
	store := datasets.NewStore(fstest.MapFS{
		"poverty.json": {Data: []byte(`{"DataList":[{"code":"LK-1","DTVAL_CO":"1.5"}]}`)},
	})
	return layerdata.NewEngine(fetcher.New(fetcher.Options{}), store)
}

func do(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleLayersList(t *testing.T) {
	h := newTestServer(t, engine(), true).Routes()

	rec := do(t, h, "/api/layers")
	require.Equal(t, http.StatusOK, rec.Code)

	var layers []config.Layer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &layers))
	require.Len(t, layers, 2)
	assert.Equal(t, "poverty", layers[0].ID)
}

func TestHandleLayer_Joined(t *testing.T) {
	h := newTestServer(t, engine(), true).Routes()

	rec := do(t, h, "/api/layers/poverty?date=2023-03-05")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Features  geojson.FeatureCollection `json:"features"`
		LayerData []layerdata.DataRecord    `json:"layerData"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Features.Features, 1)
	assert.Equal(t, 1.5, body.Features.Features[0].Properties["data"])
	assert.Len(t, body.LayerData, 1)
}

func TestHandleLayer_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		boundaries bool
		want       int
	}{
		{"unknown layer", "/api/layers/nope", true, http.StatusBadRequest},
		{"bad date", "/api/layers/poverty?date=05.03.2023", true, http.StatusBadRequest},
		{"boundary not loaded", "/api/layers/poverty", false, http.StatusConflict},
		{"fetch failure", "/api/layers/stations", true, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.NotFoundHandler())
			defer srv.Close()

			s := newTestServer(t, engine(), tt.boundaries)
			s.Config.Layers[1].Data = srv.URL + "/stations"

			rec := do(t, s.Routes(), tt.target)
			assert.Equal(t, tt.want, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

type stubResolver struct {
	calls atomic.Int32
}

func (r *stubResolver) Resolve(_ context.Context, p layerdata.Params) (*layerdata.Result, error) {
	r.calls.Add(1)
	if p.Layer.ID == "poverty" {
		return nil, errors.New("dataset broken")
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(nil))
	return &layerdata.Result{Features: fc}, nil
}

func TestHandleResolve(t *testing.T) {
	resolver := &stubResolver{}
	h := newTestServer(t, resolver, true).Routes()

	rec := do(t, h, "/api/resolve?date=2023-03-05")
	require.Equal(t, http.StatusOK, rec.Code)

	var body resolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2023-03-05", body.Date)
	assert.Contains(t, body.Layers, "stations")
	assert.NotContains(t, body.Layers, "poverty")
	assert.Equal(t, "dataset broken", body.Errors["poverty"])
	assert.Equal(t, int32(2), resolver.calls.Load())

	rec = do(t, h, "/api/resolve?id=stations")
	require.Equal(t, http.StatusOK, rec.Code)
	body = resolveResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Layers, 1)
	assert.Empty(t, body.Errors)

	rec = do(t, h, "/api/resolve?id=stations&id=missing")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBoundaries(t *testing.T) {
	h := newTestServer(t, engine(), true).Routes()

	rec := do(t, h, "/api/boundaries")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)

	rec = do(t, h, "/api/boundaries", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = do(t, newTestServer(t, engine(), false).Routes(), "/api/boundaries")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "points.json"), []byte(`[]`), 0o644))

	s := newTestServer(t, engine(), true)
	s.PublicDir = dir
	h := s.Routes()

	rec := do(t, h, "/data/points.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "[]", rec.Body.String())

	rec = do(t, h, "/data/points.json", "If-None-Match", rec.Header().Get("ETag"))
	assert.Equal(t, http.StatusNotModified, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(t, h, "/data/missing.json").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "/../../etc/passwd").Code)
}

func TestGzip(t *testing.T) {
	s := newTestServer(t, engine(), true)
	// large enough to pass the compression threshold
	for i := 0; i < 50; i++ {
		s.Config.Layers = append(s.Config.Layers, config.Layer{ID: "layer" + strconv.Itoa(i), Type: config.TypePointData, Data: "/x"})
	}

	rec := do(t, s.Routes(), "/api/layers", "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, statusFor(&fetcher.FetchError{URL: "x", Status: 500}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&layerdata.UnsupportedFormatError{Format: "csv"}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(datasets.ErrUnknownDatasetKey))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.Canceled))
}
