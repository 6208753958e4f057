// Package server exposes resolved layers over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/geodash/internal/config"
	"github.com/woozymasta/geodash/internal/dates"
	"github.com/woozymasta/geodash/internal/layerdata"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const etagCap = 64

// resolveResponse is the body of a batch resolution. Failed layers are reported
// in Errors and do not fail the request.
type resolveResponse struct {
	Date   string                     `json:"date,omitempty"`
	Layers map[string]json.RawMessage `json:"layers"`
	Errors map[string]string          `json:"errors,omitempty"`
}

// HandleLayersList serves the configured layers.
func (s *ServerContext) HandleLayersList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Config.Layers)
}

// HandleLayer resolves a single layer for the optional ?date=YYYY-MM-DD.
func (s *ServerContext) HandleLayer(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}

	layer, ok := s.Config.Layer(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, fmt.Errorf("%w %q", errUnknownLayer, chi.URLParam(r, "id")))
		return
	}

	payload, err := s.resolve(r.Context(), layer, date)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, payload)
}

// HandleResolve resolves every ?id= layer (all layers when none is given) concurrently.
func (s *ServerContext) HandleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date, err := parseDate(q.Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}

	layers := s.Config.Layers
	if ids := q["id"]; len(ids) > 0 {
		layers = make([]config.Layer, 0, len(ids))
		for _, id := range ids {
			layer, ok := s.Config.Layer(id)
			if !ok {
				writeError(w, fmt.Errorf("%w %q", errUnknownLayer, id))
				return
			}
			layers = append(layers, layer)
		}
	}

	payloads := make([]json.RawMessage, len(layers))
	failures := make([]error, len(layers))

	g, gCtx := errgroup.WithContext(r.Context())
	g.SetLimit(max(s.Concurrency, 1))
	for i, layer := range layers {
		i, layer := i, layer
		g.Go(func() error {
			payload, err := s.resolve(gCtx, layer, date)
			if err != nil {
				// one failed layer must not cancel the others
				failures[i] = err
				return nil
			}
			payloads[i], failures[i] = json.Marshal(payload)
			return nil
		})
	}
	_ = g.Wait()

	resp := resolveResponse{
		Date:   dates.DayKey(date),
		Layers: make(map[string]json.RawMessage, len(layers)),
	}
	for i, layer := range layers {
		if failures[i] != nil {
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[layer.ID] = failures[i].Error()
			continue
		}
		resp.Layers[layer.ID] = payloads[i]
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}

// HandleBoundaries serves the loaded administrative boundaries.
func (s *ServerContext) HandleBoundaries(w http.ResponseWriter, r *http.Request) {
	if s.boundariesJSON == nil {
		writeError(w, layerdata.ErrBoundaryNotLoaded)
		return
	}

	if match := r.Header.Get("If-None-Match"); match == s.boundariesETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("ETag", s.boundariesETag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.boundariesJSON)
}

// HandleStatic serves files of the public directory, the same files relative layer URLs point to.
func (s *ServerContext) HandleStatic(w http.ResponseWriter, r *http.Request) {
	if s.PublicDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(filepath.Clean("/"+r.URL.Path), "/")
	if rel == "" {
		rel = "index.html"
	}
	if !s.serveFile(w, r, filepath.Join(s.PublicDir, filepath.FromSlash(rel)), contentTypeFor(rel)) {
		http.NotFound(w, r)
	}
}

// resolve returns the bare feature collection of point layers and {features, layerData}
// for joined layers.
func (s *ServerContext) resolve(ctx context.Context, layer config.Layer, date time.Time) (any, error) {
	res, err := s.Resolver.Resolve(ctx, layerdata.Params{
		Date:       date,
		Layer:      layer,
		Boundaries: s.Boundaries,
	})
	if err != nil {
		return nil, err
	}

	if layer.Type == config.TypePointData {
		return res.Features, nil
	}
	if res.LayerData == nil {
		res.LayerData = []layerdata.DataRecord{}
	}
	return struct {
		Features  any                    `json:"features"`
		LayerData []layerdata.DataRecord `json:"layerData"`
	}{res.Features, res.LayerData}, nil
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".geojson":
		return "application/geo+json"
	case ".json":
		return "application/json"
	}
	return ""
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dates.KeyLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errBadDate, raw)
	}
	return t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
