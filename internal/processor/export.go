// Package processor resolves layers ahead of time and writes them to disk.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/woozymasta/geodash/internal/config"
	"github.com/woozymasta/geodash/internal/geo"
	"github.com/woozymasta/geodash/internal/layerdata"

	"github.com/rs/zerolog/log"
)

// Resolver resolves one layer. *layerdata.Engine implements it.
type Resolver interface {
	Resolve(ctx context.Context, p layerdata.Params) (*layerdata.Result, error)
}

// Job describes one export run.
type Job struct {
	Date       time.Time
	Boundaries *geo.Boundaries
	// OutDir receives <id>.geojson and, for joined layers, <id>.data.json.
	OutDir string
	Force  bool
}

// ErrSkipped is returned by ExportLayer when the output exists and Force is unset.
var ErrSkipped = errors.New("output exists")

// FeaturesPath returns the GeoJSON output path of a layer.
func FeaturesPath(dir, id string) string {
	return filepath.Join(dir, id+".geojson")
}

// DataPath returns the record output path of a joined layer.
func DataPath(dir, id string) string {
	return filepath.Join(dir, id+".data.json")
}

// ExportLayer resolves l and writes its outputs.
func ExportLayer(ctx context.Context, r Resolver, l config.Layer, job Job) error {
	destFile := FeaturesPath(job.OutDir, l.ID)

	if _, err := os.Stat(destFile); err == nil && !job.Force {
		log.Debug().Str("layer", l.ID).Msg("Layer file exists, skipping")
		return ErrSkipped
	}

	res, err := r.Resolve(ctx, layerdata.Params{
		Date:       job.Date,
		Layer:      l,
		Boundaries: job.Boundaries,
	})
	if err != nil {
		return err
	}

	if err := saveJSON(job.OutDir, destFile, res.Features); err != nil {
		return err
	}

	if l.Type != config.TypePointData {
		records := res.LayerData
		if records == nil {
			records = []layerdata.DataRecord{}
		}
		if err := saveJSON(job.OutDir, DataPath(job.OutDir, l.ID), records); err != nil {
			return err
		}
	}

	log.Info().
		Str("layer", l.ID).
		Int("features", len(res.Features.Features)).
		Int("records", len(res.LayerData)).
		Str("path", destFile).
		Msg("Layer exported")

	return nil
}

// saveJSON marshals v and writes it to disk through a temporary file.
func saveJSON(dir, path string, v any) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := json.NewEncoder(tmp).Encode(v); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	// We care about write errors on close
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
