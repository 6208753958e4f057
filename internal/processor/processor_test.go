package processor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/woozymasta/geodash/internal/config"
	"github.com/woozymasta/geodash/internal/layerdata"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, p layerdata.Params) (*layerdata.Result, error) {
	if p.Layer.ID == "broken" {
		return nil, errors.New("source down")
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{80, 7}))

	res := &layerdata.Result{Features: fc}
	if p.Layer.Type != config.TypePointData {
		res.LayerData = []layerdata.DataRecord{{AdminKey: "LK-1", Value: 2.0}}
	}
	return res, nil
}

func testLayers() []config.Layer {
	return []config.Layer{
		{ID: "rain", Type: config.TypeAdminLevelData},
		{ID: "stations", Type: config.TypePointData},
		{ID: "broken", Type: config.TypePointData},
	}
}

func TestExportAll(t *testing.T) {
	dir := t.TempDir()
	job := Job{OutDir: dir}

	sum := ExportAll(context.Background(), stubResolver{}, testLayers(), job, 2)
	assert.Equal(t, 2, sum.Exported)
	assert.Equal(t, 0, sum.Skipped)
	require.Len(t, sum.Failed, 1)
	assert.EqualError(t, sum.Failed["broken"], "source down")

	data, err := os.ReadFile(FeaturesPath(dir, "rain"))
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)

	data, err = os.ReadFile(DataPath(dir, "rain"))
	require.NoError(t, err)
	var records []layerdata.DataRecord
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Equal(t, "LK-1", records[0].AdminKey)

	assert.NoFileExists(t, DataPath(dir, "stations"))
	assert.FileExists(t, FeaturesPath(dir, "stations"))

	// second run skips what exists unless forced
	sum = ExportAll(context.Background(), stubResolver{}, testLayers()[:2], job, 2)
	assert.Equal(t, 2, sum.Skipped)

	job.Force = true
	sum = ExportAll(context.Background(), stubResolver{}, testLayers()[:2], job, 2)
	assert.Equal(t, 2, sum.Exported)
}

func TestSelect(t *testing.T) {
	cfg := &config.Config{Layers: testLayers()}

	assert.Len(t, Select(cfg, nil), 3)

	got := Select(cfg, []string{"stations", "missing", "rain", "stations"})
	require.Len(t, got, 2)
	assert.Equal(t, "stations", got[0].ID)
	assert.Equal(t, "rain", got[1].ID)
}
