package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
boundary:
  path: data/admin_boundaries.json
  adminCode: adm2_pcode
  adminLevelNames: [adm1_name, adm2_name]
layers:
  - id: rainfall
    type: admin_level_data
    path: https://api.example.org/rainfall
    adminCode: pcode
    dataField: stats.mean
    fallbackData: data/rainfall.json
    validityDays: 2
    featureInfoProps:
      station: {type: text, label: Station}
  - id: poverty
    type: nso
    path: nsoPovertyHc
    adminCode: DSD_CODE
  - id: observations
    type: point_data
    data: https://kobo.example.org/api/forms
    fallbackData: data/observations.json
    additionalQueryParams:
      form_name: Flood
      filters:
        status: Approved
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "adm2_pcode", cfg.Boundary.AdminCode)
	assert.Equal(t, []string{"adm1_name", "adm2_name"}, cfg.Boundary.AdminLevelNames)
	require.Len(t, cfg.Layers, 3)

	rain, ok := cfg.Layer("rainfall")
	require.True(t, ok)
	assert.Equal(t, TypeAdminLevelData, rain.Type)
	assert.Equal(t, "stats.mean", rain.DataField)
	assert.Equal(t, 2, rain.ValidityDays)
	assert.Equal(t, []string{"station"}, rain.FeatureInfoNames())

	obs, ok := cfg.Layer("observations")
	require.True(t, ok)
	assert.True(t, obs.UsesDateRange())
	assert.Equal(t, map[string]any{"status": "Approved"}, obs.AdditionalQueryParams["filters"])

	_, ok = cfg.Layer("missing")
	assert.False(t, ok)
}

func TestParse_JSONLayers(t *testing.T) {
	cfg, err := Parse([]byte(`{"layers":[{"id":"p","type":"point_data","data":"x.json","dataFormat":"wms"}]}`))
	require.NoError(t, err)
	assert.Equal(t, FormatWMS, cfg.Layers[0].DataFormat)
	assert.False(t, cfg.NeedsBoundary())
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := map[string]string{
		"unknown type":      `layers: [{id: a, type: raster}]`,
		"missing id":        `layers: [{type: point_data, data: x}]`,
		"missing data":      `layers: [{id: a, type: point_data}]`,
		"missing dataField": `{boundary: {path: b, adminCode: c}, layers: [{id: a, type: admin_level_data, path: p, adminCode: c}]}`,
		"negative validity": `layers: [{id: a, type: point_data, data: x, validityDays: -1}]`,
		"duplicate id":      `layers: [{id: a, type: point_data, data: x}, {id: a, type: point_data, data: y}]`,
		"boundary required": `layers: [{id: a, type: nso, path: k, adminCode: c}]`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLayerValidate_MissingFields(t *testing.T) {
	err := Layer{ID: "x", Type: TypeAdminLevelData}.Validate()
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "dataField")
}

func TestLayerValidate_PathLikeIDs(t *testing.T) {
	for _, id := range []string{"../x", "a/b", `a\b`, "..", "."} {
		t.Run(id, func(t *testing.T) {
			err := Layer{ID: id, Type: TypePointData, Data: "/x.json"}.Validate()
			assert.ErrorIs(t, err, ErrInvalidID)
		})
	}

	assert.NoError(t, Layer{ID: "rain.v2", Type: TypePointData, Data: "/x.json"}.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Layers, 3)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.NeedsBoundary())

	l, ok := cfg.Layer("rain_gauges")
	require.True(t, ok)
	assert.Equal(t, FormatWMS, l.DataFormat)
	assert.False(t, l.UsesDateRange())

	l, ok = cfg.Layer("flood_reports")
	require.True(t, ok)
	assert.True(t, l.UsesDateRange())
}
