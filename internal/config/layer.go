package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// LayerType discriminates the layer variants.
type LayerType string

const (
	// TypeAdminLevelData is tabular data keyed by admin code, fetched remotely and joined on boundaries.
	TypeAdminLevelData LayerType = "admin_level_data"
	// TypeNSO is tabular data from a bundled dataset, joined on boundaries.
	TypeNSO LayerType = "nso"
	// TypePointData is point observations rendered as a point feature collection.
	TypePointData LayerType = "point_data"
)

// DataFormat selects the adapter for a point source.
type DataFormat string

const (
	FormatBase DataFormat = "base"
	FormatWMS  DataFormat = "wms"
)

// FeatureInfoProp describes an extra record field surfaced on joined features.
type FeatureInfoProp struct {
	Type  string `yaml:"type,omitempty"  json:"type,omitempty"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// Layer is the configuration of one fetchable dataset.
type Layer struct {
	ID    string    `yaml:"id"              json:"id"              validate:"required"`
	Type  LayerType `yaml:"type"            json:"type"            validate:"required,oneof=admin_level_data nso point_data"`
	Title string    `yaml:"title,omitempty" json:"title,omitempty"`

	// Path is the tabular source URL (admin_level_data) or bundled dataset key (nso).
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Data is the point source URL; {FORMAT} placeholders are filled from the request date.
	Data string `yaml:"data,omitempty" json:"data,omitempty"`
	// FallbackData is a URL or bundled dataset key used when the primary source fails.
	FallbackData string `yaml:"fallbackData,omitempty" json:"fallbackData,omitempty"`

	AdminCode string `yaml:"adminCode,omitempty" json:"adminCode,omitempty"`
	DataField string `yaml:"dataField,omitempty" json:"dataField,omitempty"`

	FeatureInfoProps      map[string]FeatureInfoProp `yaml:"featureInfoProps,omitempty"      json:"featureInfoProps,omitempty"`
	AdditionalQueryParams map[string]any             `yaml:"additionalQueryParams,omitempty" json:"additionalQueryParams,omitempty"`

	ValidityDays int        `yaml:"validityDays,omitempty" json:"validityDays,omitempty" validate:"gte=0"`
	DataFormat   DataFormat `yaml:"dataFormat,omitempty"   json:"dataFormat,omitempty"`
}

// Validate checks the fields each variant requires. DataFormat values are checked at
// fetch time so an unknown format can still be served from the fallback source.
func (l Layer) Validate() error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	// ids name output files
	if strings.ContainsAny(l.ID, `/\`) || l.ID == "." || l.ID == ".." {
		return fmt.Errorf("layer %q: %w", l.ID, ErrInvalidID)
	}

	switch l.Type {
	case TypeAdminLevelData:
		require("path", l.Path)
		require("adminCode", l.AdminCode)
		require("dataField", l.DataField)
	case TypeNSO:
		require("path", l.Path)
		require("adminCode", l.AdminCode)
	case TypePointData:
		require("data", l.Data)
	default:
		return fmt.Errorf("layer %q: unknown type %q", l.ID, l.Type)
	}

	if len(missing) > 0 {
		return fmt.Errorf("layer %q: %w: %v", l.ID, ErrMissingField, missing)
	}
	return nil
}

// ErrInvalidID is wrapped by Validate for ids that are not plain file names.
var ErrInvalidID = errors.New("layer id must not contain path separators")

// ErrMissingField is wrapped by Validate for absent required fields.
var ErrMissingField = errors.New("missing required field")

// FeatureInfoNames returns the property names listed in FeatureInfoProps, sorted.
func (l Layer) FeatureInfoNames() []string {
	names := make([]string, 0, len(l.FeatureInfoProps))
	for name := range l.FeatureInfoProps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UsesDateRange reports whether the point source expects beginDateTime/endDateTime parameters.
func (l Layer) UsesDateRange() bool {
	return len(l.AdditionalQueryParams) > 0 || l.ValidityDays > 0
}
