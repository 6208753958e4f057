// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the root configuration file structure.
// Keys are camel cased so a dashboard layers.json can be loaded as is.
type Config struct {
	Boundary Boundary `yaml:"boundary" json:"boundary"`
	Layers   []Layer  `yaml:"layers"   json:"layers"   validate:"dive"`
}

// Boundary locates the administrative boundary collection joined layers are matched against.
type Boundary struct {
	// Path is a URL, a path relative to the public directory, or a bundled dataset key.
	Path string `yaml:"path" json:"path"`
	// AdminCode is the property path of the administrative code on each feature.
	AdminCode       string   `yaml:"adminCode"                 json:"adminCode"`
	AdminLevelNames []string `yaml:"adminLevelNames,omitempty" json:"adminLevelNames,omitempty"`
}

// Load reads, parses and validates the YAML (or JSON) configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ErrBoundaryRequired is returned when joined layers are configured without a boundary source.
var ErrBoundaryRequired = errors.New("boundary path and adminCode are required by joined layers")

// Validate checks struct tags, per-type required fields and layer id uniqueness.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var errs []error
	seen := make(map[string]bool, len(c.Layers))
	for _, l := range c.Layers {
		if seen[l.ID] {
			errs = append(errs, fmt.Errorf("layer %q: duplicate id", l.ID))
		}
		seen[l.ID] = true

		if err := l.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.NeedsBoundary() && (c.Boundary.Path == "" || c.Boundary.AdminCode == "") {
		errs = append(errs, ErrBoundaryRequired)
	}

	return errors.Join(errs...)
}

// NeedsBoundary reports whether any layer is joined onto boundaries.
func (c *Config) NeedsBoundary() bool {
	for _, l := range c.Layers {
		if l.Type == TypeAdminLevelData || l.Type == TypeNSO {
			return true
		}
	}
	return false
}

// Layer returns the layer with the given id.
func (c *Config) Layer(id string) (Layer, bool) {
	for _, l := range c.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}
