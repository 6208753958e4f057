package server

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/woozymasta/geodash/internal/config"
	"github.com/woozymasta/geodash/internal/geo"
	"github.com/woozymasta/geodash/internal/layerdata"

	"github.com/rs/zerolog/log"
)

// Resolver resolves one layer. *layerdata.Engine implements it.
type Resolver interface {
	Resolve(ctx context.Context, p layerdata.Params) (*layerdata.Result, error)
}

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config     *config.Config
	Boundaries *geo.Boundaries
	Resolver   Resolver
	// PublicDir is served for every path outside /api when set.
	PublicDir string
	// Concurrency bounds the layers resolved in parallel by one batch request.
	Concurrency int

	boundariesJSON []byte
	boundariesETag string
}

// NewServerContext prepares the handlers. boundaries may be nil when no layer joins on them;
// joined layers then fail with a 409.
func NewServerContext(cfg *config.Config, boundaries *geo.Boundaries, resolver Resolver) (*ServerContext, error) {
	log.Info().Int("config_layers_count", len(cfg.Layers)).Msg("Initializing server context")

	s := &ServerContext{
		Config:      cfg,
		Boundaries:  boundaries,
		Resolver:    resolver,
		Concurrency: 4,
	}

	if boundaries != nil && boundaries.Collection != nil {
		data, err := json.Marshal(boundaries.Collection)
		if err != nil {
			return nil, fmt.Errorf("encode boundaries: %w", err)
		}

		h := fnv.New64a()
		_, _ = h.Write(data)
		s.boundariesJSON = data
		s.boundariesETag = fmt.Sprintf(`"%x"`, h.Sum64())

		log.Debug().
			Int("features", boundaries.Len()).
			Str("admin_code", boundaries.AdminCode).
			Msg("Boundaries attached to context")
	} else if cfg.NeedsBoundary() {
		log.Warn().Msg("Joined layers configured but no boundaries loaded")
	}

	for _, l := range cfg.Layers {
		log.Trace().
			Str("layer", l.ID).
			Str("type", string(l.Type)).
			Msg("Layer registered")
	}

	log.Info().
		Int("boundary_features", boundaries.Len()).
		Msg("Server context initialized successfully")

	return s, nil
}
