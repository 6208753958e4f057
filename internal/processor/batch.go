package processor

import (
	"context"
	"errors"
	"sync"

	"github.com/woozymasta/geodash/internal/config"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Summary counts the outcome of ExportAll.
type Summary struct {
	Exported int
	Skipped  int
	Failed   map[string]error
}

// ExportAll exports layers with at most concurrency resolutions in flight.
// A failed layer is recorded in the summary and does not stop the others.
func ExportAll(ctx context.Context, r Resolver, layers []config.Layer, job Job, concurrency int) Summary {
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	sum := Summary{Failed: make(map[string]error)}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, l := range layers {
		l := l
		g.Go(func() error {
			err := ExportLayer(gCtx, r, l, job)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				sum.Exported++
			case errors.Is(err, ErrSkipped):
				sum.Skipped++
			default:
				log.Error().Err(err).Str("layer", l.ID).Msg("Failed to export layer")
				sum.Failed[l.ID] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	return sum
}

// Select returns the layers named in ids, in ids order, or every layer when ids is empty.
// Unknown and repeated ids are reported and skipped.
func Select(cfg *config.Config, ids []string) []config.Layer {
	if len(ids) == 0 {
		return cfg.Layers
	}

	selected := make([]config.Layer, 0, len(ids))
	seen := make(map[string]bool)

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if l, ok := cfg.Layer(id); ok {
			selected = append(selected, l)
		} else {
			log.Error().
				Str("name", id).
				Msg("Layer specified in --limit not found in configuration")
		}
	}

	return selected
}
