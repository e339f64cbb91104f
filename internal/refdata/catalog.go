package refdata

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Catalog memoises validated table sets by model version. Concurrent first
// callers for a version share a single load.
type Catalog struct {
	loader Loader
	log    zerolog.Logger

	mu    sync.RWMutex
	sets  map[string]*TableSet
	group singleflight.Group
}

// NewCatalog creates a catalog backed by loader.
func NewCatalog(loader Loader, log zerolog.Logger) *Catalog {
	return &Catalog{
		loader: loader,
		log:    log,
		sets:   make(map[string]*TableSet),
	}
}

// Load returns the table set for version, loading and validating it on first use.
// Failed loads are not cached. The shared load ignores cancellation of the
// caller that started it; a caller whose ctx ends stops waiting with ctx.Err().
func (c *Catalog) Load(ctx context.Context, version string) (*TableSet, error) {
	c.mu.RLock()
	ts, ok := c.sets[version]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(version, func() (any, error) {
		c.mu.RLock()
		ts, ok := c.sets[version]
		c.mu.RUnlock()
		if ok {
			return ts, nil
		}

		start := time.Now()
		raw, err := c.loader.LoadTables(loadCtx, version)
		if err != nil {
			return nil, err
		}
		ts, err = NewTableSet(raw)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.sets[version] = ts
		c.mu.Unlock()

		c.log.Info().
			Str("model_version", version).
			Int("categories", len(raw.Categories)).
			Int("diagnoses", len(raw.Diagnoses)).
			Int("hierarchy_edges", len(raw.Hierarchy)).
			Int("coefficients", len(raw.Coefficients)).
			Str("duration", time.Since(start).String()).
			Msg("reference tables loaded")
		return ts, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TableSet), nil
	}
}

// Invalidate drops every cached table set.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.sets = make(map[string]*TableSet)
	c.mu.Unlock()
}
