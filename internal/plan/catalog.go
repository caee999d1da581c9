package plan

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CatalogConfig holds configuration for the route catalog.
type CatalogConfig struct {
	// Gateway serves the route table.
	Gateway Gateway

	// Logger for catalog operations.
	Logger zerolog.Logger

	// TTL is how long a fetched route table is served (default: 1 hour).
	TTL time.Duration

	// StaleIfErrorTTL allows serving an expired table when a refresh fails (default: 6 hours).
	StaleIfErrorTTL time.Duration
}

// RouteCatalog caches the gateway route table. Concurrent loads share one fetch.
type RouteCatalog struct {
	gateway         Gateway
	logger          zerolog.Logger
	ttl             time.Duration
	staleIfErrorTTL time.Duration

	group singleflight.Group

	mu        sync.RWMutex
	routes    map[string]*Route
	fetchedAt time.Time
}

// NewRouteCatalog creates a new route catalog.
func NewRouteCatalog(cfg CatalogConfig) *RouteCatalog {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 6 * time.Hour
	}

	return &RouteCatalog{
		gateway:         cfg.Gateway,
		logger:          cfg.Logger,
		ttl:             ttl,
		staleIfErrorTTL: staleIfErrorTTL,
	}
}

// Lookup returns the routes for ids, keyed by id.
// A cached table missing one of ids is refetched once before the id is reported
// as a resolution error.
func (c *RouteCatalog) Lookup(ctx context.Context, ids []string) (map[string]*Route, error) {
	start := time.Now()
	table, err := c.table(ctx)
	if err != nil {
		return nil, err
	}

	if missing := missingRoute(table, ids); missing != "" && c.fetchedBefore(start) {
		c.logger.Debug().Str("route", missing).Msg("route missing from cached table, refetching")
		v, err, _ := c.group.Do("routes", func() (interface{}, error) {
			return c.fetch(ctx)
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("route", missing).Msg("route table refetch failed")
		} else {
			table = v.(map[string]*Route)
		}
	}

	out := make(map[string]*Route, len(ids))
	for _, id := range ids {
		r, ok := table[id]
		if !ok {
			return nil, resolutionError("ROUTE_NOT_FOUND", "route "+id+" not found")
		}
		out[id] = r
	}
	return out, nil
}

func missingRoute(table map[string]*Route, ids []string) string {
	for _, id := range ids {
		if _, ok := table[id]; !ok {
			return id
		}
	}
	return ""
}

// fetchedBefore reports whether the cached table predates t.
func (c *RouteCatalog) fetchedBefore(t time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt.Before(t)
}

// Invalidate drops the cached table so the next lookup refetches it.
func (c *RouteCatalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = nil
	c.fetchedAt = time.Time{}
}

func (c *RouteCatalog) table(ctx context.Context) (map[string]*Route, error) {
	c.mu.RLock()
	routes, fetchedAt := c.routes, c.fetchedAt
	c.mu.RUnlock()

	if routes != nil && time.Since(fetchedAt) < c.ttl {
		c.logger.Debug().Int("routes", len(routes)).Msg("route table cache hit")
		return routes, nil
	}

	v, err, shared := c.group.Do("routes", func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		// Serve stale data if within the stale-if-error window
		if routes != nil && time.Since(fetchedAt) < c.staleIfErrorTTL {
			c.logger.Warn().Err(err).
				Dur("age", time.Since(fetchedAt)).
				Msg("serving stale route table due to gateway error")
			return routes, nil
		}
		return nil, err
	}
	if shared {
		c.logger.Debug().Msg("route table fetch shared with concurrent run")
	}
	return v.(map[string]*Route), nil
}

func (c *RouteCatalog) refresh(ctx context.Context) (map[string]*Route, error) {
	// Double-check cache (a flight may have just finished)
	c.mu.RLock()
	if c.routes != nil && time.Since(c.fetchedAt) < c.ttl {
		routes := c.routes
		c.mu.RUnlock()
		return routes, nil
	}
	c.mu.RUnlock()

	return c.fetch(ctx)
}

// Reload fetches the route table regardless of its age and returns the number of routes.
// The cached table is kept when the fetch fails.
func (c *RouteCatalog) Reload(ctx context.Context) (int, error) {
	v, err, _ := c.group.Do("reload", func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return 0, err
	}
	return len(v.(map[string]*Route)), nil
}

func (c *RouteCatalog) fetch(ctx context.Context) (map[string]*Route, error) {
	c.logger.Debug().Str("gateway", c.gateway.Name()).Msg("fetching route table")

	list, err := c.gateway.Routes(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to fetch route table")
		return nil, err
	}

	routes := make(map[string]*Route, len(list))
	for _, r := range list {
		if r == nil || r.ID == "" {
			continue
		}
		routes[r.ID] = r
	}

	c.mu.Lock()
	c.routes = routes
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info().Int("routes", len(routes)).Msg("route table refreshed")
	return routes, nil
}
