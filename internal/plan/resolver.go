package plan

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Metadata is the transit reference data resolved for one batch.
type Metadata struct {
	// PatternIDs lists referenced pattern ids in first-seen order.
	PatternIDs []string
	Patterns   map[string]*Pattern
	// RouteIDs lists referenced route ids in first-seen pattern order.
	RouteIDs []string
	Routes   map[string]*Route
}

// ResolverConfig holds configuration for the metadata resolver.
type ResolverConfig struct {
	Gateway Gateway
	Catalog *RouteCatalog
	Palette *Palette
	Logger  zerolog.Logger

	// MaxConcurrency bounds concurrent pattern fetches. Zero means unbounded.
	MaxConcurrency int
}

// Resolver attaches stop, route name, color and shield data to every segment pattern of a batch.
type Resolver struct {
	gateway        Gateway
	catalog        *RouteCatalog
	palette        *Palette
	logger         zerolog.Logger
	maxConcurrency int
}

// NewResolver creates a new metadata resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	palette := cfg.Palette
	if palette == nil {
		palette = DefaultPalette()
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = NewRouteCatalog(CatalogConfig{Gateway: cfg.Gateway, Logger: cfg.Logger})
	}

	return &Resolver{
		gateway:        cfg.Gateway,
		catalog:        catalog,
		palette:        palette,
		logger:         cfg.Logger,
		maxConcurrency: cfg.MaxConcurrency,
	}
}

// PatternIDs returns the distinct pattern ids referenced by options, in first-seen order.
func PatternIDs(options []*Option) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, o := range options {
		for _, leg := range o.Transit {
			for _, sp := range leg.SegmentPatterns {
				if _, ok := seen[sp.PatternID]; ok {
					continue
				}
				seen[sp.PatternID] = struct{}{}
				ids = append(ids, sp.PatternID)
			}
		}
	}
	return ids
}

// Resolve fetches the patterns and routes referenced by options and fills in every segment pattern.
// Any reference without matching metadata fails the whole batch.
func (r *Resolver) Resolve(ctx context.Context, options []*Option) (*Metadata, error) {
	md := &Metadata{PatternIDs: PatternIDs(options)}

	patterns, err := r.fetchPatterns(ctx, md.PatternIDs)
	if err != nil {
		return nil, err
	}
	md.Patterns = patterns

	seen := make(map[string]struct{})
	for _, id := range md.PatternIDs {
		routeID := patterns[id].RouteID
		if routeID == "" {
			return nil, resolutionError("ROUTE_NOT_FOUND", fmt.Sprintf("pattern %s has no route", id))
		}
		if _, ok := seen[routeID]; ok {
			continue
		}
		seen[routeID] = struct{}{}
		md.RouteIDs = append(md.RouteIDs, routeID)
	}

	if len(md.RouteIDs) > 0 {
		routes, err := r.catalog.Lookup(ctx, md.RouteIDs)
		if err != nil {
			return nil, err
		}
		md.Routes = routes
	}

	for _, o := range options {
		for _, leg := range o.Transit {
			for _, sp := range leg.SegmentPatterns {
				if err := r.apply(sp, md); err != nil {
					return nil, err
				}
			}
		}
	}

	r.logger.Debug().
		Int("patterns", len(md.PatternIDs)).
		Int("routes", len(md.RouteIDs)).
		Msg("resolved transit metadata")

	return md, nil
}

func (r *Resolver) fetchPatterns(ctx context.Context, ids []string) (map[string]*Pattern, error) {
	// Each goroutine writes only its own slot.
	fetched := make([]*Pattern, len(ids))

	p := pool.New().WithErrors().WithFirstError()
	if r.maxConcurrency > 0 {
		p = p.WithMaxGoroutines(r.maxConcurrency)
	}
	for i, id := range ids {
		p.Go(func() error {
			pattern, err := r.gateway.Pattern(ctx, id)
			if err != nil {
				return err
			}
			if pattern == nil {
				return resolutionError("PATTERN_NOT_FOUND", "pattern "+id+" not found")
			}
			fetched[i] = pattern
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*Pattern, len(ids))
	for i, id := range ids {
		out[id] = fetched[i]
	}
	return out, nil
}

func (r *Resolver) apply(sp *SegmentPattern, md *Metadata) error {
	pattern, ok := md.Patterns[sp.PatternID]
	if !ok {
		return resolutionError("PATTERN_NOT_FOUND", "pattern "+sp.PatternID+" not found")
	}
	if sp.FromIndex < 0 || sp.FromIndex >= len(pattern.Stops) || pattern.Stops[sp.FromIndex] == nil {
		return resolutionError("STOP_NOT_FOUND",
			fmt.Sprintf("pattern %s has no stop at index %d", sp.PatternID, sp.FromIndex))
	}
	route, ok := md.Routes[pattern.RouteID]
	if !ok {
		return resolutionError("ROUTE_NOT_FOUND", "route "+pattern.RouteID+" not found")
	}

	sp.StopID = pattern.Stops[sp.FromIndex].ID
	sp.RouteID = route.ID
	sp.ShortName = route.ShortName
	sp.LongName = route.LongName
	sp.Color = r.palette.Color(route)
	sp.Shield = Shield(route)
	return nil
}
