// Package catalog manages the organization/project hierarchy and the
// free-standing records around it: notes, reports and idea-gauntlet runs.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/observability"
	"github.com/ent0n29/sashi/internal/reliability"
	"github.com/ent0n29/sashi/internal/store"
	"github.com/ent0n29/sashi/internal/viewcache"
)

type Service struct {
	store    store.Store
	cache    viewcache.Cache
	cacheTTL time.Duration
	report   reliability.StoreReporter
	log      zerolog.Logger
	now      func() time.Time

	// gen counts invalidations so a load that raced one is not cached.
	gen atomic.Uint64
}

func NewService(st store.Store, cache viewcache.Cache, cacheTTL time.Duration, metrics *observability.Metrics, log zerolog.Logger) *Service {
	if metrics == nil {
		metrics = observability.Discard()
	}
	if cache == nil {
		cache = viewcache.NewMemory()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	log = log.With().Str("component", "catalog").Logger()
	return &Service{
		store:    st,
		cache:    cache,
		cacheTTL: cacheTTL,
		report:   reliability.StoreReporter{Log: log, Metrics: metrics},
		log:      log,
		now:      model.Now,
	}
}

// cachedView serves key from the view cache, filling it from load on a miss.
// Cache failures fall through to load. A view loaded while an invalidation
// landed is returned but not kept.
func cachedView[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	raw, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		if jerr := json.Unmarshal(raw, &out); jerr == nil {
			return out, nil
		}
		s.log.Warn().Str("op", "viewcache.decode").Str("id", key).Msg("discarding undecodable cached view")
	case !errors.Is(err, viewcache.ErrMiss):
		s.log.Warn().Err(err).Str("op", "viewcache.get").Str("id", key).Msg("view cache unavailable")
	}

	gen := s.gen.Load()
	out, err = load(ctx)
	if err != nil {
		return out, err
	}
	if s.gen.Load() != gen {
		return out, nil
	}
	encoded, jerr := json.Marshal(out)
	if jerr != nil {
		return out, nil
	}
	if serr := s.cache.Set(ctx, key, encoded, s.cacheTTL); serr != nil {
		s.log.Warn().Err(serr).Str("op", "viewcache.set").Str("id", key).Msg("view cache write failed")
		return out, nil
	}
	// An invalidation between the check above and Set may have missed the
	// entry we just wrote.
	if s.gen.Load() != gen {
		if ierr := s.cache.Invalidate(ctx, key); ierr != nil {
			s.log.Error().Err(ierr).Str("op", "viewcache.invalidate").Str("id", key).Msg("view invalidation failed")
		}
	}
	return out, nil
}

// invalidate drops the organization and project views after any hierarchy
// mutation.
func (s *Service) invalidate(ctx context.Context) {
	s.gen.Add(1)
	if err := s.cache.Invalidate(ctx, viewcache.ViewOrganizations, viewcache.ViewProjects); err != nil {
		s.log.Error().Err(err).Str("op", "viewcache.invalidate").Msg("view invalidation failed")
	}
}
