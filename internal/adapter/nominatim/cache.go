package nominatim

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/couchcryptid/member-locator/internal/observability"
	"github.com/couchcryptid/member-locator/internal/store"
)

// CacheTTL is how long a geocode answer is kept.
const CacheTTL = 365*24*time.Hour - time.Hour

// Cache is the part of the cache store CachedLocator needs.
type Cache interface {
	Get(key store.Key, dst any) (bool, error)
	Set(key store.Key, value any, ttl time.Duration) error
}

// CachedLocator wraps a Locator with the persistent cache store. Answers are
// keyed by (query, scope); "no such place" is cached too, errors are not.
type CachedLocator struct {
	inner   domain.Locator
	cache   Cache
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedLocator creates a cache decorator around a locator.
func NewCachedLocator(inner domain.Locator, cache Cache, metrics *observability.Metrics, logger *slog.Logger) *CachedLocator {
	return &CachedLocator{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// CacheKey is the store key of a (query, scope) answer.
func CacheKey(query, scope string) store.Key {
	return store.NewKey(store.NamespaceNominatim, query, scope)
}

func (c *CachedLocator) Locate(ctx context.Context, query, scope string) (*domain.Candidate, error) {
	key := CacheKey(query, scope)

	var cached *domain.Candidate
	hit, err := c.cache.Get(key, &cached)
	if err != nil {
		c.logger.Warn("geocode cache read failed", "key", key.String(), "error", err)
	}
	if hit {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.Locate(ctx, query, scope)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(key, result, CacheTTL); err != nil {
		c.logger.Warn("geocode cache write failed", "key", key.String(), "error", err)
	}
	return result, nil
}
