package geolocation

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"memeatlas/internal/geocache"
	"memeatlas/internal/logger"
	"memeatlas/internal/metrics"
	"memeatlas/internal/util"
	"memeatlas/models"
)

// DefaultRetryPolicy: 5 attempts, 1s doubling backoff capped at 30s, transient
// errors only.
var DefaultRetryPolicy = util.Policy{
	MaxAttempts: 5,
	BaseDelay:   time.Second,
	MaxDelay:    30 * time.Second,
	Retryable:   IsTransient,
}

// LookupTimeout bounds one shared lookup including its retries.
const LookupTimeout = 2 * time.Minute

// Resolver turns a client address into a location: process cache, then the
// optional shared tier, then the provider. It never fails; when every tier
// misses and the provider gives up, it returns the sentinel location.
type Resolver struct {
	cache    *geocache.Cache
	shared   SharedCache
	provider Provider
	policy   util.Policy
	group    singleflight.Group
}

type ResolverOption func(*Resolver)

func WithSharedCache(s SharedCache) ResolverOption {
	return func(r *Resolver) { r.shared = s }
}

func WithRetryPolicy(p util.Policy) ResolverOption {
	return func(r *Resolver) { r.policy = p }
}

func NewResolver(cache *geocache.Cache, provider Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache:    cache,
		provider: provider,
		policy:   DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, ip string) models.GeoLocation {
	if ip == "" {
		return models.UnknownLocation(ip)
	}
	if geo, ok := r.cache.Get(ip); ok {
		metrics.GeoCacheHitsTotal.Inc()
		logger.L().Debug("geo_cache_hit", "ip", ip)
		return geo
	}
	metrics.GeoCacheMissesTotal.Inc()

	// concurrent misses for one address share a single lookup; it must not
	// die with whichever caller happened to start it
	v, _, _ := r.group.Do(ip, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LookupTimeout)
		defer cancel()
		return r.lookup(lctx, ip), nil
	})
	return v.(models.GeoLocation)
}

func (r *Resolver) lookup(ctx context.Context, ip string) models.GeoLocation {
	if r.shared != nil {
		if e, ok := r.shared.Get(ctx, ip); ok && r.cache.SetAt(ip, e.Geo, e.InsertedAt) {
			metrics.GeoRedisHitsTotal.Inc()
			return e.Geo
		}
	}

	attempts := 0
	geo, err := util.DoWithResult(ctx, r.policy, func() (models.GeoLocation, error) {
		attempts++
		return r.provider.Lookup(ctx, ip)
	})
	if err != nil {
		metrics.GeoLookupsTotal.WithLabelValues(r.provider.Name(), "failure").Inc()
		logger.L().Warn("geo_resolve_failed", "ip", ip, "provider", r.provider.Name(), "attempts", attempts, "err", err)
		return models.UnknownLocation(ip)
	}
	metrics.GeoLookupsTotal.WithLabelValues(r.provider.Name(), "success").Inc()

	geo.IP = ip
	geo = geo.Normalize()
	now := r.cache.Now()
	r.cache.SetAt(ip, geo, now)
	if r.shared != nil {
		r.shared.Set(ctx, ip, SharedEntry{Geo: geo, InsertedAt: now})
	}
	return geo
}
