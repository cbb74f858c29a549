// Package geo resolves client IPs into coarse "City, Region, Country" strings.
//
// Lookups go through a shared cache guarded by a named lock so that processes
// sharing the same Redis pay for at most one upstream call per cold IP.
package geo

import (
	"context"
	"errors"
	"time"

	"github.com/cankoe/misuse-recorder/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	CacheKeyPrefix = "geo:ip:"
	LockKeyPrefix  = "geo:lock:"

	DefaultCacheTTL      = 14 * 24 * time.Hour
	DefaultLookupTimeout = 3 * time.Second
)

// Cache stores resolved geo strings.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Locker hands out named cross-process locks.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

type Resolver struct {
	cache         Cache
	locker        Locker
	locator       Locator
	lookupTimeout time.Duration
	group         singleflight.Group
}

func NewResolver(cache Cache, locker Locker, locator Locator, lookupTimeout time.Duration) *Resolver {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	return &Resolver{
		cache:         cache,
		locker:        locker,
		locator:       locator,
		lookupTimeout: lookupTimeout,
	}
}

// Resolve returns the geo string for ip. It never fails: upstream and cache
// errors are logged and degrade to an empty string.
func (r *Resolver) Resolve(ctx context.Context, ip string) string {
	v, _, _ := r.group.Do(ip, func() (interface{}, error) {
		return r.resolve(ctx, ip), nil
	})
	return v.(string)
}

func (r *Resolver) resolve(ctx context.Context, ip string) string {
	cacheKey := CacheKeyPrefix + ip

	release, err := r.locker.Acquire(ctx, LockKeyPrefix+ip)
	switch {
	case err == nil:
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				log.Warn().Err(err).Str("ip", ip).Msg("Failed to release geo lock")
			}
		}()
	case errors.Is(err, ErrLockTimeout):
		log.Warn().Str("ip", ip).Msg("Geo lock still held elsewhere, resolving without it")
	default:
		log.Error().Err(err).Str("ip", ip).Msg("Geo lock unavailable, resolving without it")
	}

	geo, found, err := r.cache.Get(ctx, cacheKey)
	if err != nil {
		log.Error().Err(err).Str("ip", ip).Msg("Geo cache read failed, treating as miss")
	} else if found {
		metrics.GeoLookups.WithLabelValues("hit").Inc()
		log.Debug().Str("ip", ip).Str("geo", geo).Msg("Geo cache hit")
		return geo
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	start := time.Now()
	loc, err := r.locator.Lookup(lookupCtx, ip)
	metrics.GeoLookupDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GeoLookups.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("ip", ip).Msg("Geo lookup failed")
		return ""
	}
	metrics.GeoLookups.WithLabelValues("miss").Inc()

	geo = loc.String()
	log.Info().Str("ip", ip).Str("city", loc.City).Str("region", loc.Region).
		Str("country", loc.Country).Str("geo", geo).Msg("Resolved client geo")

	if err := r.cache.Set(ctx, cacheKey, geo); err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("Failed to cache geo result")
	}
	return geo
}
