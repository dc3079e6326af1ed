package grpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type FetchFunc[T any] func(ctx context.Context) (T, error)

const (
	refreshTimeout = 15 * time.Second
	writeTimeout   = 5 * time.Second
	maxTTLJitter   = 30 * time.Second
)

// responseCache is the read-through cache in front of the grading service.
// Concurrent misses for one key share a single fetch, which matters most for
// extraction where a miss costs a model call.
type responseCache struct {
	store  Cacher
	group  singleflight.Group
	ttl    time.Duration
	logger *zap.Logger
}

func newResponseCache(store Cacher, ttl time.Duration, logger *zap.Logger) *responseCache {
	return &responseCache{store: store, ttl: ttl, logger: logger}
}

type lookupOptions struct {
	refreshAhead bool
}

// LookupOption tunes a single cached lookup.
type LookupOption func(*lookupOptions)

// WithRefreshAhead re-fetches the value in the background after a cache hit.
// Only use it for reads that are cheap and can change, never for values that
// cost a model call.
func WithRefreshAhead() LookupOption {
	return func(o *lookupOptions) { o.refreshAhead = true }
}

// jitteredTTL spreads expirations by up to a tenth of ttl, capped at 30s.
func jitteredTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	spread := min(ttl/10, maxTTLJitter)
	if spread <= 0 {
		return ttl
	}
	return ttl - spread + time.Duration(rand.Int63n(int64(2*spread)+1))
}

// write stores value detached from the request, so a client hanging up does
// not discard a result that was already paid for.
func (rc *responseCache) write(key string, value any) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	ttl := jitteredTTL(rc.ttl)
	if err := rc.store.Set(ctx, key, value, ttl); err != nil {
		rc.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	rc.logger.Debug("cache written", zap.String("key", key), zap.Duration("ttl", ttl))
}

// invalidate drops keys whose values a write has made stale.
func (rc *responseCache) invalidate(ctx context.Context, keys ...string) {
	if err := rc.store.Delete(ctx, keys...); err != nil {
		rc.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func refresh[T any](rc *responseCache, key string, fetch FetchFunc[T]) {
	go func() {
		time.Sleep(time.Duration(rand.Intn(1000)) * time.Millisecond)

		_, _, _ = rc.group.Do(key+":refresh", func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()

			value, err := fetch(ctx)
			if err != nil {
				rc.logger.Warn("background refresh failed", zap.String("key", key), zap.Error(err))
				return nil, err
			}
			rc.write(key, value)
			return value, nil
		})
	}()
}

// cached returns the value stored under key, or fetches, returns and stores
// it. Cache errors other than a miss are logged and treated as a miss; fetch
// errors are returned and never stored.
func cached[T any](ctx context.Context, rc *responseCache, key string, fetch FetchFunc[T], opts ...LookupOption) (T, error) {
	var zero T
	var o lookupOptions
	for _, opt := range opts {
		opt(&o)
	}

	var hit T
	err := rc.store.Get(ctx, key, &hit)
	switch {
	case err == nil:
		rc.logger.Debug("cache hit", zap.String("key", key))
		if o.refreshAhead {
			refresh(rc, key, fetch)
		}
		return hit, nil
	case errors.Is(err, redis.Nil):
		rc.logger.Debug("cache miss", zap.String("key", key))
	default:
		rc.logger.Warn("cache read failed, fetching", zap.String("key", key), zap.Error(err))
	}

	v, err, shared := rc.group.Do(key, func() (any, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		go rc.write(key, value)
		return value, nil
	})
	if err != nil {
		return zero, err
	}
	if shared {
		rc.logger.Debug("fetch shared with a concurrent request", zap.String("key", key))
	}

	value, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cached value for %q has type %T", key, v)
	}
	return value, nil
}
