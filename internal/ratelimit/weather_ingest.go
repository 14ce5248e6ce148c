package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/turfkeeper/internal/clock"
	"github.com/smallbiznis/turfkeeper/internal/config"
	"github.com/smallbiznis/turfkeeper/internal/lock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyWeatherIngestLocation = "weather:ingest:location:"
	keyWeatherIngestLock     = "weather:ingest:lock:"
)

var ErrInvalidConfig = errors.New("invalid_rate_limit_config")

type WeatherIngestParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock
	Locker lock.Locker
	Redis  *redis.Client `optional:"true"`
}

// WeatherIngestLimiter throttles weather uploads per location and keeps two
// uploads for one location from running at once.
type WeatherIngestLimiter struct {
	bucket  Bucket
	locker  lock.Locker
	rate    float64
	burst   int
	lockTTL time.Duration
}

// NewWeatherIngestLimiter returns nil when rate limiting is switched off.
func NewWeatherIngestLimiter(p WeatherIngestParams) (*WeatherIngestLimiter, error) {
	limitCfg := p.Config.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if limitCfg.WeatherIngestLocationRate <= 0 || limitCfg.WeatherIngestLocationBurst <= 0 || limitCfg.WeatherIngestLockTTL <= 0 {
		return nil, ErrInvalidConfig
	}

	var bucket Bucket
	if p.Redis != nil {
		bucket = NewTokenBucket(p.Redis, p.Config.AppName+":")
	} else {
		p.Log.Warn("rate limiting without redis, buckets are per process")
		bucket = NewMemoryBucket(p.Clock)
	}
	return newWeatherIngestLimiter(bucket, p.Locker, limitCfg), nil
}

func newWeatherIngestLimiter(bucket Bucket, locker lock.Locker, cfg config.RateLimitConfig) *WeatherIngestLimiter {
	return &WeatherIngestLimiter{
		bucket:  bucket,
		locker:  locker,
		rate:    cfg.WeatherIngestLocationRate,
		burst:   cfg.WeatherIngestLocationBurst,
		lockTTL: cfg.WeatherIngestLockTTL,
	}
}

func (l *WeatherIngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WeatherIngestLimiter) AllowLocation(ctx context.Context, locationID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, keyWeatherIngestLocation+locationID, l.rate, l.burst)
}

// LockLocation does not wait. lock.ErrNotAcquired means another upload for
// the location is in flight.
func (l *WeatherIngestLimiter) LockLocation(ctx context.Context, locationID string) (lock.Release, error) {
	if !l.Enabled() || l.locker == nil {
		return func(context.Context) error { return nil }, nil
	}
	return l.locker.Acquire(ctx, keyWeatherIngestLock+locationID, l.lockTTL, 0)
}
