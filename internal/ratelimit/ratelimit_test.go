package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/turfkeeper/internal/clock"
	"github.com/smallbiznis/turfkeeper/internal/config"
	"github.com/smallbiznis/turfkeeper/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryBucket_DrainsAndRefills(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC))
	bucket := NewMemoryBucket(c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "loc", 1, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i)
	}

	res, err := bucket.Allow(ctx, "loc", 1, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3, res.Limit)
	assert.Equal(t, time.Second, res.RetryAfter)

	c.Advance(1500 * time.Millisecond)
	res, err = bucket.Allow(ctx, "loc", 1, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// other keys have their own bucket
	res, err = bucket.Allow(ctx, "other", 1, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestMemoryBucket_RefillCapsAtBurst(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC))
	bucket := NewMemoryBucket(c)

	_, err := bucket.Allow(context.Background(), "loc", 10, 2)
	require.NoError(t, err)
	c.Advance(time.Hour)

	res, err := bucket.Allow(context.Background(), "loc", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
}

func TestMemoryBucket_Validation(t *testing.T) {
	bucket := NewMemoryBucket(clock.SystemClock{})

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = bucket.Allow(context.Background(), "k", 1, 0)
	assert.ErrorIs(t, err, ErrInvalidBurst)
}

func TestTokenBucket_NilClient(t *testing.T) {
	assert.Nil(t, NewTokenBucket(nil, "x:"))

	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestScriptValueParsing(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(7), toInt("7"))
	assert.InDelta(t, 2.5, toFloat("2.5"), 1e-9)
	assert.InDelta(t, 3, toFloat(int64(3)), 1e-9)
	assert.Zero(t, toFloat(nil))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, bucketTTL(1, 10))
	assert.Equal(t, time.Second, bucketTTL(1000, 1))
}

func TestNewWeatherIngestLimiter(t *testing.T) {
	params := WeatherIngestParams{
		Log:    zap.NewNop(),
		Clock:  clock.SystemClock{},
		Locker: lock.NewMemoryLocker(),
	}

	limiter, err := NewWeatherIngestLimiter(params)
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	params.Config.RateLimit = config.RateLimitConfig{Enabled: true, WeatherIngestLocationRate: 1}
	_, err = NewWeatherIngestLimiter(params)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	params.Config.RateLimit = config.RateLimitConfig{
		Enabled:                    true,
		WeatherIngestLocationRate:  1,
		WeatherIngestLocationBurst: 2,
		WeatherIngestLockTTL:       time.Second,
	}
	limiter, err = NewWeatherIngestLimiter(params)
	require.NoError(t, err)
	assert.True(t, limiter.Enabled())
	assert.IsType(t, &MemoryBucket{}, limiter.bucket)
}

func TestWeatherIngestLimiter_Disabled(t *testing.T) {
	var limiter *WeatherIngestLimiter

	res, err := limiter.AllowLocation(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	release, err := limiter.LockLocation(context.Background(), "1")
	require.NoError(t, err)
	assert.NoError(t, release(context.Background()))
}

func TestWeatherIngestLimiter_PerLocation(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC))
	limiter := newWeatherIngestLimiter(NewMemoryBucket(c), lock.NewMemoryLocker(), config.RateLimitConfig{
		WeatherIngestLocationRate:  1,
		WeatherIngestLocationBurst: 1,
		WeatherIngestLockTTL:       time.Second,
	})
	ctx := context.Background()

	res, err := limiter.AllowLocation(ctx, "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.AllowLocation(ctx, "1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = limiter.AllowLocation(ctx, "2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestWeatherIngestLimiter_LockLocation(t *testing.T) {
	limiter := newWeatherIngestLimiter(NewMemoryBucket(clock.SystemClock{}), lock.NewMemoryLocker(), config.RateLimitConfig{
		WeatherIngestLocationRate:  1,
		WeatherIngestLocationBurst: 1,
		WeatherIngestLockTTL:       time.Second,
	})
	ctx := context.Background()

	release, err := limiter.LockLocation(ctx, "1")
	require.NoError(t, err)

	_, err = limiter.LockLocation(ctx, "1")
	assert.ErrorIs(t, err, lock.ErrNotAcquired)

	require.NoError(t, release(ctx))
	release, err = limiter.LockLocation(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
