package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/turfkeeper/internal/clock"
)

var (
	ErrNotConfigured = errors.New("rate_limiter_not_configured")
	ErrEmptyKey      = errors.New("rate_limiter_key_empty")
	ErrInvalidRate   = errors.New("rate_limiter_rate_invalid")
	ErrInvalidBurst  = errors.New("rate_limiter_burst_invalid")
)

// Lua numbers are truncated to integers on the way out, so the token count
// travels back as a string.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), ts}
`

// Bucket grants one token per call from a bucket refilled at rate per
// second up to burst.
type Bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error)
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// TokenBucket keeps bucket state in redis so every API replica shares it.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
	prefix string
}

func NewTokenBucket(client *redis.Client, prefix string) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		prefix: prefix,
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	if t == nil || t.client == nil {
		return nil, ErrNotConfigured
	}
	if err := validate(key, rate, burst); err != nil {
		return nil, err
	}

	ttl := bucketTTL(rate, burst)
	res, err := t.script.Run(
		ctx,
		t.client,
		[]string{t.prefix + key},
		rate,
		burst,
		ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 3 {
		return nil, errors.New("invalid rate limit script response")
	}

	allowed := toInt(res[0]) == 1
	remaining := toFloat(res[1])
	return buildResult(allowed, remaining, rate, burst), nil
}

type bucketState struct {
	tokens float64
	ts     time.Time
}

// MemoryBucket is the single-process stand-in used when redis is absent.
type MemoryBucket struct {
	mu      sync.Mutex
	clock   clock.Clock
	buckets map[string]*bucketState
}

func NewMemoryBucket(c clock.Clock) *MemoryBucket {
	return &MemoryBucket{clock: c, buckets: make(map[string]*bucketState)}
}

func (m *MemoryBucket) Allow(_ context.Context, key string, rate float64, burst int) (*Result, error) {
	if err := validate(key, rate, burst); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	state, ok := m.buckets[key]
	if !ok {
		state = &bucketState{tokens: float64(burst), ts: now}
		m.buckets[key] = state
	} else {
		elapsed := now.Sub(state.ts)
		if elapsed < 0 {
			elapsed = 0
		}
		state.tokens = math.Min(float64(burst), state.tokens+elapsed.Seconds()*rate)
		state.ts = now
	}

	allowed := false
	if state.tokens >= 1 {
		allowed = true
		state.tokens--
	}
	return buildResult(allowed, state.tokens, rate, burst), nil
}

func validate(key string, rate float64, burst int) error {
	switch {
	case key == "":
		return ErrEmptyKey
	case rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0):
		return ErrInvalidRate
	case burst <= 0:
		return ErrInvalidBurst
	}
	return nil
}

func buildResult(allowed bool, remaining, rate float64, burst int) *Result {
	result := &Result{
		Allowed:   allowed,
		Limit:     burst,
		Remaining: int(remaining),
	}
	if !allowed {
		// time until one whole token has refilled
		if needed := 1 - remaining; needed > 0 {
			result.RetryAfter = time.Duration(needed / rate * float64(time.Second))
		}
	}
	return result
}

func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func toInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		parsed, _ := strconv.ParseInt(val, 10, 64)
		return parsed
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case string:
		parsed, _ := strconv.ParseFloat(val, 64)
		return parsed
	default:
		return 0
	}
}
