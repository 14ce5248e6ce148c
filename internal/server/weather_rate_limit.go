package server

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/turfkeeper/internal/lock"
	"github.com/smallbiznis/turfkeeper/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/turfkeeper/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	rateLimitReasonLocationRate = "location-rate"
	rateLimitReasonInFlight     = "location-in-flight"
)

// WeatherIngestRateLimit throttles uploads per location and lets only one
// upload for a location run at a time.
func (s *Server) WeatherIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.weatherLimiter.Enabled() {
			c.Next()
			return
		}

		locationID := strings.TrimSpace(c.Param("id"))
		endpoint := normalizeRateLimitEndpoint(c)
		ctx := c.Request.Context()

		result, err := s.weatherLimiter.AllowLocation(ctx, locationID)
		if err != nil {
			logger.FromContext(ctx).Warn("weather ingest rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			denyWeatherIngest(c, endpoint, rateLimitReasonLocationRate, result.RetryAfter, s.obsMetrics)
			return
		}

		release, err := s.weatherLimiter.LockLocation(ctx, locationID)
		if err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				recordRateLimitDenied(ctx, endpoint, rateLimitReasonInFlight, s.obsMetrics)
				AbortWithError(c, err)
				return
			}
			logger.FromContext(ctx).Warn("weather ingest lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.FromContext(ctx).Warn("weather ingest unlock failed", zap.Error(err))
			}
		}()

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyWeatherIngest(c *gin.Context, endpoint, reason string, retryAfter time.Duration, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("weather ingest rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, metrics)

	c.Header("Retry-After", retryAfterSeconds(retryAfter))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
