package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/backoffice/internal/observability/logger"
	"github.com/smallbiznis/backoffice/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitReasonUserRate   = "user-rate"
	rateLimitReasonConcurrent = "concurrent-placement"
)

// OrderPlacementRateLimit applies the per-user token bucket and holds the
// per-user placement lock for the rest of the handler chain.
func (s *Server) OrderPlacementRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.orderLimiter.Enabled() {
			c.Next()
			return
		}

		principal, ok := principalFrom(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		userID := principal.UserID.String()
		ctx := c.Request.Context()

		res, err := s.orderLimiter.Allow(ctx, userID)
		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		if err != nil {
			retryAfter := time.Second
			if res.RetryAfter > 0 {
				retryAfter = res.RetryAfter
			}
			denyOrderPlacement(c, rateLimitReasonUserRate, retryAfter, err)
			return
		}

		release, err := s.orderLimiter.Acquire(ctx, userID)
		if err != nil {
			denyOrderPlacement(c, rateLimitReasonConcurrent, time.Second, err)
			return
		}
		defer release()

		c.Next()
	}
}

func denyOrderPlacement(c *gin.Context, reason string, retryAfter time.Duration, err error) {
	if !errors.Is(err, ratelimit.ErrRateLimited) && !errors.Is(err, ratelimit.ErrBusy) {
		AbortWithError(c, err)
		return
	}

	logger.FromContext(c.Request.Context()).Warn("order placement rate limited",
		zap.String("reason", reason),
		zap.Duration("retry_after", retryAfter),
	)

	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, err)
}
