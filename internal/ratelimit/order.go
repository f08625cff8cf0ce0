package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyOrderPlaceUser = "orders:place:user:%s"
	keyOrderPlaceLock = "orders:place:lock:%s"

	endpointOrderPlace = "orders.place"
)

var (
	ErrRateLimited = errors.New("rate_limited")
	ErrBusy        = errors.New("placement_in_progress")
)

// OrderLimiter throttles order placement per user and allows one placement
// per user at a time. A nil limiter permits everything.
type OrderLimiter struct {
	client  *redis.Client
	bucket  *bucket
	leases  *leases
	log     *zap.Logger
	metrics *metrics.Metrics

	quota   quota
	lockTTL time.Duration
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Metrics   *metrics.Metrics `optional:"true"`
}

func NewOrderLimiter(p Params) (*OrderLimiter, error) {
	limitCfg := p.Config.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.UserRate <= 0 || limitCfg.UserBurst <= 0 {
		return nil, errors.New("order placement rate limit must be positive")
	}
	if limitCfg.PlaceLockTTL <= 0 {
		return nil, errors.New("order placement lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}

	return &OrderLimiter{
		client:  client,
		bucket:  newBucket(client),
		leases:  newLeases(client),
		log:     p.Log.Named("ratelimit.orders"),
		metrics: p.Metrics,
		quota:   quota{perSecond: limitCfg.UserRate, burst: limitCfg.UserBurst},
		lockTTL: limitCfg.PlaceLockTTL,
	}, nil
}

func (l *OrderLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one placement token for userID. When redis is unreachable
// the request is let through and the failure logged.
func (l *OrderLimiter) Allow(ctx context.Context, userID string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	d, err := l.bucket.take(ctx, fmt.Sprintf(keyOrderPlaceUser, strings.TrimSpace(userID)), l.quota)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing", zap.String("user_id", userID), zap.Error(err))
		return Decision{Allowed: true, Limit: l.quota.burst}, nil
	}
	if !d.Allowed {
		l.metrics.RecordRateLimitDenied(ctx, endpointOrderPlace, "user_rate")
		return d, ErrRateLimited
	}
	l.metrics.RecordRateLimitAllowed(ctx, endpointOrderPlace)
	return d, nil
}

// Acquire takes the per-user placement lock. The returned release func is
// always safe to call.
func (l *OrderLimiter) Acquire(ctx context.Context, userID string) (func(), error) {
	noop := func() {}
	if !l.Enabled() {
		return noop, nil
	}

	key := fmt.Sprintf(keyOrderPlaceLock, strings.TrimSpace(userID))
	held, err := l.leases.grab(ctx, key, l.lockTTL)
	if err != nil {
		l.log.Warn("placement lock failed, continuing", zap.String("user_id", userID), zap.Error(err))
		return noop, nil
	}
	if !held.held() {
		l.metrics.RecordRateLimitDenied(ctx, endpointOrderPlace, "concurrent")
		return noop, ErrBusy
	}

	return func() {
		// Release outlives a cancelled request context.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := l.leases.drop(releaseCtx, held); err != nil {
			l.log.Warn("release placement lock", zap.String("user_id", userID), zap.Error(err))
		}
	}, nil
}
