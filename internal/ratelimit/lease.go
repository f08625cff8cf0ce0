package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// dropIfHolder deletes KEYS[1] only while it still carries ARGV[1], so an
// expired lease never removes the next holder's lock.
var dropIfHolder = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
return redis.call("DEL", KEYS[1])
`)

var errLeaseTTL = errors.New("ratelimit: lease ttl must be positive")

// lease is a held placement lock. The zero value holds nothing.
type lease struct {
	key    string
	holder string
}

func (l lease) held() bool {
	return l.key != "" && l.holder != ""
}

type leases struct {
	rdb redis.Cmdable
}

func newLeases(rdb redis.Cmdable) *leases {
	if rdb == nil {
		return nil
	}
	return &leases{rdb: rdb}
}

// grab sets key with a fresh holder id unless someone else holds it. A
// zero lease with a nil error means the key is taken.
func (s *leases) grab(ctx context.Context, key string, ttl time.Duration) (lease, error) {
	switch {
	case s == nil || s.rdb == nil:
		return lease{}, errNoRedis
	case key == "":
		return lease{}, errEmptyKey
	case ttl <= 0:
		return lease{}, errLeaseTTL
	}

	holder := uuid.NewString()
	err := s.rdb.SetArgs(ctx, key, holder, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return lease{}, nil
	}
	if err != nil {
		return lease{}, err
	}
	return lease{key: key, holder: holder}, nil
}

func (s *leases) drop(ctx context.Context, l lease) error {
	if s == nil || s.rdb == nil || !l.held() {
		return nil
	}
	return dropIfHolder.Run(ctx, s.rdb, []string{l.key}, l.holder).Err()
}
