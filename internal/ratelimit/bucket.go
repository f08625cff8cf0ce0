package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// takeTokenScript keeps "level" and "at" (ms) in a hash and returns
// {granted, level as string}. The level stays fractional between calls.
var takeTokenScript = redis.NewScript(`
local perSecond = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local keepMs = tonumber(ARGV[3])

local clock = redis.call("TIME")
local nowMs = clock[1] * 1000 + math.floor(clock[2] / 1000)

local level = tonumber(redis.call("HGET", KEYS[1], "level"))
local at = tonumber(redis.call("HGET", KEYS[1], "at"))
if level == nil or at == nil then
  level = burst
else
  local elapsed = math.max(0, nowMs - at)
  level = math.min(burst, level + elapsed * perSecond / 1000)
end

local granted = 0
if level >= 1 then
  level = level - 1
  granted = 1
end

redis.call("HSET", KEYS[1], "level", tostring(level), "at", nowMs)
redis.call("PEXPIRE", KEYS[1], keepMs)
return {granted, tostring(level)}
`)

var (
	errNoRedis      = errors.New("ratelimit: redis client is nil")
	errEmptyKey     = errors.New("ratelimit: empty key")
	errBadQuota     = errors.New("ratelimit: quota rate and burst must be positive")
	errScriptResult = errors.New("ratelimit: unexpected script result")
)

// Decision is the outcome of taking one token from a user's bucket.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// quota refills perSecond tokens every second up to burst.
type quota struct {
	perSecond float64
	burst     int
}

func (q quota) valid() bool {
	return q.perSecond > 0 && q.burst > 0
}

// keepAlive is how long an idle bucket survives: twice the time a drained
// bucket needs to refill, never less than a second.
func (q quota) keepAlive() time.Duration {
	if !q.valid() {
		return time.Second
	}
	secs := math.Ceil(2 * float64(q.burst) / q.perSecond)
	return time.Duration(math.Max(secs, 1)) * time.Second
}

// wait is the time until the bucket holds one whole token again.
func (q quota) wait(level float64) time.Duration {
	if level >= 1 || q.perSecond <= 0 {
		return 0
	}
	return time.Duration((1 - level) / q.perSecond * float64(time.Second))
}

type bucket struct {
	rdb redis.Scripter
}

func newBucket(rdb redis.Scripter) *bucket {
	if rdb == nil {
		return nil
	}
	return &bucket{rdb: rdb}
}

func (b *bucket) take(ctx context.Context, key string, q quota) (Decision, error) {
	switch {
	case b == nil || b.rdb == nil:
		return Decision{}, errNoRedis
	case key == "":
		return Decision{}, errEmptyKey
	case !q.valid():
		return Decision{}, errBadQuota
	}

	reply, err := takeTokenScript.Run(ctx, b.rdb, []string{key},
		q.perSecond, q.burst, q.keepAlive().Milliseconds()).Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(reply) != 2 {
		return Decision{}, errScriptResult
	}

	granted, _ := reply[0].(int64)
	level := parseLevel(reply[1])
	d := Decision{
		Allowed:   granted == 1,
		Limit:     q.burst,
		Remaining: int(level),
	}
	if !d.Allowed {
		d.RetryAfter = q.wait(level)
	}
	return d, nil
}

func parseLevel(v any) float64 {
	switch n := v.(type) {
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	case int64:
		return float64(n)
	default:
		return 0
	}
}
