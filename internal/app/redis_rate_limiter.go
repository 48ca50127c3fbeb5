/**
 * @description
 * This file implements the gateway callback throttle on Redis. Every
 * subscriber phone number gets a fixed one-minute window with a per-minute
 * callback budget set at construction. A single Lua script increments the
 * counter and arms the window expiry atomically, so concurrent callbacks from
 * one number observe a consistent count even across gateway workers.
 */

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// callbackWindow is the throttle window. The budget is per minute; a finer
// window would let a burst exhaust the budget in the first seconds and then
// lock the subscriber out of an in-flight conversation.
const callbackWindow = time.Minute

var callbackThrottleScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisCallbackRateLimiter bounds how many USSD callbacks one phone number
// may make per minute.
type RedisCallbackRateLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
	perMinute int
}

// NewRedisCallbackRateLimiter creates a limiter with the given per-minute
// budget. A nil client or non-positive budget yields a limiter that allows
// everything.
func NewRedisCallbackRateLimiter(client redis.UniversalClient, keyPrefix string, perMinute int) *RedisCallbackRateLimiter {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = "oneubank:rate_limit"
	}
	prefix = strings.TrimSuffix(prefix, ":")

	return &RedisCallbackRateLimiter{
		client:    client,
		keyPrefix: prefix,
		perMinute: perMinute,
	}
}

// AllowCallback counts one callback for the phone number and reports whether
// it fits the per-minute budget, plus how many seconds until the window
// resets.
func (r *RedisCallbackRateLimiter) AllowCallback(ctx context.Context, phoneNumber string) (allowed bool, retryAfterSeconds int, err error) {
	subject := strings.TrimSpace(phoneNumber)
	if r == nil || r.client == nil || r.perMinute <= 0 || subject == "" {
		return true, 0, nil
	}

	key := r.keyPrefix + ":ussd_callback:" + subject
	values, err := callbackThrottleScript.Run(ctx, r.client, []string{key}, callbackWindow.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected throttle script response length %d", len(values))
	}

	count, ttlMs := values[0], values[1]
	if ttlMs < 0 {
		ttlMs = callbackWindow.Milliseconds()
	}
	retryAfter := int((ttlMs + 999) / 1000)
	if retryAfter < 1 {
		retryAfter = 1
	}

	return count <= int64(r.perMinute), retryAfter, nil
}
