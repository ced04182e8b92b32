package dialer

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLease implements Lease on a Redis key per campaign with PX expiry.
// The owner token keeps one scheduler instance from releasing or renewing a
// lease another instance took over after expiry.
type RedisLease struct {
	rdb   *redis.Client
	owner string
}

func NewRedisLease(rdb *redis.Client, owner string) *RedisLease {
	return &RedisLease{rdb: rdb, owner: owner}
}

func leaseKey(campaignID string) string {
	return "dialer:lease:" + campaignID
}

var leaseAcquireScript = redis.NewScript(`
-- KEYS[1] = lease key
-- ARGV[1] = owner token
-- ARGV[2] = ttl_ms
--
-- Returns 1 if acquired or renewed by the same owner, 0 if held elsewhere.
local holder = redis.call('GET', KEYS[1])
if holder == false or holder == ARGV[1] then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return 1
end
return 0
`)

var leaseReleaseScript = redis.NewScript(`
-- KEYS[1] = lease key
-- ARGV[1] = owner token
if redis.call('GET', KEYS[1]) == ARGV[1] then
  redis.call('DEL', KEYS[1])
end
return 1
`)

func (l *RedisLease) Acquire(ctx context.Context, campaignID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("lease ttl must be > 0")
	}
	res, err := leaseAcquireScript.Run(ctx, l.rdb, []string{leaseKey(campaignID)}, l.owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("acquire campaign lease: %w", err)
	}
	return res == 1, nil
}

func (l *RedisLease) Release(ctx context.Context, campaignID string) error {
	if _, err := leaseReleaseScript.Run(ctx, l.rdb, []string{leaseKey(campaignID)}, l.owner).Result(); err != nil {
		return fmt.Errorf("release campaign lease: %w", err)
	}
	return nil
}
