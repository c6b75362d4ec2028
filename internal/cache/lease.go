package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SyncLockKey is the Redis key holding the cross-process sync lease
const SyncLockKey = "hoopstats:sync:lock"

// ErrLeaseLost is returned by Release when the lease expired or was taken over
var ErrLeaseLost = errors.New("lease no longer held")

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript pushes the expiry out only while the key still holds our token
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lease is a single-holder lock on a Redis key that expires after a TTL.
// While held, the TTL is renewed in the background so long runs keep it.
type Lease struct {
	rc         *RedisCache
	key        string
	ttl        time.Duration
	renewEvery time.Duration
}

// NewLease returns a lease on key. Nothing is acquired until TryLock.
// The lease is renewed every ttl/3 while held.
func (rc *RedisCache) NewLease(key string, ttl time.Duration) *Lease {
	return &Lease{rc: rc, key: key, ttl: ttl, renewEvery: ttl / 3}
}

// WithRenewInterval overrides how often a held lease is renewed.
// A non-positive interval disables renewal.
func (l *Lease) WithRenewInterval(d time.Duration) *Lease {
	l.renewEvery = d
	return l
}

// TryLock attempts to take the lease without waiting. On success it returns
// an unlock function that stops renewal and releases the lease if it is
// still ours.
func (l *Lease) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	token := uuid.NewString()

	ok, err := l.rc.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", l.key, err)
	}
	if !ok {
		log.Debug().Str("key", l.key).Msg("Lease held by another process")
		return nil, false, nil
	}

	log.Debug().Str("key", l.key).Dur("ttl", l.ttl).Msg("Lease acquired")

	renewCtx, stopRenew := context.WithCancel(context.Background())
	renewDone := make(chan struct{})
	go l.keepAlive(renewCtx, token, renewDone)

	unlock := func(ctx context.Context) error {
		stopRenew()
		<-renewDone

		deleted, err := releaseScript.Run(ctx, l.rc.client, []string{l.key}, token).Int()
		if err != nil {
			return fmt.Errorf("failed to release lease %s: %w", l.key, err)
		}
		if deleted == 0 {
			return ErrLeaseLost
		}
		return nil
	}

	return unlock, true, nil
}

// keepAlive renews the lease until ctx is cancelled or the lease is lost
func (l *Lease) keepAlive(ctx context.Context, token string, done chan<- struct{}) {
	defer close(done)

	if l.renewEvery <= 0 {
		return
	}

	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		renewed, err := renewScript.Run(ctx, l.rc.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("key", l.key).Msg("Failed to renew lease, will retry")
			continue
		}
		if renewed == 0 {
			log.Warn().Str("key", l.key).Msg("Lease lost before release, renewal stopped")
			return
		}
	}
}
