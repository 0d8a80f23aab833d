package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// extendScript renews the lease only while this owner holds it.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a named, expiring leader lock. A process that stops renewing
// loses the lease after its TTL.
type Lease struct {
	client redis.UniversalClient
	owner  string
	logger *zap.Logger
}

func NewLease(c redis.UniversalClient, logger *zap.Logger) *Lease {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lease{client: c, owner: uuid.NewString(), logger: logger.Named("lease")}
}

// Owner is the token this process writes into the lease key.
func (l *Lease) Owner() string { return l.owner }

// TryAcquire takes the lease if it is free and renews it if this process
// already holds it.
func (l *Lease) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	key := leaseKey(name)

	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if ok {
		l.logger.Info("lease acquired", zap.String("lease", name), zap.Duration("ttl", ttl))
		return true, nil
	}

	n, err := extendScript.Run(ctx, l.client, []string{key}, l.owner, ttl.Milliseconds()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("renew lease %s: %w", name, err)
	}
	return n == 1, nil
}

// Release gives the lease up if this process holds it.
func (l *Lease) Release(ctx context.Context, name string) error {
	if err := releaseScript.Run(ctx, l.client, []string{leaseKey(name)}, l.owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	return nil
}

func leaseKey(name string) string { return "lock:" + name }
