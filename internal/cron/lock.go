package cron

import (
	"context"
	"time"

	"github.com/karimndoye/sunumarket-backend/pkg/redis"
)

// Locker serializes job runs across worker replicas with a Redis SETNX
// lease. Losing the lease race means another replica is already running the
// job this tick.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Acquire attempts to take the lease for a job scope.
func (l *Locker) Acquire(ctx context.Context, scope string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.client.LockKey(scope), time.Now().UTC().Format(time.RFC3339), ttl)
}

// Release gives the lease back early.
func (l *Locker) Release(ctx context.Context, scope string) error {
	return l.client.Del(ctx, l.client.LockKey(scope))
}
