package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// releaseLua deletes the key only while it still holds the caller's token.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// refreshLua extends the TTL only while the key still holds the caller's
// token. It returns 1 on success and 0 when the lease was lost.
const refreshLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.LockManager with SET NX PX and token-checked
// Lua scripts for refresh and release.
type LockManager struct {
	rdb       *redis.Client
	releaseSc *redis.Script
	refreshSc *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:       c.Underlying(),
		releaseSc: redis.NewScript(releaseLua),
		refreshSc: redis.NewScript(refreshLua),
	}
}

// LeaseKey is the lock key guarding the actor for one auction contract.
func LeaseKey(contract string) string {
	return "auctionbot:" + contract
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire takes the lock for key or returns domain.ErrLockHeld.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (domain.Lease, error) {
	token := uuid.NewString()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, domain.ErrLockHeld)
	}
	return &lease{lm: lm, key: lk, token: token, ttl: ttl}, nil
}

type lease struct {
	lm    *LockManager
	key   string
	token string
	ttl   time.Duration

	once sync.Once
}

// Refresh implements domain.Lease.
func (l *lease) Refresh(ctx context.Context) error {
	n, err := l.lm.refreshSc.Run(ctx, l.lm.rdb, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redis: refresh lock %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("redis: refresh lock %s: %w", l.key, domain.ErrLockLost)
	}
	return nil
}

// Release implements domain.Lease. It is safe to call more than once and
// runs on a fresh context so it works after the caller's context is done.
func (l *lease) Release() {
	l.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.lm.releaseSc.Run(ctx, l.lm.rdb, []string{l.key}, l.token).Err()
	})
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
