package domain

import (
	"context"
	"time"
)

// Lease is a held lock that must be refreshed before its TTL runs out.
type Lease interface {
	// Refresh extends the lease. It returns ErrLockLost if another holder
	// took the key in the meantime.
	Refresh(ctx context.Context) error
	Release()
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
