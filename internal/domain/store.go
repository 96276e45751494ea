package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuctionRecordSink upserts audit records keyed by auction id.
type AuctionRecordSink interface {
	Upsert(ctx context.Context, rec AuctionRecord) error
}

// AuctionRecordReader reads a single record back by auction id. Missing
// records yield ErrNotFound.
type AuctionRecordReader interface {
	Get(ctx context.Context, auctionID string) (AuctionRecord, error)
}

// AuctionRecordStore is a sink that can also be queried.
type AuctionRecordStore interface {
	AuctionRecordSink
	AuctionRecordReader
	ListRecent(ctx context.Context, opts ListOpts) ([]AuctionRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of bid and settlement events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
