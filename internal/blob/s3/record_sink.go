package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

const defaultRecordPrefix = "auctions"

// objectStore is the slice of Client the record sink needs.
type objectStore interface {
	domain.BlobWriter
	domain.BlobReader
}

// recordObject is the JSON document stored per auction.
type recordObject struct {
	AuctionID  string    `json:"auction_id"`
	Bidder     string    `json:"bidder"`
	Amount     string    `json:"amount"`
	Settled    bool      `json:"settled"`
	ObservedAt time.Time `json:"observed_at"`
}

// RecordSink writes one object per auction id. S3 PUTs replace whole
// objects, so the latest observation wins.
type RecordSink struct {
	store  objectStore
	prefix string
}

// NewRecordSink creates a sink under prefix (default "auctions").
func NewRecordSink(store objectStore, prefix string) *RecordSink {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultRecordPrefix
	}
	return &RecordSink{store: store, prefix: prefix}
}

func (s *RecordSink) key(auctionID string) string {
	return path.Join(s.prefix, auctionID+".json")
}

// Upsert implements domain.AuctionRecordSink.
func (s *RecordSink) Upsert(ctx context.Context, rec domain.AuctionRecord) error {
	if rec.AuctionID == "" || strings.ContainsAny(rec.AuctionID, "/\\") {
		return fmt.Errorf("s3blob: invalid auction id %q", rec.AuctionID)
	}
	body, err := json.Marshal(recordObject{
		AuctionID:  rec.AuctionID,
		Bidder:     rec.Bidder,
		Amount:     rec.Amount,
		Settled:    rec.Settled,
		ObservedAt: rec.ObservedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("s3blob: encode record %s: %w", rec.AuctionID, err)
	}
	return s.store.Put(ctx, s.key(rec.AuctionID), bytes.NewReader(body), "application/json")
}

// Get reads back the record for auctionID.
func (s *RecordSink) Get(ctx context.Context, auctionID string) (domain.AuctionRecord, error) {
	if auctionID == "" || strings.ContainsAny(auctionID, "/\\") {
		return domain.AuctionRecord{}, fmt.Errorf("s3blob: auction %q: %w", auctionID, domain.ErrNotFound)
	}
	body, err := s.store.Get(ctx, s.key(auctionID))
	if err != nil {
		return domain.AuctionRecord{}, err
	}
	defer body.Close()

	var obj recordObject
	if err := json.NewDecoder(body).Decode(&obj); err != nil {
		return domain.AuctionRecord{}, fmt.Errorf("s3blob: decode record %s: %w", auctionID, err)
	}
	return domain.AuctionRecord{
		AuctionID:  obj.AuctionID,
		Bidder:     obj.Bidder,
		Amount:     obj.Amount,
		Settled:    obj.Settled,
		ObservedAt: obj.ObservedAt,
	}, nil
}

// Compile-time interface checks.
var (
	_ objectStore                = (*Client)(nil)
	_ domain.AuctionRecordSink   = (*RecordSink)(nil)
	_ domain.AuctionRecordReader = (*RecordSink)(nil)
)
