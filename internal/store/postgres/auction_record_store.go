package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// AuctionRecordStore implements domain.AuctionRecordStore. A record is
// replaced only by an observation that is not older than the stored one.
type AuctionRecordStore struct {
	pool *pgxpool.Pool
}

// NewAuctionRecordStore creates a new AuctionRecordStore.
func NewAuctionRecordStore(pool *pgxpool.Pool) *AuctionRecordStore {
	return &AuctionRecordStore{pool: pool}
}

// Upsert inserts or replaces the record for rec.AuctionID.
func (s *AuctionRecordStore) Upsert(ctx context.Context, rec domain.AuctionRecord) error {
	const query = `
		INSERT INTO auction_records (auction_id, bidder, amount, settled, observed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (auction_id) DO UPDATE SET
			bidder      = EXCLUDED.bidder,
			amount      = EXCLUDED.amount,
			settled     = EXCLUDED.settled,
			observed_at = EXCLUDED.observed_at,
			updated_at  = NOW()
		WHERE auction_records.observed_at <= EXCLUDED.observed_at`

	_, err := s.pool.Exec(ctx, query, rec.AuctionID, rec.Bidder, rec.Amount, rec.Settled, rec.ObservedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert auction record %s: %w", rec.AuctionID, err)
	}
	return nil
}

// Get returns the record for auctionID or domain.ErrNotFound.
func (s *AuctionRecordStore) Get(ctx context.Context, auctionID string) (domain.AuctionRecord, error) {
	const query = `
		SELECT auction_id, bidder, amount, settled, observed_at
		FROM auction_records WHERE auction_id = $1`

	var rec domain.AuctionRecord
	err := s.pool.QueryRow(ctx, query, auctionID).Scan(
		&rec.AuctionID, &rec.Bidder, &rec.Amount, &rec.Settled, &rec.ObservedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AuctionRecord{}, domain.ErrNotFound
		}
		return domain.AuctionRecord{}, fmt.Errorf("postgres: get auction record %s: %w", auctionID, err)
	}
	return rec, nil
}

// ListRecent returns records ordered by observation time, newest first.
func (s *AuctionRecordStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.AuctionRecord, error) {
	query, args := listQuery(
		`SELECT auction_id, bidder, amount, settled, observed_at FROM auction_records`,
		"observed_at", opts,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auction records: %w", err)
	}
	defer rows.Close()

	var out []domain.AuctionRecord
	for rows.Next() {
		var rec domain.AuctionRecord
		if err := rows.Scan(&rec.AuctionID, &rec.Bidder, &rec.Amount, &rec.Settled, &rec.ObservedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan auction record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list auction records rows: %w", err)
	}
	return out, nil
}
