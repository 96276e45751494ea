package domain

import (
	"math/big"
	"time"
)

// AuctionSnapshot is the state of the current auction round as read from the
// contract in a single poll. Snapshots are never reused across polls.
type AuctionSnapshot struct {
	ID        string   // auction (token) id, unique per round
	Amount    *big.Int // current highest bid in wei
	StartTime time.Time
	EndTime   time.Time
	Bidder    string // hex address of the current highest bidder
	Settled   bool
}

// SecondsLeft returns the time remaining until the bidding window closes,
// measured against now. The result is negative once the window has closed.
func (s AuctionSnapshot) SecondsLeft(now time.Time) time.Duration {
	return s.EndTime.Sub(now)
}

// HasBids reports whether anyone has bid on the round yet.
func (s AuctionSnapshot) HasBids() bool {
	return s.Amount != nil && s.Amount.Sign() > 0
}

// BidRequest is everything the ledger needs to place a bid.
type BidRequest struct {
	AuctionID string
	Amount    *big.Int // bid amount in wei
	Value     *big.Int // wei attached to the transaction (bid minus reserve)
}

// AuctionRecord is the audit view of a snapshot, keyed by auction id. A later
// observation of the same id replaces the earlier one.
type AuctionRecord struct {
	AuctionID  string
	Bidder     string
	Amount     string // human readable, e.g. "0.204"
	Settled    bool
	ObservedAt time.Time
}

// RecordFromSnapshot derives the audit record for s observed at ts.
func RecordFromSnapshot(s AuctionSnapshot, ts time.Time) AuctionRecord {
	return AuctionRecord{
		AuctionID:  s.ID,
		Bidder:     s.Bidder,
		Amount:     FormatTokenAmount(s.Amount),
		Settled:    s.Settled,
		ObservedAt: ts.UTC(),
	}
}
