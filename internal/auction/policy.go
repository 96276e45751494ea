// Package auction holds the bidding policy and the pure decision logic that
// turns an auction snapshot into an action and a retry delay.
package auction

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// Policy is the set of constants the decision engine works with. It is built
// once at startup and never mutated.
type Policy struct {
	// MinBidWindow is how close to the end of the round bidding starts.
	MinBidWindow time.Duration
	// SettleGrace is how long after the round closes settlement is left to
	// others before this actor settles itself.
	SettleGrace time.Duration
	// ClosingThreshold is the final stretch of the round in which no bids
	// are placed.
	ClosingThreshold time.Duration

	PriceCeiling      *big.Int // wei; no bids once the top bid reaches it
	DefaultInitialBid *big.Int // wei; opening bid for a round with no bids
	BidIncrementPct   int64

	GasSafetyMultiplierPct uint64

	SettleConfirmRetry time.Duration
	ClosingRetry       time.Duration
	CeilingBuffer      time.Duration
	SelfBidRetry       time.Duration
	PostBidRetry       time.Duration
	ReadErrorBackoff   time.Duration
}

// DefaultPolicy returns the policy the bot ships with.
func DefaultPolicy() Policy {
	return Policy{
		MinBidWindow:           5 * time.Minute,
		SettleGrace:            15 * time.Minute,
		ClosingThreshold:       15 * time.Second,
		PriceCeiling:           domain.MustTokenAmount("2.5"),
		DefaultInitialBid:      domain.MustTokenAmount("0.2"),
		BidIncrementPct:        2,
		GasSafetyMultiplierPct: 200,
		SettleConfirmRetry:     5 * time.Second,
		ClosingRetry:           30 * time.Second,
		CeilingBuffer:          5 * time.Second,
		SelfBidRetry:           15 * time.Second,
		PostBidRetry:           30 * time.Second,
		ReadErrorBackoff:       30 * time.Second,
	}
}

// Validate reports every inconsistent setting in one error.
func (p Policy) Validate() error {
	var errs []string
	if p.MinBidWindow <= 0 {
		errs = append(errs, "min_bid_window must be > 0")
	}
	if p.SettleGrace <= 0 {
		errs = append(errs, "settle_grace must be > 0")
	}
	if p.ClosingThreshold < 0 {
		errs = append(errs, "closing_threshold must be >= 0")
	}
	if p.ClosingThreshold >= p.MinBidWindow {
		errs = append(errs, "closing_threshold must be shorter than min_bid_window")
	}
	if p.PriceCeiling == nil || p.PriceCeiling.Sign() <= 0 {
		errs = append(errs, "price_ceiling must be > 0")
	}
	if p.DefaultInitialBid == nil || p.DefaultInitialBid.Sign() <= 0 {
		errs = append(errs, "default_initial_bid must be > 0")
	}
	if p.BidIncrementPct <= 0 {
		errs = append(errs, "bid_increment_pct must be > 0")
	}
	if p.GasSafetyMultiplierPct < 100 {
		errs = append(errs, "gas_safety_multiplier_pct must be >= 100")
	}
	for name, d := range map[string]time.Duration{
		"settle_confirm_retry": p.SettleConfirmRetry,
		"closing_retry":        p.ClosingRetry,
		"self_bid_retry":       p.SelfBidRetry,
		"post_bid_retry":       p.PostBidRetry,
		"read_error_backoff":   p.ReadErrorBackoff,
	} {
		if d <= 0 {
			errs = append(errs, name+" must be > 0")
		}
	}
	if p.CeilingBuffer < 0 {
		errs = append(errs, "ceiling_buffer must be >= 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("auction: invalid policy: %s", strings.Join(errs, "; "))
	}
	return nil
}
