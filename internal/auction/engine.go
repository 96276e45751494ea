package auction

import (
	"math/big"
	"strings"
	"time"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// ActionKind is what the actor should do after a poll.
type ActionKind string

const (
	ActionWait   ActionKind = "wait"
	ActionBid    ActionKind = "bid"
	ActionSettle ActionKind = "settle"
)

// Reasons attached to decisions, mostly for logs and the status API.
const (
	ReasonSettleOverdue = "settlement overdue"
	ReasonAwaitSettle   = "waiting to settle"
	ReasonClosing       = "auction closing"
	ReasonTooEarly      = "too early"
	ReasonTooExpensive  = "too expensive"
	ReasonOwnBid        = "own bid"
	ReasonEligible      = "eligible"
)

// Decision is the outcome of evaluating one snapshot.
type Decision struct {
	Action      ActionKind
	BidAmount   *big.Int // set only for ActionBid
	NextRetry   time.Duration
	SecondsLeft time.Duration
	Reason      string
}

// Decide maps a snapshot to an action and the delay before the next poll.
// Rules are checked in order and the first match wins. Settlement handling
// comes before the closing window, which comes before price and identity
// checks, so an overdue round is never considered for a bid.
//
// The price ceiling is compared with the current top bid, not with the bid
// that would be placed, so the bid that first crosses the ceiling is allowed.
func Decide(snap domain.AuctionSnapshot, actor string, p Policy, now time.Time) Decision {
	left := snap.SecondsLeft(now)
	d := Decision{SecondsLeft: left}

	switch {
	case left <= -p.SettleGrace:
		d.Action = ActionSettle
		d.NextRetry = p.SettleConfirmRetry
		d.Reason = ReasonSettleOverdue
	case left < 0:
		d.Action = ActionWait
		d.NextRetry = p.SettleGrace + left
		d.Reason = ReasonAwaitSettle
	case left < p.ClosingThreshold:
		d.Action = ActionWait
		d.NextRetry = p.ClosingRetry
		d.Reason = ReasonClosing
	case left > p.MinBidWindow:
		d.Action = ActionWait
		d.NextRetry = left - p.MinBidWindow
		d.Reason = ReasonTooEarly
	case amountOf(snap).Cmp(p.PriceCeiling) >= 0:
		d.Action = ActionWait
		d.NextRetry = left + p.CeilingBuffer
		d.Reason = ReasonTooExpensive
	case sameAccount(snap.Bidder, actor):
		d.Action = ActionWait
		d.NextRetry = p.SelfBidRetry
		d.Reason = ReasonOwnBid
	default:
		d.Action = ActionBid
		d.BidAmount = SizeBid(amountOf(snap), p.PriceCeiling, p.BidIncrementPct, p.DefaultInitialBid)
		d.NextRetry = p.PostBidRetry
		d.Reason = ReasonEligible
	}
	return d
}

func amountOf(snap domain.AuctionSnapshot) *big.Int {
	if !snap.HasBids() {
		return new(big.Int)
	}
	return snap.Amount
}

// sameAccount compares hex addresses ignoring checksum casing.
func sameAccount(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}
