package domain

import "time"

// Event names published on the signal bus, written to the audit log and
// used as notification filters.
const (
	EventDecision     = "decision"
	EventBidSubmitted = "bid_submitted"
	EventBidFailed    = "bid_failed"
	EventSettled      = "settled"
	EventSettleFailed = "settle_failed"
)

// Bus channels and streams.
const (
	ChannelDecisions = "ch:auction:decision"
	ChannelOutcomes  = "ch:auction:outcome"
	StreamOutcomes   = "auction:outcomes"
)

// DecisionEvent is the payload published after every poll.
type DecisionEvent struct {
	PollID      string    `json:"poll_id"`
	AuctionID   string    `json:"auction_id"`
	Amount      string    `json:"amount"`
	Bidder      string    `json:"bidder"`
	SecondsLeft float64   `json:"seconds_left"`
	Action      string    `json:"action"`
	BidAmount   string    `json:"bid_amount,omitempty"`
	Reason      string    `json:"reason"`
	NextRetry   float64   `json:"next_retry_seconds"`
	ObservedAt  time.Time `json:"observed_at"`
}

// OutcomeEvent describes the result of a bid or settlement attempt.
type OutcomeEvent struct {
	Event     string    `json:"event"`
	AuctionID string    `json:"auction_id"`
	BidAmount string    `json:"bid_amount,omitempty"`
	Value     string    `json:"value,omitempty"`
	GasLimit  uint64    `json:"gas_limit,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
