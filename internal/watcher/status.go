package watcher

import (
	"time"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// Status is the last thing the watcher saw and did, for the status API.
type Status struct {
	Actor string `json:"actor"`
	Polls uint64 `json:"polls"`

	PollID      string     `json:"poll_id,omitempty"`
	AuctionID   string     `json:"auction_id,omitempty"`
	Amount      string     `json:"amount,omitempty"`
	Bidder      string     `json:"bidder,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Settled     bool       `json:"settled"`
	Action      string     `json:"action,omitempty"`
	BidAmount   string     `json:"bid_amount,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	SecondsLeft float64    `json:"seconds_left"`
	NextRetry   float64    `json:"next_retry_seconds"`

	LastOutcome *domain.OutcomeEvent `json:"last_outcome,omitempty"`
	LastError   string               `json:"last_error,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Status returns a copy of the current status.
func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := w.status
	if s.LastOutcome != nil {
		o := *s.LastOutcome
		s.LastOutcome = &o
	}
	if s.EndTime != nil {
		end := *s.EndTime
		s.EndTime = &end
	}
	return s
}

func (w *Watcher) setObservation(obs Observation) {
	ev := decisionEvent(obs)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Polls++
	w.status.PollID = ev.PollID
	w.status.AuctionID = ev.AuctionID
	w.status.Amount = ev.Amount
	w.status.Bidder = ev.Bidder
	w.status.EndTime = nil
	if end := obs.Snapshot.EndTime; !end.IsZero() {
		w.status.EndTime = &end
	}
	w.status.Settled = obs.Snapshot.Settled
	w.status.Action = ev.Action
	w.status.BidAmount = ev.BidAmount
	w.status.Reason = ev.Reason
	w.status.SecondsLeft = ev.SecondsLeft
	w.status.NextRetry = ev.NextRetry
	w.status.LastError = ""
	w.status.UpdatedAt = ev.ObservedAt
}

func (w *Watcher) setOutcome(ev domain.OutcomeEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.LastOutcome = &ev
	w.status.LastError = ev.Error
	w.status.UpdatedAt = ev.At.UTC()
}

func (w *Watcher) setError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Polls++
	w.status.LastError = err.Error()
	w.status.UpdatedAt = w.opts.Clock().UTC()
}
