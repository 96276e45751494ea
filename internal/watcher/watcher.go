// Package watcher runs the single-actor scheduling loop: poll the auction,
// decide, act on the decision, record the observation and sleep until the
// next retry.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/auctionbot/internal/auction"
	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// Recorder receives one audit record per successful poll. It must not block
// the loop on sink failures.
type Recorder interface {
	Record(ctx context.Context, rec domain.AuctionRecord)
}

// Notifier delivers operator alerts for outcome events.
type Notifier interface {
	NotifyOutcome(ctx context.Context, ev domain.OutcomeEvent) error
}

// Options carries the optional collaborators of a Watcher. Nil fields are
// skipped.
type Options struct {
	Recorder Recorder
	Bus      domain.SignalBus
	Notifier Notifier
	AuditLog domain.AuditStore

	// Clock and Sleep default to the wall clock and a context-aware timer.
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Observation is the result of one read-and-decide step.
type Observation struct {
	PollID   string
	Snapshot domain.AuctionSnapshot
	Decision auction.Decision
	At       time.Time
}

// Watcher polls a single auction on behalf of one actor.
type Watcher struct {
	ledger domain.AuctionLedger
	actor  string
	policy auction.Policy
	opts   Options
	logger *slog.Logger

	mu     sync.RWMutex
	status Status
}

// New creates a Watcher. policy must already be validated.
func New(ledger domain.AuctionLedger, actor string, policy auction.Policy, opts Options, logger *slog.Logger) *Watcher {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Watcher{
		ledger: ledger,
		actor:  actor,
		policy: policy,
		opts:   opts,
		logger: logger.With(slog.String("component", "watcher")),
		status: Status{Actor: actor},
	}
}

// Run polls until ctx is cancelled and returns ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "watcher started", slog.String("actor", w.actor))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delay := w.Poll(ctx)
		if err := w.opts.Sleep(ctx, delay); err != nil {
			w.logger.InfoContext(ctx, "watcher stopped", slog.String("reason", err.Error()))
			return err
		}
	}
}

// Poll performs one full iteration and returns how long to wait before the
// next one. Failures are logged; a read failure yields the read backoff.
func (w *Watcher) Poll(ctx context.Context) time.Duration {
	obs, err := w.Observe(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "auction read failed",
			slog.String("error", err.Error()),
			slog.Duration("next_retry", w.policy.ReadErrorBackoff),
		)
		w.setError(err)
		return w.policy.ReadErrorBackoff
	}
	if obs.Decision.Action != auction.ActionWait {
		w.Act(ctx, obs)
	}
	return obs.Decision.NextRetry
}

// Observe fetches the auction, evaluates it and records the observation.
// It never submits anything.
func (w *Watcher) Observe(ctx context.Context) (Observation, error) {
	pollID := uuid.NewString()
	snap, err := w.ledger.FetchAuction(ctx)
	if err != nil {
		return Observation{}, err
	}

	now := w.opts.Clock()
	d := auction.Decide(snap, w.actor, w.policy, now)
	obs := Observation{PollID: pollID, Snapshot: snap, Decision: d, At: now}

	attrs := []any{
		slog.String("poll_id", pollID),
		slog.String("auction_id", snap.ID),
		slog.String("amount", domain.FormatTokenAmount(snap.Amount)),
		slog.String("bidder", snap.Bidder),
		slog.Duration("seconds_left", d.SecondsLeft),
		slog.String("action", string(d.Action)),
		slog.String("reason", d.Reason),
		slog.Duration("next_retry", d.NextRetry),
	}
	if d.BidAmount != nil {
		attrs = append(attrs, slog.String("bid_amount", domain.FormatTokenAmount(d.BidAmount)))
	}
	w.logger.InfoContext(ctx, "auction polled", attrs...)

	if w.opts.Recorder != nil {
		w.opts.Recorder.Record(ctx, domain.RecordFromSnapshot(snap, now))
	}
	w.publish(ctx, domain.ChannelDecisions, decisionEvent(obs))
	w.setObservation(obs)
	return obs, nil
}

// Act carries out a bid or settle decision. Wait decisions are a no-op and
// return nil.
func (w *Watcher) Act(ctx context.Context, obs Observation) *domain.OutcomeEvent {
	var ev domain.OutcomeEvent
	switch obs.Decision.Action {
	case auction.ActionBid:
		ev = w.bid(ctx, obs)
	case auction.ActionSettle:
		ev = w.settle(ctx, obs.Snapshot.ID)
	default:
		return nil
	}
	w.finish(ctx, ev)
	return &ev
}

// Settle submits a settlement immediately, regardless of the auction state,
// and waits for it to be mined.
func (w *Watcher) Settle(ctx context.Context) error {
	var auctionID string
	if snap, err := w.ledger.FetchAuction(ctx); err == nil {
		auctionID = snap.ID
	} else {
		w.logger.WarnContext(ctx, "auction read before settlement failed", slog.String("error", err.Error()))
	}
	ev := w.settle(ctx, auctionID)
	w.finish(ctx, ev)
	if ev.Event == domain.EventSettleFailed {
		return fmt.Errorf("watcher: settle: %w: %s", domain.ErrSettlement, ev.Error)
	}
	return nil
}

func (w *Watcher) bid(ctx context.Context, obs Observation) domain.OutcomeEvent {
	amount := obs.Decision.BidAmount
	ev := domain.OutcomeEvent{
		Event:     domain.EventBidFailed,
		AuctionID: obs.Snapshot.ID,
		BidAmount: domain.FormatTokenAmount(amount),
	}

	reserve, err := w.ledger.PendingReturns(ctx, w.actor)
	if err != nil {
		return w.failed(ev, err)
	}
	value := auction.AmountToSend(amount, reserve)
	ev.Value = domain.FormatTokenAmount(value)
	req := domain.BidRequest{AuctionID: obs.Snapshot.ID, Amount: amount, Value: value}

	estimated, err := w.ledger.EstimateBidGas(ctx, req)
	if err != nil {
		return w.failed(ev, err)
	}
	ev.GasLimit = w.policy.GasLimit(estimated)

	w.logger.InfoContext(ctx, "submitting bid",
		slog.String("poll_id", obs.PollID),
		slog.String("auction_id", req.AuctionID),
		slog.String("bid_amount", ev.BidAmount),
		slog.String("reserve", domain.FormatTokenAmount(reserve)),
		slog.String("to_send", ev.Value),
		slog.Uint64("estimated_gas", estimated),
		slog.Uint64("gas_limit", ev.GasLimit),
	)

	ptx, err := w.ledger.SubmitBid(ctx, req, ev.GasLimit)
	if err != nil {
		return w.failed(ev, err)
	}
	ev.TxHash = ptx.Hash()
	if _, err := ptx.Wait(ctx); err != nil {
		return w.failed(ev, err)
	}
	ev.Event = domain.EventBidSubmitted
	ev.At = w.opts.Clock()
	return ev
}

func (w *Watcher) settle(ctx context.Context, auctionID string) domain.OutcomeEvent {
	ev := domain.OutcomeEvent{Event: domain.EventSettleFailed, AuctionID: auctionID}

	w.logger.InfoContext(ctx, "submitting settlement", slog.String("auction_id", auctionID))
	ptx, err := w.ledger.SubmitSettlement(ctx)
	if err != nil {
		return w.failed(ev, err)
	}
	ev.TxHash = ptx.Hash()
	if _, err := ptx.Wait(ctx); err != nil {
		return w.failed(ev, err)
	}
	ev.Event = domain.EventSettled
	ev.At = w.opts.Clock()
	return ev
}

func (w *Watcher) failed(ev domain.OutcomeEvent, err error) domain.OutcomeEvent {
	ev.Error = err.Error()
	ev.At = w.opts.Clock()
	return ev
}

// finish logs and fans out an outcome. None of the side channels can fail
// the loop.
func (w *Watcher) finish(ctx context.Context, ev domain.OutcomeEvent) {
	attrs := []any{
		slog.String("event", ev.Event),
		slog.String("auction_id", ev.AuctionID),
		slog.String("tx_hash", ev.TxHash),
	}
	if ev.BidAmount != "" {
		attrs = append(attrs, slog.String("bid_amount", ev.BidAmount), slog.String("to_send", ev.Value))
	}
	if ev.Error != "" {
		attrs = append(attrs, slog.String("error", ev.Error))
		w.logger.ErrorContext(ctx, "auction action failed", attrs...)
	} else {
		w.logger.InfoContext(ctx, "auction action confirmed", attrs...)
	}

	w.setOutcome(ev)
	w.publish(ctx, domain.ChannelOutcomes, ev)
	if w.opts.Bus != nil {
		if payload, err := json.Marshal(ev); err == nil {
			if err := w.opts.Bus.StreamAppend(ctx, domain.StreamOutcomes, payload); err != nil {
				w.logger.WarnContext(ctx, "outcome stream append failed", slog.String("error", err.Error()))
			}
		}
	}
	if w.opts.AuditLog != nil {
		detail := map[string]any{
			"auction_id": ev.AuctionID,
			"bid_amount": ev.BidAmount,
			"value":      ev.Value,
			"gas_limit":  ev.GasLimit,
			"tx_hash":    ev.TxHash,
			"error":      ev.Error,
			"actor":      w.actor,
		}
		if err := w.opts.AuditLog.Log(ctx, ev.Event, detail); err != nil {
			w.logger.WarnContext(ctx, "audit log write failed", slog.String("error", err.Error()))
		}
	}
	if w.opts.Notifier != nil {
		if err := w.opts.Notifier.NotifyOutcome(ctx, ev); err != nil {
			w.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) publish(ctx context.Context, channel string, v any) {
	if w.opts.Bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		w.logger.WarnContext(ctx, "event encode failed", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	if err := w.opts.Bus.Publish(ctx, channel, payload); err != nil {
		w.logger.WarnContext(ctx, "event publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

func decisionEvent(obs Observation) domain.DecisionEvent {
	ev := domain.DecisionEvent{
		PollID:      obs.PollID,
		AuctionID:   obs.Snapshot.ID,
		Amount:      domain.FormatTokenAmount(obs.Snapshot.Amount),
		Bidder:      obs.Snapshot.Bidder,
		SecondsLeft: obs.Decision.SecondsLeft.Seconds(),
		Action:      string(obs.Decision.Action),
		Reason:      obs.Decision.Reason,
		NextRetry:   obs.Decision.NextRetry.Seconds(),
		ObservedAt:  obs.At.UTC(),
	}
	if obs.Decision.BidAmount != nil {
		ev.BidAmount = domain.FormatTokenAmount(obs.Decision.BidAmount)
	}
	return ev
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
