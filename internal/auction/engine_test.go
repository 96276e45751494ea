package auction

import (
	"math/big"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

const (
	actor = "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01"
	other = "0x1111111111111111111111111111111111111111"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func snapshot(left time.Duration, amount *big.Int, bidder string) domain.AuctionSnapshot {
	return domain.AuctionSnapshot{
		ID:        "1",
		Amount:    amount,
		StartTime: now.Add(left - 24*time.Hour),
		EndTime:   now.Add(left),
		Bidder:    bidder,
	}
}

func TestDecide_OverdueAlwaysSettles(t *testing.T) {
	p := DefaultPolicy()
	for _, left := range []time.Duration{-p.SettleGrace, -p.SettleGrace - time.Second, -48 * time.Hour} {
		for _, amount := range []*big.Int{big.NewInt(0), domain.MustTokenAmount("1"), domain.MustTokenAmount("10")} {
			for _, bidder := range []string{actor, other, ""} {
				d := Decide(snapshot(left, amount, bidder), actor, p, now)
				check.Equal(t, ActionSettle, d.Action)
				check.Equal(t, p.SettleConfirmRetry, d.NextRetry)
			}
		}
	}
}

func TestDecide_WithinGraceWaitsUntilGraceEnds(t *testing.T) {
	p := DefaultPolicy()
	for _, left := range []time.Duration{
		-time.Nanosecond,
		-time.Second,
		-90 * time.Second,
		-1500 * time.Millisecond,
		-p.SettleGrace + time.Nanosecond,
	} {
		d := Decide(snapshot(left, big.NewInt(0), other), actor, p, now)
		check.Equal(t, ActionWait, d.Action)
		check.Equal(t, p.SettleGrace+left, d.NextRetry)
		check.Equal(t, ReasonAwaitSettle, d.Reason)
	}
}

func TestDecide_ClosingWindow(t *testing.T) {
	p := DefaultPolicy()
	for _, left := range []time.Duration{0, time.Second, p.ClosingThreshold - time.Nanosecond} {
		d := Decide(snapshot(left, big.NewInt(0), other), actor, p, now)
		check.Equal(t, ActionWait, d.Action)
		check.Equal(t, p.ClosingRetry, d.NextRetry)
		check.Equal(t, ReasonClosing, d.Reason)
	}

	// At the threshold bidding is allowed again.
	d := Decide(snapshot(p.ClosingThreshold, big.NewInt(0), other), actor, p, now)
	check.Equal(t, ActionBid, d.Action)
}

func TestDecide_TooEarlyWakesWhenWindowOpens(t *testing.T) {
	p := DefaultPolicy()
	for _, left := range []time.Duration{
		p.MinBidWindow + time.Nanosecond,
		p.MinBidWindow + time.Minute,
		23 * time.Hour,
	} {
		d := Decide(snapshot(left, domain.MustTokenAmount("100"), actor), actor, p, now)
		check.Equal(t, ActionWait, d.Action)
		check.Equal(t, left-p.MinBidWindow, d.NextRetry)
		check.Equal(t, ReasonTooEarly, d.Reason)
	}
}

func TestDecide_PriceCeilingUsesCurrentAmount(t *testing.T) {
	p := DefaultPolicy()
	left := 100 * time.Second

	d := Decide(snapshot(left, domain.MustTokenAmount("2.5"), other), actor, p, now)
	check.Equal(t, ActionWait, d.Action)
	check.Equal(t, left+p.CeilingBuffer, d.NextRetry)
	check.Equal(t, ReasonTooExpensive, d.Reason)

	// Just under the ceiling: the sized bid crosses it and is still placed.
	d = Decide(snapshot(left, domain.MustTokenAmount("2.49"), other), actor, p, now)
	check.Equal(t, ActionBid, d.Action)
	check.Equal(t, "2.5398", domain.FormatTokenAmount(d.BidAmount))
	check.True(t, d.BidAmount.Cmp(p.PriceCeiling) > 0)
}

func TestDecide_OwnBidIsCaseInsensitive(t *testing.T) {
	p := DefaultPolicy()
	for _, bidder := range []string{actor, "0xabcdef0123456789abcdef0123456789abcdef01", "0XABCDEF0123456789ABCDEF0123456789ABCDEF01"} {
		d := Decide(snapshot(100*time.Second, domain.MustTokenAmount("1"), bidder), actor, p, now)
		check.Equal(t, ActionWait, d.Action)
		check.Equal(t, p.SelfBidRetry, d.NextRetry)
		check.Equal(t, ReasonOwnBid, d.Reason)
	}
}

func TestDecide_SecondsLeftComesFromSuppliedClock(t *testing.T) {
	p := DefaultPolicy()
	snap := snapshot(10*time.Minute, big.NewInt(0), other)

	early := Decide(snap, actor, p, now)
	check.Equal(t, ActionWait, early.Action)
	check.Equal(t, 5*time.Minute, early.NextRetry)

	later := Decide(snap, actor, p, now.Add(6*time.Minute))
	check.Equal(t, ActionBid, later.Action)
	check.Equal(t, 4*time.Minute, later.SecondsLeft)
}

func TestDecide_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		policy    func(*Policy)
		snap      domain.AuctionSnapshot
		action    ActionKind
		nextRetry time.Duration
		bid       string
	}{
		{
			name:      "fresh auction before the bidding window",
			policy:    func(p *Policy) { p.MinBidWindow = 300 * time.Second },
			snap:      snapshot(400*time.Second, big.NewInt(0), "0x0"),
			action:    ActionWait,
			nextRetry: 100 * time.Second,
		},
		{
			name:      "fresh auction inside the bidding window",
			policy:    func(p *Policy) { p.MinBidWindow = 300 * time.Second },
			snap:      snapshot(200*time.Second, big.NewInt(0), "0x0"),
			action:    ActionBid,
			nextRetry: 30 * time.Second,
			bid:       "0.2",
		},
		{
			name:      "own bid is not outbid",
			snap:      snapshot(100*time.Second, domain.MustTokenAmount("1.0"), actor),
			action:    ActionWait,
			nextRetry: 15 * time.Second,
		},
		{
			name:      "no bids yet opens at the default bid",
			policy:    func(p *Policy) { p.PriceCeiling = domain.MustTokenAmount("2.5") },
			snap:      snapshot(100*time.Second, big.NewInt(0), other),
			action:    ActionBid,
			nextRetry: 30 * time.Second,
			bid:       "0.2",
		},
		{
			name:      "long overdue round is settled",
			policy:    func(p *Policy) { p.SettleGrace = 900 * time.Second },
			snap:      snapshot(-1000*time.Second, domain.MustTokenAmount("1"), other),
			action:    ActionSettle,
			nextRetry: 5 * time.Second,
		},
		{
			name:      "outbid another bidder",
			snap:      snapshot(2*time.Minute, domain.MustTokenAmount("1"), other),
			action:    ActionBid,
			nextRetry: 30 * time.Second,
			bid:       "1.02",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			if tt.policy != nil {
				tt.policy(&p)
			}
			d := Decide(tt.snap, actor, p, now)
			check.Equal(t, tt.action, d.Action)
			check.Equal(t, tt.nextRetry, d.NextRetry)
			if tt.bid == "" {
				check.True(t, d.BidAmount == nil)
				return
			}
			check.Equal(t, tt.bid, domain.FormatTokenAmount(d.BidAmount))
		})
	}
}

func TestDecide_ScenarioC_SendsFullBidWithoutReserve(t *testing.T) {
	p := DefaultPolicy()
	d := Decide(snapshot(100*time.Second, big.NewInt(0), other), actor, p, now)
	check.Equal(t, ActionBid, d.Action)
	check.Equal(t, p.DefaultInitialBid.String(), d.BidAmount.String())
	check.Equal(t, d.BidAmount.String(), AmountToSend(d.BidAmount, big.NewInt(0)).String())
}

func TestDecide_NilAmountTreatedAsNoBids(t *testing.T) {
	p := DefaultPolicy()
	d := Decide(snapshot(time.Minute, nil, other), actor, p, now)
	check.Equal(t, ActionBid, d.Action)
	check.Equal(t, p.DefaultInitialBid.String(), d.BidAmount.String())
}

func TestPolicyValidate(t *testing.T) {
	check.Nil(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.ClosingThreshold = p.MinBidWindow
	p.GasSafetyMultiplierPct = 50
	p.PriceCeiling = nil
	err := p.Validate()
	check.NotNil(t, err)
}

func TestDecide_ZeroAmountBidsDefaultEvenWithBidderSet(t *testing.T) {
	p := DefaultPolicy()
	d := Decide(snapshot(time.Minute, big.NewInt(0), "0x0000000000000000000000000000000000000000"), actor, p, now)
	check.Equal(t, ActionBid, d.Action)
	check.Equal(t, ReasonEligible, d.Reason)
	check.Equal(t, p.DefaultInitialBid.String(), d.BidAmount.String())
}
