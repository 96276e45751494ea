// Package notify delivers operator alerts to Telegram and Discord. Alerts
// are filtered by event type so operators only receive what they ask for.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Channels lists the configured destinations. Empty credentials disable a
// channel.
type Channels struct {
	TelegramToken     string
	TelegramChatID    string
	DiscordWebhookURL string
}

// Senders builds one Sender per configured channel.
func (c Channels) Senders() []Sender {
	var out []Sender
	if c.TelegramToken != "" && c.TelegramChatID != "" {
		out = append(out, NewTelegramSender(c.TelegramToken, c.TelegramChatID))
	}
	if c.DiscordWebhookURL != "" {
		out = append(out, NewDiscordSender(c.DiscordWebhookURL))
	}
	return out
}

// Notifier dispatches notifications to one or more Senders. Notify only
// forwards allowed event types; NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Notify sends a notification if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyOutcome formats a bid or settlement outcome and sends it through
// the event filter.
func (n *Notifier) NotifyOutcome(ctx context.Context, ev domain.OutcomeEvent) error {
	title, msg := OutcomeMessage(ev)
	return n.Notify(ctx, ev.Event, title, msg)
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch sends to every sender. One failing sender does not stop delivery
// to the rest; failures are combined into the returned error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// OutcomeMessage renders the title and body for an outcome event.
func OutcomeMessage(ev domain.OutcomeEvent) (string, string) {
	switch ev.Event {
	case domain.EventBidSubmitted:
		return "Bid placed", fmt.Sprintf("Auction %s: bid %s (sent %s), tx %s", ev.AuctionID, ev.BidAmount, ev.Value, ev.TxHash)
	case domain.EventBidFailed:
		return "Bid failed", fmt.Sprintf("Auction %s: bid %s failed: %s", ev.AuctionID, ev.BidAmount, ev.Error)
	case domain.EventSettled:
		return "Auction settled", fmt.Sprintf("Auction %s settled, tx %s", ev.AuctionID, ev.TxHash)
	case domain.EventSettleFailed:
		return "Settlement failed", fmt.Sprintf("Auction %s: settlement failed: %s", ev.AuctionID, ev.Error)
	}
	return ev.Event, fmt.Sprintf("Auction %s", ev.AuctionID)
}
