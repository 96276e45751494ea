package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{domain.EventBidFailed, " "}, quietLogger())

	assert.NoError(t, n.NotifyOutcome(context.Background(), domain.OutcomeEvent{Event: domain.EventBidSubmitted}))
	assert.NoError(t, n.NotifyOutcome(context.Background(), domain.OutcomeEvent{Event: domain.EventBidFailed, AuctionID: "3"}))
	assert.NoError(t, n.NotifyAll(context.Background(), "Started", "watching"))

	check.Equal(t, []string{"Bid failed", "Started"}, s.titles)
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, quietLogger())
	assert.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	check.Equal(t, 1, len(s.titles))
}

func TestNotifierContinuesPastFailures(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	assert.NotNil(t, err)
	check.True(t, strings.Contains(err.Error(), "bad: boom"))
	check.Equal(t, 1, len(good.titles))
}

func TestChannelsSenders(t *testing.T) {
	check.Equal(t, 0, len(Channels{}.Senders()))
	check.Equal(t, 0, len(Channels{TelegramToken: "tok"}.Senders()))

	senders := Channels{TelegramToken: "tok", TelegramChatID: "1", DiscordWebhookURL: "https://d"}.Senders()
	assert.Equal(t, 2, len(senders))
	check.Equal(t, "telegram", senders[0].Name())
	check.Equal(t, "discord", senders[1].Name())
}

func TestOutcomeMessage(t *testing.T) {
	title, msg := OutcomeMessage(domain.OutcomeEvent{
		Event: domain.EventBidSubmitted, AuctionID: "8", BidAmount: "0.204", Value: "0.004", TxHash: "0xab",
	})
	check.Equal(t, "Bid placed", title)
	check.Equal(t, "Auction 8: bid 0.204 (sent 0.004), tx 0xab", msg)

	title, _ = OutcomeMessage(domain.OutcomeEvent{Event: domain.EventSettleFailed})
	check.Equal(t, "Settlement failed", title)
}

func TestTelegramSender(t *testing.T) {
	var gotPath string
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("T0KEN", "42")
	s.apiBase = srv.URL
	assert.NoError(t, s.Send(context.Background(), "Bid placed", "body"))

	check.Equal(t, "/botT0KEN/sendMessage", gotPath)
	check.Equal(t, "42", got["chat_id"])
	check.Equal(t, "*Bid placed*\nbody", got["text"])
}

func TestDiscordSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	assert.NotNil(t, err)
	check.True(t, strings.Contains(err.Error(), "discord: unexpected status 429: slow down"))
}
