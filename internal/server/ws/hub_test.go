package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionbot/internal/domain"
	"github.com/alanyoungcy/auctionbot/internal/watcher"
)

type fakeBus struct {
	mu   sync.Mutex
	subs map[string]chan []byte
}

func newFakeBus() *fakeBus {
	b := &fakeBus{subs: make(map[string]chan []byte)}
	for _, ch := range defaultChannels {
		b.subs[ch] = make(chan []byte, 8)
	}
	return b
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[channel] <- payload
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs[channel], nil
}

func (b *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func readFrame(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	assert.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	assert.NoError(t, err)
	check.Equal(t, websocket.TextMessage, kind)
	var f envelope
	assert.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestHubRelaysDecisions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newFakeBus()
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Mode:   "WATCH",
		Status: func() watcher.Status { return watcher.Status{Actor: "0xme", AuctionID: "42"} },
	})
	go hub.Run(ctx)

	srv := httptest.NewServer(httpHandler(hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	assert.NoError(t, err)
	defer conn.Close()

	welcome := readFrame(t, conn)
	check.Equal(t, "bot_status", welcome.Type)
	var status struct {
		Mode    string         `json:"mode"`
		Watcher watcher.Status `json:"watcher"`
	}
	assert.NoError(t, json.Unmarshal(welcome.Payload, &status))
	check.Equal(t, "watch", status.Mode)
	check.Equal(t, "42", status.Watcher.AuctionID)

	assert.NoError(t, bus.Publish(ctx, domain.ChannelDecisions, []byte(`{"auction_id":"42","action":"bid"}`)))

	got := readFrame(t, conn)
	check.Equal(t, "decision", got.Type)
	check.Equal(t, domain.ChannelDecisions, got.Channel)
	check.Equal(t, `{"auction_id":"42","action":"bid"}`, string(got.Payload))
}

func TestClientSubscriptions(t *testing.T) {
	c := &client{subs: map[string]bool{domain.ChannelDecisions: true}}

	check.True(t, c.wants(domain.ChannelDecisions))
	check.False(t, c.wants(domain.ChannelOutcomes))

	c.apply(subscribeMsg{Unsubscribe: []string{domain.ChannelDecisions}})
	check.False(t, c.wants(domain.ChannelDecisions))

	c.apply(subscribeMsg{Action: "subscribe", Channels: []string{"ch:auction:*"}})
	check.True(t, c.wants(domain.ChannelDecisions))
	check.True(t, c.wants(domain.ChannelOutcomes))

	check.True(t, subscribeMsg{}.empty())
}

func TestEventType(t *testing.T) {
	check.Equal(t, "decision", eventType(domain.ChannelDecisions))
	check.Equal(t, "outcome", eventType(domain.ChannelOutcomes))
	check.Equal(t, "message", eventType("other"))
}

func httpHandler(h *Hub) http.HandlerFunc { return h.HandleWS }
