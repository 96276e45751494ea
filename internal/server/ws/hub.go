// Package ws streams watcher decisions and outcomes to dashboard clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/auctionbot/internal/domain"
	"github.com/alanyoungcy/auctionbot/internal/watcher"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be below pongWait
	maxMessageSize = 4096
	sendBufferSize = 64
)

// defaultChannels are the Redis pub/sub channels the hub relays. New clients
// start subscribed to all of them.
var defaultChannels = []string{
	domain.ChannelDecisions,
	domain.ChannelOutcomes,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS and auth middleware in front of /ws.
	CheckOrigin: func(*http.Request) bool { return true },
}

// envelope wraps every frame sent to clients.
type envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// subscribeMsg changes a client's channel set. Both forms are accepted:
//
//	{"action":"unsubscribe","channels":["ch:auction:decision"]}
//	{"subscribe":["ch:auction:*"],"unsubscribe":["ch:auction:decision"]}
type subscribeMsg struct {
	Action      string   `json:"action"`
	Channels    []string `json:"channels"`
	Subscribe   []string `json:"subscribe"`
	Unsubscribe []string `json:"unsubscribe"`
}

func (m subscribeMsg) empty() bool {
	return m.Action == "" && len(m.Channels) == 0 && len(m.Subscribe) == 0 && len(m.Unsubscribe) == 0
}

type frame struct {
	channel string
	data    []byte
}

// Config captures runtime metadata sent to clients on connect.
type Config struct {
	Mode      string
	StartedAt time.Time
	// Status, when set, supplies the watcher state for the welcome frame.
	Status func() watcher.Status
}

// Hub fans bus messages out to connected WebSocket clients.
type Hub struct {
	bus    domain.SignalBus
	cfg    Config
	logger *slog.Logger

	frames     chan frame
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub reading from bus. Call Run before serving HandleWS.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode == "" {
		cfg.Mode = "unknown"
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	return &Hub{
		bus:        bus,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "ws")),
		frames:     make(chan frame, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

// Run relays bus messages until ctx is cancelled, then disconnects every
// client and returns ctx.Err().
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range defaultChannels {
		go h.relay(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("clients", n))

		case f := <-h.frames:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(f.channel) {
					continue
				}
				select {
				case c.send <- f.data:
				default:
					h.logger.Warn("ws: client too slow, frame dropped", slog.String("channel", f.channel))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// relay forwards one bus channel into the hub, wrapping each payload in an
// envelope. Payloads that are not JSON are dropped.
func (h *Hub) relay(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: bus subscription closed", slog.String("channel", channel))
				return
			}
			data, err := json.Marshal(envelope{Type: eventType(channel), Channel: channel, Payload: payload})
			if err != nil {
				continue
			}
			select {
			case h.frames <- frame{channel: channel, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func eventType(channel string) string {
	switch channel {
	case domain.ChannelDecisions:
		return "decision"
	case domain.ChannelOutcomes:
		return "outcome"
	default:
		return "message"
	}
}

// HandleWS upgrades the request and attaches the connection to the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool, len(defaultChannels)),
	}
	for _, ch := range defaultChannels {
		c.subs[ch] = true
	}

	// Queued before registration so Run can never close send first.
	if msg, err := h.welcome(); err == nil {
		c.send <- msg
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writeLoop()
	go c.readLoop()
}

// welcome is the first frame on every connection: the mode, uptime and the
// watcher's latest state.
func (h *Hub) welcome() ([]byte, error) {
	uptime := int64(time.Since(h.cfg.StartedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	payload := map[string]any{
		"mode":           h.cfg.Mode,
		"uptime_seconds": uptime,
	}
	if h.cfg.Status != nil {
		payload["watcher"] = h.cfg.Status()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: "bot_status", Payload: raw})
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu   sync.RWMutex
	subs map[string]bool
}

// wants reports whether the client follows channel. A trailing "*" in a
// subscription matches any suffix.
func (c *client) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	add, drop := msg.Subscribe, msg.Unsubscribe
	switch msg.Action {
	case "subscribe":
		add = append(add, msg.Channels...)
	case "unsubscribe":
		drop = append(drop, msg.Channels...)
	}
	for _, ch := range add {
		c.subs[ch] = true
	}
	for _, ch := range drop {
		delete(c.subs, ch)
	}
}

// readLoop handles subscription changes and keeps the read deadline moving
// on pongs. It unregisters the client when the connection ends.
func (c *client) readLoop() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var msg subscribeMsg
		if json.Unmarshal(data, &msg) == nil && !msg.empty() {
			c.apply(msg)
		}
	}
}

// writeLoop sends queued frames as text messages and pings on an interval.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
