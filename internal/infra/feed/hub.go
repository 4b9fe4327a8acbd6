// Package feed pushes pool events to websocket subscribers.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"poolbet/internal/event"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	// AllChannels matches every event.
	AllChannels = "*"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Type     string          `json:"type"`
	Seq      uint64          `json:"seq,omitempty"`
	Channels []string        `json:"channels,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// subscribeMsg is what a client sends to change its subscriptions.
// Channels are event types ("NewBet") or "condition:<id>".
type subscribeMsg struct {
	Action   string   `json:"action"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

type broadcastMsg struct {
	channels []string
	data     []byte
}

// Gauge tracks the number of connected clients.
type Gauge interface {
	IncrementSubscribers()
	DecrementSubscribers()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool
	mu   sync.RWMutex
}

// Hub fans pool events out to websocket clients. It is an event.Sink;
// Publish never blocks the caller and drops events when the hub is behind.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	sendBuffer int
	gauge      Gauge
	dropped    atomic.Uint64
}

// NewHub creates a hub. sendBuffer bounds both the hub queue and each
// client's queue.
func NewHub(sendBuffer int, gauge Gauge) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		sendBuffer: sendBuffer,
		gauge:      gauge,
	}
}

// Dropped is the number of messages discarded for a full queue.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Publish queues an event for every subscribed client.
func (h *Hub) Publish(ev event.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("feed: failed to encode event", slog.Any("error", err))
		return
	}
	data, err := json.Marshal(Message{Type: string(ev.GetType()), Seq: ev.GetSeq(), Payload: payload})
	if err != nil {
		return
	}

	select {
	case h.broadcast <- broadcastMsg{channels: channelsOf(ev), data: data}:
	default:
		h.dropped.Add(1)
	}
}

// channelsOf lists the channels an event is delivered on.
func channelsOf(ev event.Event) []string {
	channels := []string{string(ev.GetType())}
	var id uint64
	switch e := ev.(type) {
	case *event.ConditionCreatedEvent:
		id = e.ConditionID
	case *event.ConditionResolvedEvent:
		id = e.ConditionID
	case *event.ConditionShiftedEvent:
		id = e.ConditionID
	case *event.ConditionStoppedEvent:
		id = e.ConditionID
	case *event.NewBetEvent:
		id = e.ConditionID
	case *event.FreeBetRedeemedEvent:
		id = e.ConditionID
	default:
		return channels
	}
	return append(channels, "condition:"+strconv.FormatUint(id, 10))
}

// Run starts the hub's main loop. It returns when ctx is cancelled.
// Clients that connect or leave afterwards no longer wait for it.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			if h.gauge != nil {
				h.gauge.IncrementSubscribers()
			}
			h.mu.Unlock()
			slog.Info("feed: client connected", slog.Int("total_clients", h.clientCount()))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				if h.gauge != nil {
					h.gauge.DecrementSubscribers()
				}
			}
			h.mu.Unlock()
			slog.Info("feed: client disconnected", slog.Int("total_clients", h.clientCount()))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.isSubscribed(msg.channels) {
					select {
					case c.send <- msg.data:
					default:
						h.dropped.Add(1)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Serve runs an HTTP server with the feed at /ws until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWS)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("feed: listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// HandleWS upgrades an HTTP request to a websocket and registers the client.
// New clients receive every event until they change their subscriptions.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("feed: upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		subs: map[string]bool{AllChannels: true},
	}

	if !h.join(c) {
		conn.Close()
		return
	}
	c.reply(Message{Type: "hello", Channels: []string{AllChannels}})

	go c.writePump()
	go c.readPump()
}

// join hands c to the main loop. It fails once the hub has stopped.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave removes c unless the hub has stopped, which already dropped it.
func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("feed: unexpected close error", slog.Any("error", err))
			}
			return
		}

		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err != nil {
			c.reply(Message{Type: "error", Payload: json.RawMessage(strconv.Quote(err.Error()))})
			continue
		}
		c.reply(Message{Type: "subscriptions", Channels: c.handleSubscription(sub)})
	}
}

// handleSubscription applies a request and returns the resulting channels.
func (c *client) handleSubscription(msg subscribeMsg) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range msg.Channels {
		ch = strings.TrimSpace(ch)
		switch msg.Action {
		case "subscribe":
			c.subs[ch] = true
		case "unsubscribe":
			delete(c.subs, ch)
		}
	}

	out := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		out = append(out, ch)
	}
	return out
}

// reply queues a control message for this client only.
func (c *client) reply(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}

	// send is closed by the hub under the write lock once c is removed.
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) isSubscribed(channels []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subs[AllChannels] {
		return true
	}
	for _, ch := range channels {
		if c.subs[ch] {
			return true
		}
	}
	return false
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
