package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxRetries  = 10
	baseDelay   = 1 * time.Second
	maxDelay    = 60 * time.Second
	readTimeout = 2 * pongWait
)

// Client follows a hub and forwards every message to out. It reconnects
// with exponential backoff until Disconnect is called.
type Client struct {
	url      string
	channels []string
	out      chan<- Message

	conn    *websocket.Conn
	mu      sync.RWMutex
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewClient creates a client. With no channels it receives every event.
func NewClient(url string, channels []string, out chan<- Message) *Client {
	return &Client{url: url, channels: channels, out: out}
}

// Connect starts the connection loop in the background.
func (c *Client) Connect(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.connectionLoop(ctx)
	return nil
}

// Disconnect stops the client and waits for its loop to exit.
func (c *Client) Disconnect() {
	if c.cancel != nil {
		c.cancel()
	}
	c.closeConnection()
	c.wg.Wait()
}

// Backoff is the delay before reconnect attempt retry.
func Backoff(retry int) time.Duration {
	if retry >= 30 {
		return maxDelay
	}
	return min(baseDelay<<retry, maxDelay)
}

func (c *Client) connectionLoop(ctx context.Context) {
	defer c.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			slog.Warn("feed: connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := Backoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}
		retryCount = 0
		c.readLoop(ctx)
	}
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.subscribe(); err != nil {
		c.closeConnection()
		return err
	}

	slog.Info("feed: connected", slog.String("url", c.url), slog.Int("channels", len(c.channels)))
	return nil
}

func (c *Client) subscribe() error {
	if len(c.channels) == 0 {
		return nil
	}
	for _, msg := range []subscribeMsg{
		{Action: "unsubscribe", Channels: []string{AllChannels}},
		{Action: "subscribe", Channels: c.channels},
	} {
		b, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := c.threadSafeWrite(websocket.TextMessage, b); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) threadSafeWrite(msgType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return errors.New("no conn")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(msgType, data)
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.closeConnection()
			return
		}

		var m Message
		if json.Unmarshal(data, &m) != nil {
			continue
		}
		select {
		case c.out <- m:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) closeConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
