package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is the single multiplexed market-data connection described in
// §6: one stream URL subscribed, per instrument, to top-of-book, depth,
// aggregated trades, and 1-minute/15-minute candles.
type Client struct {
	url     string
	conn    *websocket.Conn
	header  http.Header
	writeMu sync.Mutex

	pingCancel context.CancelFunc
}

// NewClient creates a new exchange ingestion client.
func NewClient(url string) *Client {
	header := make(http.Header)
	header.Set("User-Agent", "perpsignal/1.0")
	return &Client{url: url, header: header}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	c.conn = conn
	log.Printf("✅ Connected to exchange stream %s", c.url)
	return nil
}

// SubscribeRequest is the JSON subscribe control message.
type SubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// Subscribe sends a subscription message for the given stream names
// (already formatted as "<instrument>@<feedkind>").
func (c *Client) Subscribe(streams []string) error {
	req := SubscribeRequest{Method: "SUBSCRIBE", Params: streams, ID: time.Now().UnixNano()}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}
	if err := c.WriteMessage(data); err != nil {
		return fmt.Errorf("failed to send subscription: %w", err)
	}
	log.Printf("📡 Subscribed to %d streams", len(streams))
	return nil
}

// StartPing starts a periodic ping to keep the connection alive, per the
// teacher's ping-goroutine pattern, cancelable via Close.
func (c *Client) StartPing(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.pingCancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.writeMu.Lock()
				err := c.conn.WriteMessage(websocket.PingMessage, nil)
				c.writeMu.Unlock()
				if err != nil {
					log.Println("Failed to send ping:", err)
					return
				}
			}
		}
	}()
}

// WriteMessage sends a text message thread-safely.
func (c *Client) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ReadMessage reads and decodes one JSON envelope frame (§6). Read idle
// timeout is 300s per §5's cancellation/timeouts section.
func (c *Client) ReadMessage() (*Envelope, error) {
	c.conn.SetReadDeadline(time.Now().Add(300 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return &env, nil
}

// Close closes the WebSocket connection and stops the ping goroutine.
func (c *Client) Close() error {
	if c.pingCancel != nil {
		c.pingCancel()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// FeedKind identifies which analysis path a stream frame belongs to.
type FeedKind string

const (
	FeedTrade       FeedKind = "trade"
	FeedDepth       FeedKind = "depth"
	FeedKline1m     FeedKind = "kline_1m"
	FeedKline15m    FeedKind = "kline_15m"
	FeedBookTicker  FeedKind = "bookTicker"
	FeedUnknown     FeedKind = "unknown"
)

// ParseStream splits a stream name "<instrument>@<feedkind>" into its
// instrument and classified feed kind.
func ParseStream(stream string) (instrument string, kind FeedKind) {
	parts := strings.SplitN(stream, "@", 2)
	if len(parts) != 2 {
		return stream, FeedUnknown
	}
	instrument = strings.ToUpper(parts[0])
	suffix := parts[1]

	switch {
	case strings.HasPrefix(suffix, "aggTrade") || strings.HasPrefix(suffix, "trade"):
		return instrument, FeedTrade
	case strings.HasPrefix(suffix, "depth"):
		return instrument, FeedDepth
	case suffix == "kline_1m":
		return instrument, FeedKline1m
	case suffix == "kline_15m":
		return instrument, FeedKline15m
	case suffix == "bookTicker":
		return instrument, FeedBookTicker
	default:
		return instrument, FeedUnknown
	}
}
