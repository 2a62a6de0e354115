// Package realtime receives server push events over a websocket. Events only
// nudge the sync core to re-fetch; polling stays the source of truth.
package realtime

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/feedsync/pkg/bus"
	"github.com/zfogg/feedsync/pkg/config"
	"github.com/zfogg/feedsync/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventType names a server push event
type EventType string

const (
	EventMessageCreated EventType = "message.created"
	EventPostUpdated    EventType = "post.updated"
	EventPostDeleted    EventType = "post.deleted"
	EventHeartbeat      EventType = "heartbeat"
	EventPong           EventType = "pong"

	// EventAny subscribes to every event
	EventAny EventType = ""
)

// Event is one frame on the wire
type Event struct {
	Type    EventType           `json:"type"`
	Payload jsoniter.RawMessage `json:"payload,omitempty"`
}

// MessageCreated is the payload of EventMessageCreated
type MessageCreated struct {
	ThreadID  string `json:"threadId"`
	MessageID string `json:"messageId"`
}

// PostChanged is the payload of EventPostUpdated and EventPostDeleted
type PostChanged struct {
	PostID string `json:"postId"`
}

// NewEvent builds an event with a JSON payload
func NewEvent(t EventType, payload any) (Event, error) {
	if payload == nil {
		return Event{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Payload: data}, nil
}

// Decode unmarshals the payload into v
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Encode returns the event's wire form
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEvent reads an event from its wire form
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Config holds websocket client configuration
type Config struct {
	URL                  string
	ConnectTimeout       time.Duration
	HeartbeatInterval    time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int
}

// DefaultConfig returns a development configuration
func DefaultConfig() Config {
	return Config{
		URL:                  "ws://localhost:4000/api/ws",
		ConnectTimeout:       15 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		ReconnectBaseDelay:   2 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: -1, // unlimited
	}
}

// ConfigFromConfig applies realtime.url from configuration to the defaults
func ConfigFromConfig() Config {
	cfg := DefaultConfig()
	if u := config.GetString("realtime.url"); u != "" {
		cfg.URL = u
	}
	return cfg
}

// ConnectionState represents the state of the websocket connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// ConnectionStats holds connection statistics
type ConnectionStats struct {
	MessagesReceived int64
	MessagesSent     int64
	ReconnectCount   int
	LastError        string
	ConnectedAt      time.Time
	DisconnectedAt   time.Time
}

// Client manages one websocket connection and reconnects when it drops
type Client struct {
	config Config
	state  atomic.Value // ConnectionState

	mu      sync.RWMutex
	conn    *websocket.Conn
	token   string
	writeMu sync.Mutex

	listenersMu sync.Mutex
	listeners   map[EventType]*bus.Bus[Event]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsLock sync.RWMutex
	stats     ConnectionStats
}

// NewClient creates a disconnected client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config:    config,
		listeners: make(map[EventType]*bus.Bus[Event]),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.state.Store(StateDisconnected)
	return c
}

// State returns the connection state
func (c *Client) State() ConnectionState {
	return c.state.Load().(ConnectionState)
}

// IsConnected returns true if the connection is established
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect dials the server and keeps the connection alive until Disconnect
func (c *Client) Connect(token string) error {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	c.state.Store(StateConnecting)
	conn, err := c.dial()
	if err != nil {
		c.state.Store(StateError)
		c.recordError(err)
		return fmt.Errorf("websocket connect failed: %w", err)
	}
	c.attach(conn)

	c.wg.Add(1)
	go c.run(conn)

	logger.Debug("WebSocket connected", "url", c.config.URL)
	return nil
}

// Disconnect closes the connection and stops reconnecting
func (c *Client) Disconnect() {
	c.cancel()

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.state.Store(StateDisconnected)
	c.statsLock.Lock()
	c.stats.DisconnectedAt = time.Now()
	c.statsLock.Unlock()
	logger.Debug("WebSocket disconnected")
}

// On subscribes fn to events of type t. EventAny receives every event.
func (c *Client) On(t EventType, fn func(Event)) func() {
	c.listenersMu.Lock()
	b, ok := c.listeners[t]
	if !ok {
		b = bus.New[Event]()
		c.listeners[t] = b
	}
	c.listenersMu.Unlock()
	return b.Subscribe(fn)
}

// Send writes an event to the server
func (c *Client) Send(ev Event) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	data, err := ev.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	c.statsLock.Lock()
	c.stats.MessagesSent++
	c.statsLock.Unlock()
	return nil
}

// GetStats returns connection statistics
func (c *Client) GetStats() ConnectionStats {
	c.statsLock.RLock()
	defer c.statsLock.RUnlock()
	return c.stats
}

func (c *Client) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	timeout := c.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.state.Store(StateConnected)
	c.statsLock.Lock()
	c.stats.ConnectedAt = time.Now()
	c.statsLock.Unlock()
}

// run owns the connection: it reads until the connection drops, then
// reconnects with backoff and carries on with the new connection
func (c *Client) run(conn *websocket.Conn) {
	defer c.wg.Done()

	for conn != nil {
		connCtx, stopHeartbeat := context.WithCancel(c.ctx)
		go c.heartbeatLoop(connCtx)
		c.readLoop(conn)
		stopHeartbeat()

		if c.ctx.Err() != nil {
			return
		}
		conn = c.reconnect()
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.recordError(err)
				logger.Warn("WebSocket read error", "error", err)
			}
			return
		}
		ev, err := ParseEvent(data)
		if err != nil {
			logger.Debug("Ignoring malformed websocket frame", "error", err)
			continue
		}

		c.statsLock.Lock()
		c.stats.MessagesReceived++
		c.statsLock.Unlock()

		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev Event) {
	c.listenersMu.Lock()
	typed := c.listeners[ev.Type]
	all := c.listeners[EventAny]
	c.listenersMu.Unlock()

	if typed != nil && ev.Type != EventAny {
		typed.Publish(ev)
	}
	if all != nil {
		all.Publish(ev)
	}
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	interval := c.config.HeartbeatInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Send(Event{Type: EventHeartbeat}); err != nil {
				logger.Debug("Failed to send heartbeat", "error", err)
			}
		}
	}
}

func (c *Client) reconnect() *websocket.Conn {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.state.Store(StateReconnecting)
	c.statsLock.Lock()
	c.stats.DisconnectedAt = time.Now()
	c.statsLock.Unlock()

	delay := c.config.ReconnectBaseDelay
	for attempt := 0; ; attempt++ {
		if c.config.MaxReconnectAttempts >= 0 && attempt >= c.config.MaxReconnectAttempts {
			c.state.Store(StateError)
			logger.Error("Max reconnection attempts reached", "attempts", attempt)
			return nil
		}

		wait := delay + jitter(delay)
		logger.Debug("Reconnecting WebSocket", "attempt", attempt+1, "wait_ms", wait.Milliseconds())

		select {
		case <-c.ctx.Done():
			return nil
		case <-time.After(wait):
		}

		conn, err := c.dial()
		if err != nil {
			c.recordError(err)
			delay = nextDelay(delay, c.config.ReconnectMaxDelay)
			continue
		}

		c.attach(conn)
		c.statsLock.Lock()
		c.stats.ReconnectCount++
		c.statsLock.Unlock()
		logger.Debug("WebSocket reconnected")
		return conn
	}
}

func nextDelay(d, ceiling time.Duration) time.Duration {
	d *= 2
	if ceiling > 0 {
		d = min(d, ceiling)
	}
	return max(d, time.Millisecond)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)/2 + 1))
}

func (c *Client) recordError(err error) {
	c.statsLock.Lock()
	c.stats.LastError = err.Error()
	c.statsLock.Unlock()
}
