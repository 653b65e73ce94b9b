// Package client provides a reusable WebSocket load test client for the
// GhostTalk gateway. It connects using gobwas/ws (the same library the
// server uses), announces an ephemeral identity via HEARTBEAT, and tracks
// per-connection performance metrics.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// ---------------------------------------------------------------------------
// Protocol message types (local equivalents of internal/protocol constants)
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeHeartbeat         = "HEARTBEAT"
	TypeMessage           = "MESSAGE"
	TypeChatRequest       = "CHAT_REQUEST"
	TypeChatAccept        = "CHAT_ACCEPT"
	TypeChatExit          = "CHAT_EXIT"
	TypeExtensionDecision = "CHAT_EXTENSION_DECISION"
	TypeChatRejoin        = "CHAT_REJOIN"
	TypePing              = "PING"
)

// Server -> Client message types.
const (
	TypeInitState      = "INIT_STATE"
	TypeChatClosed     = "CHAT_CLOSED"
	TypeChatExtended   = "CHAT_EXTENDED"
	TypeResetCommunity = "RESET_COMMUNITY"
	TypeResetSite      = "RESET_SITE"
	TypeError          = "ERROR"
	TypePong           = "PONG"
)

// RoomCommunity is the shared room id.
const RoomCommunity = "community"

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// Metrics tracks per-connection performance data.
type Metrics struct {
	ConnectLatency   time.Duration
	InitLatency      time.Duration
	MessagesReceived int
	MessagesSent     int
	Errors           int
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client represents a single simulated ghost connected to the gateway. It
// manages the WebSocket lifecycle and dispatches incoming messages to
// registered handlers.
type Client struct {
	conn      net.Conn
	userID    string
	username  string
	mu        sync.Mutex
	metrics   Metrics
	handlers  map[string]func(json.RawMessage)
	done      chan struct{}
	closeOnce sync.Once
	initSeen  bool
	dialedAt  time.Time
}

// New creates a load test client connected to the given WebSocket URL. The
// connection is established immediately and a background goroutine begins
// reading messages.
func New(ctx context.Context, url, userID, username string) (*Client, error) {
	start := time.Now()
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	c := &Client{
		conn:     conn,
		userID:   userID,
		username: username,
		handlers: make(map[string]func(json.RawMessage)),
		done:     make(chan struct{}),
		dialedAt: start,
	}
	c.metrics.ConnectLatency = time.Since(start)

	go c.readLoop()

	return c, nil
}

// Announce sends the HEARTBEAT that registers this client's identity.
func (c *Client) Announce() error {
	return c.Send(map[string]interface{}{
		"type": TypeHeartbeat,
		"user": map[string]interface{}{
			"id":                c.userID,
			"username":          c.username,
			"acceptingRequests": true,
		},
	})
}

// SendCommunityMessage sends one community message with the given id.
func (c *Client) SendCommunityMessage(msgID, text string) error {
	return c.Send(map[string]interface{}{
		"type": TypeMessage,
		"message": map[string]interface{}{
			"id":     msgID,
			"roomId": RoomCommunity,
			"text":   text,
		},
	})
}

// Send sends a JSON message to the server. It is goroutine-safe.
func (c *Client) Send(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.MessagesSent++
	return wsutil.WriteClientMessage(c.conn, ws.OpText, data)
}

// On registers a handler for a specific server message type. The handler
// receives the full raw JSON of the message for flexible decoding. Handlers
// are invoked from the read loop goroutine so they should not block for
// extended periods. Only one handler per message type is supported;
// registering a second handler for the same type replaces the first.
func (c *Client) On(msgType string, handler func(json.RawMessage)) {
	c.handlers[msgType] = handler
}

// WaitForInit blocks until the server has sent INIT_STATE or the context is
// cancelled.
func (c *Client) WaitForInit(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return fmt.Errorf("connection closed before INIT_STATE")
		case <-ticker.C:
			c.mu.Lock()
			seen := c.initSeen
			c.mu.Unlock()
			if seen {
				return nil
			}
		}
	}
}

// Close closes the connection and stops the read loop. It is safe to call
// multiple times.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// UserID returns this client's ephemeral identity.
func (c *Client) UserID() string {
	return c.userID
}

// GetMetrics returns a copy of the client's metrics.
func (c *Client) GetMetrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// readLoop continuously reads WebSocket frames from the server and dispatches
// them to registered handlers. It runs until the connection is closed or an
// unrecoverable error occurs.
func (c *Client) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		data, err := wsutil.ReadServerText(c.conn)
		if err != nil {
			select {
			case <-c.done:
				// Connection was intentionally closed; do not count as error.
				return
			default:
			}
			c.mu.Lock()
			c.metrics.Errors++
			c.mu.Unlock()
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}

		c.mu.Lock()
		c.metrics.MessagesReceived++
		if envelope.Type == TypeInitState && !c.initSeen {
			c.initSeen = true
			c.metrics.InitLatency = time.Since(c.dialedAt)
		}
		c.mu.Unlock()

		if handler, ok := c.handlers[envelope.Type]; ok {
			handler(json.RawMessage(data))
		}
	}
}
