package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Close code sent to a connection whose user registered a newer session.
const CloseSessionReplaced = 4000

var ErrConnClosed = errors.New("connection closed")

// Conn is the live connection handle stored in the Registry.
type Conn interface {
	// Send writes one text frame. It must be safe for concurrent use.
	Send(payload []byte) error
	// Ready reports whether the connection can still accept frames.
	Ready() bool
	Close(code int, reason string) error
}

// ConnInfo describes a websocket connection for logs and lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Client wraps a gorilla websocket connection. gorilla allows one concurrent
// writer, so every write goes through mu.
type Client struct {
	conn      *websocket.Conn
	info      ConnInfo
	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewClient wraps conn.
func NewClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{conn: conn, info: info}
}

// Info returns the connection metadata.
func (c *Client) Info() ConnInfo {
	return c.info
}

func (c *Client) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.closed.Store(true)
		return err
	}
	return nil
}

func (c *Client) Ready() bool {
	return !c.closed.Load()
}

func (c *Client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close sends a close frame and releases the socket. Only the first call has
// any effect.
func (c *Client) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}
