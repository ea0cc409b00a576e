package chat

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout  = 10 * time.Second
	defaultPongTimeout   = 60 * time.Second
	defaultPingInterval  = 30 * time.Second
	defaultInvokeTimeout = 10 * time.Second
)

// Conn is the minimal transport surface the client drives. The production
// implementation wraps a gorilla/websocket connection; tests substitute an
// in-memory pipe so the state machine runs without a network.
type Conn interface {
	// ReadMessage blocks until the next inbound frame's raw bytes arrive.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one frame. Safe for concurrent use.
	WriteMessage(data []byte) error
	// Ping sends a transport-level keepalive.
	Ping() error
	Close() error
}

// Dialer establishes a Conn. DialWebSocket is the production dialer.
type Dialer func(ctx context.Context, url string) (Conn, error)

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // serialises all conn writes (frames, pings)
}

// DialWebSocket performs the websocket handshake against url.
func DialWebSocket(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(defaultPongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(defaultPongTimeout))
	return &wsConn{conn: conn}, nil
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) Close() error { return c.conn.Close() }
