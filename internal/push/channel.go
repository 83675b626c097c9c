// Package push delivers real-time events to connected clients.
//
// A Registry tracks the open channels of every user; services hand it a
// payload and a user ID and it fans the bytes out to each live connection.
// Delivery is best effort: a dead or slow connection is dropped, never
// allowed to fail the triggering request.
package push

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single frame write may block before the
// connection is considered dead.
const writeWait = 10 * time.Second

// Channel is one client connection able to receive pushed payloads.
type Channel interface {
	// Send writes one payload to the client.
	Send(payload []byte) error
	// Close tears the connection down.
	Close() error
}

// WSChannel adapts a websocket connection to the Channel interface. Gorilla
// connections allow one concurrent writer, so writes are serialized here.
type WSChannel struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSChannel wraps an upgraded websocket connection.
func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{conn: conn}
}

// Send writes payload as one text frame, bounded by writeWait.
func (c *WSChannel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Ping writes a control ping frame, serialized with regular sends.
func (c *WSChannel) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close closes the underlying connection.
func (c *WSChannel) Close() error {
	return c.conn.Close()
}
