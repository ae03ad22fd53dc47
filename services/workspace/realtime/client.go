// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
)

const (
	// writeWait bounds a single write to a peer.
	writeWait = 10 * time.Second

	// pongWait is how long a peer may stay silent before the read side
	// gives up; pings go out at a fraction of it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds one inbound frame.
	maxMessageSize = datatypes.MaxMessageBytes + 4096

	// sendQueueSize is the per-client outbound buffer. A client this far
	// behind is disconnected rather than stalled.
	sendQueueSize = 64
)

// Client is one connected participant of a project room.
//
// Lifecycle: the connection is authorized before the client exists
// (rejected connections never join a room); Serve pumps events until the
// peer disconnects or the hub drops the client, which is terminal — there
// is no automatic reconnection here, callers reconnect explicitly.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	projectID string
	principal string

	// sendMu guards send against close: trySend and closeOnce are the only
	// two operations touching the channel from outside the write pump, and
	// they must never interleave a send with the close.
	sendMu sync.Mutex
	closed bool
	send   chan Envelope
}

// NewClient wraps an authorized, upgraded connection. The caller is
// expected to invoke Serve.
func NewClient(hub *Hub, conn *websocket.Conn, projectID, principal string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		projectID: projectID,
		principal: principal,
		send:      make(chan Envelope, sendQueueSize),
	}
}

// Principal returns the authenticated identity behind the connection.
func (c *Client) Principal() string { return c.principal }

// ProjectID returns the room scope of the connection.
func (c *Client) ProjectID() string { return c.projectID }

// Serve joins the room and blocks pumping the connection until it ends.
func (c *Client) Serve() {
	c.hub.join(c)
	go c.writePump()
	c.readPump()
}

// readPump relays inbound project-message events into the hub. One reader
// per connection preserves the sender's publish order.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.closeOnce()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Info("websocket client disconnected", "project", c.projectID, "error", err.Error())
			}
			return
		}
		if env.Event != datatypes.ProjectMessageEvent {
			continue
		}
		env.Data.ProjectID = c.projectID
		env.Data.Sender = c.principal
		if err := env.Data.Validate(); err != nil {
			slog.Warn("rejecting invalid project message", "project", c.projectID, "error", err)
			continue
		}
		c.hub.Broadcast(c, env.Data)
	}
}

// writePump is the single writer for the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				slog.Warn("failed to write websocket event", "project", c.projectID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues an event without blocking. Returns false when the queue is
// full or already closed; it never sends on a closed channel.
func (c *Client) trySend(env Envelope) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// closeOnce closes the send queue exactly once, ending the write pump.
func (c *Client) closeOnce() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
