// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package realtime delivers chat/file events to project participants over
// WebSocket connections grouped into per-project rooms.
//
// Delivery semantics: at-most-once. An event published into a room reaches
// every connected participant except the sender; a participant whose send
// queue is full is disconnected rather than stalled, and nothing is
// redelivered. Events from a single sender reach other participants in send
// order (single reader per connection, single writer per peer); no
// cross-sender ordering is guaranteed.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
	"github.com/devgrid/devgrid/services/workspace/observability"
)

// Envelope is one wire event: a name plus the project-message payload.
type Envelope struct {
	Event string                   `json:"event"`
	Data  datatypes.ProjectMessage `json:"data"`
}

// MessageFunc observes every inbound room event after broadcast. The
// workspace session uses it to feed AI responses into the interpreter.
type MessageFunc func(msg datatypes.ProjectMessage)

// Hub groups clients into rooms scoped by project ID.
//
// # Thread Safety
//
// Safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]map[*Client]struct{}
	onInbound MessageFunc
}

// NewHub returns an empty hub. onInbound may be nil.
func NewHub(onInbound MessageFunc) *Hub {
	return &Hub{
		rooms:     make(map[string]map[*Client]struct{}),
		onInbound: onInbound,
	}
}

// join adds the client to its project room.
func (h *Hub) join(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.projectID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.projectID] = room
	}
	room[c] = struct{}{}
	if m := observability.DefaultMetrics; m != nil {
		m.ConnectionOpened(c.projectID)
	}
	slog.Info("client joined room", "project", c.projectID, "principal", c.principal, "peers", len(room))
}

// leave removes the client from its room, dropping empty rooms.
func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.projectID]
	if !ok {
		return
	}
	if _, member := room[c]; !member {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.projectID)
	}
	if m := observability.DefaultMetrics; m != nil {
		m.ConnectionClosed(c.projectID)
	}
	slog.Info("client left room", "project", c.projectID, "principal", c.principal)
}

// Broadcast delivers the event to every room member except sender. A nil
// sender (server-originated event) reaches everyone. Members whose queues
// are full leave the room and are disconnected; they never receive later
// events.
func (h *Hub) Broadcast(sender *Client, msg datatypes.ProjectMessage) {
	env := Envelope{Event: datatypes.ProjectMessageEvent, Data: msg}

	if m := observability.DefaultMetrics; m != nil {
		if sender != nil {
			m.RecordMessage("incoming")
		} else {
			m.RecordMessage("outgoing")
		}
	}

	h.mu.RLock()
	room := h.rooms[msg.ProjectID]
	var stalled []*Client
	for c := range room {
		if c == sender {
			continue
		}
		if !c.trySend(env) {
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	// Membership goes first: a client must be out of the room before its
	// queue closes, so a concurrent broadcast cannot target a closed queue.
	for _, c := range stalled {
		slog.Warn("dropping stalled realtime client", "project", c.projectID, "principal", c.principal)
		h.leave(c)
		c.closeOnce()
	}

	if h.onInbound != nil && sender != nil {
		h.onInbound(msg)
	}
}

// RoomSize returns the number of connected participants for a project.
func (h *Hub) RoomSize(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[projectID])
}

// CloseRoom disconnects every participant of a project.
func (h *Hub) CloseRoom(projectID string) {
	h.mu.Lock()
	room := h.rooms[projectID]
	delete(h.rooms, projectID)
	h.mu.Unlock()
	for c := range room {
		c.closeOnce()
	}
}
