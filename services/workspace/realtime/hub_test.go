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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devgrid/devgrid/services/workspace/datatypes"
)

// testClient builds a room member without a live connection. Tests that
// never call Serve can inspect the send queue directly.
func testClient(h *Hub, projectID, principal string) *Client {
	return NewClient(h, nil, projectID, principal)
}

func testMessage(projectID, sender, body string) datatypes.ProjectMessage {
	return datatypes.ProjectMessage{
		Message:   body,
		Sender:    sender,
		ProjectID: projectID,
	}
}

func TestHub_JoinLeaveRoomSize(t *testing.T) {
	h := NewHub(nil)
	assert.Equal(t, 0, h.RoomSize("p1"))

	a := testClient(h, "p1", "alice")
	b := testClient(h, "p1", "bob")
	c := testClient(h, "p2", "carol")
	h.join(a)
	h.join(b)
	h.join(c)

	assert.Equal(t, 2, h.RoomSize("p1"))
	assert.Equal(t, 1, h.RoomSize("p2"))

	h.leave(a)
	assert.Equal(t, 1, h.RoomSize("p1"))

	// Leaving twice is harmless.
	h.leave(a)
	assert.Equal(t, 1, h.RoomSize("p1"))

	h.leave(b)
	assert.Equal(t, 0, h.RoomSize("p1"))
	assert.Equal(t, 1, h.RoomSize("p2"))
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	h := NewHub(nil)
	a := testClient(h, "p1", "alice")
	b := testClient(h, "p1", "bob")
	h.join(a)
	h.join(b)

	h.Broadcast(a, testMessage("p1", "alice", "hello"))

	select {
	case env := <-b.send:
		assert.Equal(t, datatypes.ProjectMessageEvent, env.Event)
		assert.Equal(t, "hello", env.Data.Message)
		assert.Equal(t, "alice", env.Data.Sender)
	default:
		t.Fatal("peer did not receive broadcast")
	}

	select {
	case <-a.send:
		t.Fatal("sender received its own broadcast")
	default:
	}
}

func TestHub_BroadcastNilSenderReachesEveryone(t *testing.T) {
	h := NewHub(nil)
	a := testClient(h, "p1", "alice")
	b := testClient(h, "p1", "bob")
	h.join(a)
	h.join(b)

	h.Broadcast(nil, testMessage("p1", datatypes.AISender, "done"))

	for _, c := range []*Client{a, b} {
		select {
		case env := <-c.send:
			assert.Equal(t, datatypes.AISender, env.Data.Sender)
		default:
			t.Fatalf("client %s missed server-originated event", c.principal)
		}
	}
}

func TestHub_BroadcastScopedToRoom(t *testing.T) {
	h := NewHub(nil)
	a := testClient(h, "p1", "alice")
	c := testClient(h, "p2", "carol")
	h.join(a)
	h.join(c)

	h.Broadcast(nil, testMessage("p1", "server", "scoped"))

	assert.Len(t, a.send, 1)
	assert.Len(t, c.send, 0)
}

func TestHub_OnInboundOnlyForClientTraffic(t *testing.T) {
	var seen []datatypes.ProjectMessage
	h := NewHub(func(msg datatypes.ProjectMessage) {
		seen = append(seen, msg)
	})
	a := testClient(h, "p1", "alice")
	h.join(a)

	// Client-originated traffic feeds the observer.
	h.Broadcast(a, testMessage("p1", "alice", "from client"))
	require.Len(t, seen, 1)
	assert.Equal(t, "from client", seen[0].Message)

	// Server-originated traffic does not loop back.
	h.Broadcast(nil, testMessage("p1", datatypes.AISender, "from server"))
	assert.Len(t, seen, 1)
}

func TestHub_StalledClientDropped(t *testing.T) {
	h := NewHub(nil)
	slow := testClient(h, "p1", "slow")
	fast := testClient(h, "p1", "fast")
	h.join(slow)
	h.join(fast)

	for i := 0; i < sendQueueSize; i++ {
		slow.send <- Envelope{Event: datatypes.ProjectMessageEvent}
	}

	h.Broadcast(nil, testMessage("p1", "server", "overflow"))

	// The healthy peer still got the event.
	assert.Len(t, fast.send, 1)

	// The stalled peer left the room and its queue was closed, ending its
	// write pump.
	assert.Equal(t, 1, h.RoomSize("p1"))
	for i := 0; i < sendQueueSize; i++ {
		<-slow.send
	}
	_, open := <-slow.send
	assert.False(t, open)
}

// TestHub_BroadcastAfterStalledDrop verifies the room stays usable once a
// stalled member is dropped: the next broadcast must not touch the closed
// queue, and healthy peers keep receiving.
func TestHub_BroadcastAfterStalledDrop(t *testing.T) {
	h := NewHub(nil)
	slow := testClient(h, "p1", "slow")
	fast := testClient(h, "p1", "fast")
	h.join(slow)
	h.join(fast)

	for i := 0; i < sendQueueSize; i++ {
		slow.send <- Envelope{Event: datatypes.ProjectMessageEvent}
	}

	h.Broadcast(nil, testMessage("p1", "server", "first"))
	h.Broadcast(nil, testMessage("p1", "server", "second"))

	assert.Len(t, fast.send, 2)
	assert.Equal(t, 1, h.RoomSize("p1"))

	// Even a direct send attempt against the dropped client is a clean
	// refusal, never a panic.
	assert.False(t, slow.trySend(Envelope{Event: datatypes.ProjectMessageEvent}))
}

func TestHub_CloseRoom(t *testing.T) {
	h := NewHub(nil)
	a := testClient(h, "p1", "alice")
	b := testClient(h, "p1", "bob")
	h.join(a)
	h.join(b)

	h.CloseRoom("p1")

	assert.Equal(t, 0, h.RoomSize("p1"))
	for _, c := range []*Client{a, b} {
		_, open := <-c.send
		assert.False(t, open, "send queue for %s should be closed", c.principal)
	}

	// Closing an unknown room is a no-op.
	h.CloseRoom("p9")
}

func TestClient_Accessors(t *testing.T) {
	c := testClient(NewHub(nil), "p1", "alice")
	assert.Equal(t, "p1", c.ProjectID())
	assert.Equal(t, "alice", c.Principal())
}

// TestServe_EndToEnd exercises the full pump path: two peers on a real
// websocket server, one publishes, the other receives, the sender does not
// hear its own event.
func TestServe_EndToEnd(t *testing.T) {
	h := NewHub(nil)
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		principal := r.URL.Query().Get("principal")
		go NewClient(h, ws, "p1", principal).Serve()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	dial := func(principal string) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/?principal="+principal, nil)
		require.NoError(t, err)
		return conn
	}

	alice := dial("alice")
	defer alice.Close()
	bob := dial("bob")
	defer bob.Close()

	// Wait for both joins to land.
	require.Eventually(t, func() bool {
		return h.RoomSize("p1") == 2
	}, 2*time.Second, 10*time.Millisecond)

	err := alice.WriteJSON(Envelope{
		Event: datatypes.ProjectMessageEvent,
		Data:  datatypes.ProjectMessage{Message: "ship it"},
	})
	require.NoError(t, err)

	var got Envelope
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, bob.ReadJSON(&got))
	assert.Equal(t, datatypes.ProjectMessageEvent, got.Event)
	assert.Equal(t, "ship it", got.Data.Message)
	// The server stamps identity and scope; client-supplied values are
	// overwritten.
	assert.Equal(t, "alice", got.Data.Sender)
	assert.Equal(t, "p1", got.Data.ProjectID)

	// The sender hears nothing back.
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var echo Envelope
	err = alice.ReadJSON(&echo)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timeout") || websocket.IsUnexpectedCloseError(err))
}
