package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard-backend/internal/protocol"
)

// The room broadcaster only starts once a client joins, so these tests can
// inspect the queued messages on the broadcast channel directly.

func TestGetOrCreateRoom_ReturnsSameRoom(t *testing.T) {
	hub := NewBoardHub(nil)

	a := hub.GetOrCreateRoom(1)
	b := hub.GetOrCreateRoom(1)
	other := hub.GetOrCreateRoom(2)

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
	assert.Equal(t, int64(1), a.BoardID)
}

func TestRemoveRoom_DropsRoom(t *testing.T) {
	hub := NewBoardHub(nil)

	a := hub.GetOrCreateRoom(7)
	hub.RemoveRoom(7)

	b := hub.GetOrCreateRoom(7)
	assert.NotSame(t, a, b, "a fresh room is created after removal")
}

func TestRelay_QueuesWithSenderExcluded(t *testing.T) {
	hub := NewBoardHub(nil)
	room := hub.GetOrCreateRoom(1)

	room.Relay("socket-a", []byte(`{"event":"upsert_whiteboard_elements"}`))

	select {
	case msg := <-room.broadcast:
		assert.Equal(t, "socket-a", msg.exclude)
		assert.JSONEq(t, `{"event":"upsert_whiteboard_elements"}`, string(msg.data))
	default:
		t.Fatal("expected a queued message")
	}
}

func TestRelay_DropsWhenBufferFull(t *testing.T) {
	hub := NewBoardHub(nil)
	room := hub.GetOrCreateRoom(1)

	for i := 0; i < cap(room.broadcast); i++ {
		room.Relay("s", []byte("x"))
	}
	room.Relay("s", []byte("overflow"))

	assert.Equal(t, cap(room.broadcast), len(room.broadcast))
}

func TestNotifyBoardUpdate_MissingRoomIsNoOp(t *testing.T) {
	hub := NewBoardHub(nil)

	assert.NotPanics(t, func() {
		hub.NotifyBoardUpdate(99, protocol.BoardUpdatePayload{WhiteboardID: 99})
	})
}

func TestNotifyBoardUpdate_FramesEnvelopeForEveryone(t *testing.T) {
	hub := NewBoardHub(nil)
	room := hub.GetOrCreateRoom(3)

	title := "renamed"
	hub.NotifyBoardUpdate(3, protocol.BoardUpdatePayload{WhiteboardID: 3, Title: &title})

	select {
	case msg := <-room.broadcast:
		assert.Empty(t, msg.exclude, "board updates reach every client")

		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(msg.data, &env))
		assert.Equal(t, protocol.EventUpdateBoard, env.Event)

		var payload protocol.BoardUpdatePayload
		require.NoError(t, json.Unmarshal(env.Payload, &payload))
		assert.Equal(t, int64(3), payload.WhiteboardID)
		require.NotNil(t, payload.Title)
		assert.Equal(t, "renamed", *payload.Title)
	default:
		t.Fatal("expected a queued board update")
	}
}

func TestCleanupInactiveRooms_RemovesOnlyStaleEmptyRooms(t *testing.T) {
	hub := NewBoardHub(nil)

	stale := hub.GetOrCreateRoom(1)
	stale.mu.Lock()
	stale.lastActive = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	fresh := hub.GetOrCreateRoom(2)

	hub.CleanupInactiveRooms(30 * time.Minute)

	assert.NotSame(t, stale, hub.GetOrCreateRoom(1), "stale empty room was removed")
	assert.Same(t, fresh, hub.GetOrCreateRoom(2), "active room survives")
}
