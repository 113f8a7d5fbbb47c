package brackets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestHub_BroadcastToRoom(t *testing.T) {
	hub, _ := newTestHub(t)
	room := RoomForCategory(3)
	inRoom := &Client{Hub: hub, Send: make(chan []byte, 1), Room: room}
	elsewhere := &Client{Hub: hub, Send: make(chan []byte, 1), Room: RoomForCategory(4)}
	hub.Register <- inRoom
	hub.Register <- elsewhere

	require.Eventually(t, func() bool { return hub.RoomSize(room) == 1 }, time.Second, 5*time.Millisecond)
	hub.BroadcastToRoom(room, WebSocketMessage{Type: "round_progressed", Payload: map[string]int{"round_id": 7}, RoomID: room})

	select {
	case raw := <-inRoom.Send:
		var msg WebSocketMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "round_progressed", msg.Type)
		assert.Equal(t, "category_3", msg.RoomID)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
	assert.Empty(t, elsewhere.Send)
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub, _ := newTestHub(t)
	c := &Client{Hub: hub, Send: make(chan []byte, 1), Room: "r"}
	hub.Register <- c
	require.Eventually(t, func() bool { return hub.RoomSize("r") == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastToRoom("r", "first")
	hub.BroadcastToRoom("r", "second")
	assert.Equal(t, `"first"`, string(<-c.Send))
}

func TestHub_UnregisterAndShutdown(t *testing.T) {
	hub, cancel := newTestHub(t)
	a := &Client{Hub: hub, Send: make(chan []byte, 1), Room: "r"}
	b := &Client{Hub: hub, Send: make(chan []byte, 1), Room: "r"}
	hub.Register <- a
	hub.Register <- b
	hub.Unregister <- a

	require.Eventually(t, func() bool { return hub.RoomSize("r") == 1 }, time.Second, 5*time.Millisecond)
	_, open := <-a.Send
	assert.False(t, open)

	cancel()
	require.Eventually(t, func() bool { return hub.RoomSize("r") == 0 }, time.Second, 5*time.Millisecond)
	_, open = <-b.Send
	assert.False(t, open)
}
