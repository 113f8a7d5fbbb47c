package events

import (
	"context"

	"github.com/Dosada05/league-engine/brackets"
)

// ForwardToHub pushes each event to the websocket room of its category.
func ForwardToHub(hub *brackets.Hub) Handler {
	return func(_ context.Context, evt Event) error {
		room := brackets.RoomForCategory(evt.CategoryID)
		hub.BroadcastToRoom(room, brackets.WebSocketMessage{
			Type:    string(evt.Type),
			Payload: evt,
			RoomID:  room,
		})
		return nil
	}
}

// Invalidator drops cached state of a category.
type Invalidator interface {
	Invalidate(categoryID int)
}

func InvalidateOn(target Invalidator) Handler {
	return func(_ context.Context, evt Event) error {
		target.Invalidate(evt.CategoryID)
		return nil
	}
}
