package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/castfold/casting-server/internal/assets"
	"github.com/castfold/casting-server/internal/service/characters"
	"github.com/castfold/casting-server/internal/service/messages"
	"github.com/castfold/casting-server/internal/service/rooms"
	"github.com/castfold/casting-server/internal/store"
	"github.com/castfold/casting-server/internal/store/sqlite"
)

// newTestHub builds a hub over an in-memory store with one seeded room
// and starts its run loop.
func newTestHub(t *testing.T) (*Hub, *store.Room) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	room, err := st.CreateRoom(context.Background(), "ABCD12", "Test Room", "owner-1")
	if err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}

	logger := zerolog.Nop()
	directory := rooms.New(st)
	registry := characters.New(st, assets.StaticResolver{URL: "https://img.example/a.png"}, &logger)
	ledger := messages.New(st)

	hub := NewHub(directory, registry, ledger, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return hub, room
}

// joinedClient registers a client and joins it to the room, draining the
// initial snapshot events.
func joinedClient(t *testing.T, hub *Hub, code, id, userID, name string) *Client {
	t.Helper()

	c := NewClient(id, userID, name, false)
	hub.Register(c)
	hub.Dispatch(c, &Command{Kind: CommandJoinRoom, RoomCode: code})

	mustEvent(t, c.Events, EventRoomJoined)
	mustEvent(t, c.Events, EventCharacterList)
	mustEvent(t, c.Events, EventChatHistory)

	return c
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent asserts that no event of the given kind arrives within the
// window.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v received: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
