package core

import "github.com/castfold/casting-server/internal/store"

// EventKind is a notification the coordinator emits to clients.
type EventKind int

const (
	// EventRoomJoined confirms a join to the joining connection only.
	EventRoomJoined EventKind = iota
	// EventChatHistory delivers the recent-history snapshot to the
	// joining connection only.
	EventChatHistory
	// EventCharacterList carries the room's full character list. Sent
	// point-to-point at join and broadcast after every character mutation.
	EventCharacterList
	// EventMessage broadcasts one new message to all bound connections,
	// the sender included.
	EventMessage
	// EventMessageDeleted broadcasts that a message was tombstoned.
	EventMessageDeleted
	// EventMessagesRead broadcasts a read-state transition.
	EventMessagesRead
	// EventTypingStarted notifies other connections that a user is typing.
	EventTypingStarted
	// EventTypingStopped notifies other connections that a user stopped.
	EventTypingStopped
	// EventError reports a failed intent to the originator only.
	EventError
)

// Event is sent to clients to describe what happened in the room.
type Event struct {
	Kind EventKind

	Room       *store.Room        // EventRoomJoined
	Messages   []*store.Message   // EventChatHistory
	Characters []*store.Character // EventCharacterList
	Message    *store.Message     // EventMessage
	MessageID  string             // EventMessageDeleted, EventMessagesRead

	// Typing events
	UserID      string
	DisplayName string

	Error *CoreError // EventError
}
