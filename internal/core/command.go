package core

import "github.com/castfold/casting-server/internal/service/messages"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom binds the connection to the room behind a code.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unbinds the connection from its current room.
	CommandLeaveRoom
	// CommandSendMessage appends a chat message to the room ledger.
	CommandSendMessage
	// CommandCreateCharacter adds an unowned character to the room.
	CommandCreateCharacter
	// CommandClaimCharacter claims a character for the connection's user.
	CommandClaimCharacter
	// CommandReleaseCharacter releases a character held by the user.
	CommandReleaseCharacter
	// CommandDeleteCharacter removes a character from the room.
	CommandDeleteCharacter
	// CommandUpdateCharacter applies a partial character update.
	CommandUpdateCharacter
	// CommandDeleteMessage soft-deletes one of the user's own messages.
	CommandDeleteMessage
	// CommandMarkRead marks a message as read.
	CommandMarkRead
	// CommandTyping adds the user to the room's typing set.
	CommandTyping
	// CommandStopTyping removes the user from the room's typing set.
	CommandStopTyping
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind

	// Join
	RoomCode string

	// Send message
	Text    string
	Reply   *messages.Reply
	Episode bool

	// Character operations
	CharacterID   string
	CharacterName string
	AvatarRef     string
	NamePatch     *string
	AvatarPatch   *string

	// Message operations
	MessageID string
}
