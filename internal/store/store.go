package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("not found")

// User represents a registered account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Room represents a casting room. Rooms are immutable after creation.
type Room struct {
	ID        string
	Code      string // short shareable code, unique, stored upper-cased
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// Character is a claimable identity scoped to a room.
// An unowned character is never active; a user holds at most one
// active character per room.
type Character struct {
	ID        string
	RoomID    string
	Name      string
	AvatarURL *string
	OwnerID   *string
	Active    bool
	CreatedAt time.Time
}

// CharacterPatch carries a partial update. Nil fields are left unchanged.
type CharacterPatch struct {
	Name      *string
	AvatarURL *string
}

// Message is a persisted chat message. The character fields are a
// snapshot taken at send time and never follow later renames.
type Message struct {
	ID              string
	RoomID          string
	SenderID        string
	SenderName      string
	CharacterName   *string
	CharacterAvatar *string
	Text            string
	ReplyText       *string
	ReplySender     *string
	Deleted         bool
	Episode         bool
	Read            bool
	Seq             int64 // insertion order, breaks created_at ties
	CreatedAt       time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom persists a room with a pre-generated unique code.
	CreateRoom(ctx context.Context, code, name, ownerID string) (*Room, error)

	// GetRoomByCode retrieves a room by its shareable code, case-insensitively.
	GetRoomByCode(ctx context.Context, code string) (*Room, error)

	// CodeExists reports whether a room already uses the given code.
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CharacterStore handles character persistence.
type CharacterStore interface {
	// CreateCharacter inserts an unowned, inactive character.
	CreateCharacter(ctx context.Context, ch *Character) error

	// GetCharacter retrieves a character by ID.
	GetCharacter(ctx context.Context, id string) (*Character, error)

	// ListCharacters lists all characters in a room, oldest first.
	ListCharacters(ctx context.Context, roomID string) ([]*Character, error)

	// ClaimCharacter atomically deactivates any other character the user
	// has active in the room and marks the target owned and active.
	// Ownership transfers even if the target is held by another user.
	ClaimCharacter(ctx context.Context, roomID, characterID, userID string) error

	// ReleaseCharacter clears ownership and the active flag.
	ReleaseCharacter(ctx context.Context, characterID string) error

	// UpdateCharacter applies a partial update.
	UpdateCharacter(ctx context.Context, characterID string, patch CharacterPatch) error

	// DeleteCharacter removes the character.
	DeleteCharacter(ctx context.Context, characterID string) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its Seq.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// MarkMessageDeleted replaces the text with a tombstone and sets the
	// deleted flag. The original text is not recoverable.
	MarkMessageDeleted(ctx context.Context, id, tombstone string) error

	// MarkMessageRead sets the read flag. Already-read messages are left
	// unchanged.
	MarkMessageRead(ctx context.Context, id string) error

	// ListRecentMessages returns up to limit messages for a room, newest first.
	ListRecentMessages(ctx context.Context, roomID string, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	CharacterStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
