package proto

import "encoding/json"

// Inbound is the envelope for intents coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinRoom         = "join_room"
	InboundTypeSendMessage      = "send_message"
	InboundTypeCreateCharacter  = "create_character"
	InboundTypeClaimCharacter   = "claim_character"
	InboundTypeReleaseCharacter = "release_character"
	InboundTypeDeleteCharacter  = "delete_character"
	InboundTypeUpdateCharacter  = "update_character"
	InboundTypeDeleteMessage    = "delete_message"
	InboundTypeMarkRead         = "mark_read"
	InboundTypeTyping           = "typing"
	InboundTypeStopTyping       = "stop_typing"
	InboundTypeLeaveRoom        = "leave_room"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventRoomJoined     = "room_joined"
	EventChatHistory    = "chat_history"
	EventUpdateList     = "update_list"
	EventReceiveMessage = "receive_message"
	EventMessageDeleted = "message_deleted"
	EventMessagesRead   = "messages_read"
	EventDisplayTyping  = "display_typing"
	EventHideTyping     = "hide_typing"
)

// JoinRoomData requests to join a room by its shareable code.
type JoinRoomData struct {
	Code string `json:"code"`
}

// ReplyData references the message being replied to.
type ReplyData struct {
	Text       string `json:"text"`
	SenderName string `json:"senderName"`
}

// SendMessageData is a chat message from the client.
type SendMessageData struct {
	Text      string     `json:"text"`
	ReplyTo   *ReplyData `json:"replyTo,omitempty"`
	IsEpisode bool       `json:"isEpisode,omitempty"`
}

// CreateCharacterData adds a character to the room.
type CreateCharacterData struct {
	Name      string `json:"name"`
	AvatarRef string `json:"avatarRef,omitempty"`
}

// CharacterIDData carries a bare character id (claim/release/delete).
type CharacterIDData struct {
	CharacterID string `json:"characterId"`
}

// UpdateCharacterData is a partial character update.
type UpdateCharacterData struct {
	CharacterID string  `json:"charId"`
	Name        *string `json:"name,omitempty"`
	AvatarRef   *string `json:"avatarRef,omitempty"`
}

// MessageIDData carries a bare message id (delete/mark-read).
type MessageIDData struct {
	MessageID string `json:"messageId"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// RoomJoinedData confirms a join, point-to-point.
type RoomJoinedData struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
	Name   string `json:"name"`
}

// CharacterData is one character in an update_list payload.
type CharacterData struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
	OwnerID   *string `json:"ownerId"`
	Active    bool    `json:"active"`
}

// MessageData is one chat message on the wire.
type MessageData struct {
	ID              string     `json:"id"`
	SenderID        string     `json:"senderId"`
	SenderName      string     `json:"senderName"`
	CharacterName   *string    `json:"characterName"`
	CharacterAvatar *string    `json:"characterAvatar"`
	Text            string     `json:"text"`
	ReplyTo         *ReplyData `json:"replyTo,omitempty"`
	Deleted         bool       `json:"deleted"`
	IsEpisode       bool       `json:"isEpisode"`
	IsRead          bool       `json:"isRead"`
	TS              int64      `json:"ts"`
}

// ChatHistoryData delivers the recent-history snapshot, oldest first.
type ChatHistoryData struct {
	Messages []MessageData `json:"messages"`
}

// MessageDeletedData announces a tombstoned message.
type MessageDeletedData struct {
	MessageID string `json:"messageId"`
}

// MessagesReadData announces a read-state transition.
type MessagesReadData struct {
	MessageID string `json:"messageId"`
}

// TypingData identifies a typing user.
type TypingData struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
