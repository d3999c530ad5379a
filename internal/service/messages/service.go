// Package messages is the message ledger: append, soft-delete, read
// tracking and bounded recent history for a room.
package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/castfold/casting-server/internal/store"
)

// Tombstone replaces the text of a soft-deleted message.
const Tombstone = "[message deleted]"

// DefaultHistoryLimit bounds recent-history retrieval when the caller
// does not specify a limit.
const DefaultHistoryLimit = 50

var (
	// ErrNotFound is returned when a message lookup misses.
	ErrNotFound = errors.New("message not found")
	// ErrForbidden is returned when a non-sender tries to delete a message.
	ErrForbidden = errors.New("not the message sender")
	// ErrEmptyText is returned when the message text is empty after trimming.
	ErrEmptyText = errors.New("message text is required")
)

// Reply references the message being replied to, snapshotted at send time.
type Reply struct {
	Text       string
	SenderName string
}

// CharacterSnapshot captures the sender's active character at send time.
// The ledger stores the snapshot verbatim; it never re-resolves it.
type CharacterSnapshot struct {
	Name   string
	Avatar *string
}

// Service provides message ledger operations.
type Service struct {
	store store.MessageStore
}

// New creates a new message ledger.
func New(st store.MessageStore) *Service {
	return &Service{store: st}
}

// Append persists a new message. The character snapshot is supplied by
// the caller, which keeps the ledger decoupled from the character registry.
func (s *Service) Append(ctx context.Context, roomID, senderID, senderName, text string, reply *Reply, episode bool, snapshot *CharacterSnapshot) (*store.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	msg := &store.Message{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		Episode:    episode,
		CreatedAt:  time.Now().UTC(),
	}
	if reply != nil {
		msg.ReplyText = &reply.Text
		msg.ReplySender = &reply.SenderName
	}
	if snapshot != nil {
		msg.CharacterName = &snapshot.Name
		msg.CharacterAvatar = snapshot.Avatar
	}

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// SoftDelete tombstones a message. Only the original sender may delete;
// anyone else gets ErrForbidden and the message is untouched. A message
// belonging to another room is treated as missing.
func (s *Service) SoftDelete(ctx context.Context, roomID, messageID, requesterID string) (*store.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load message: %w", err)
	}
	if msg.RoomID != roomID {
		return nil, ErrNotFound
	}
	if msg.SenderID != requesterID {
		return nil, ErrForbidden
	}

	if err := s.store.MarkMessageDeleted(ctx, messageID, Tombstone); err != nil {
		return nil, fmt.Errorf("soft delete message: %w", err)
	}

	msg.Text = Tombstone
	msg.Deleted = true
	return msg, nil
}

// MarkRead transitions a message to read. The transition is monotonic
// and idempotent; a missing message is a soft no-op. A message belonging
// to another room is rejected with ErrNotFound.
func (s *Service) MarkRead(ctx context.Context, roomID, messageID string) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}
	if msg.RoomID != roomID {
		return ErrNotFound
	}

	if err := s.store.MarkMessageRead(ctx, messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// RecentHistory returns up to limit messages for the room, oldest first.
// The store fetches newest-first; the result is reversed for
// chronological presentation.
func (s *Service) RecentHistory(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	newest, err := s.store.ListRecentMessages(ctx, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}

	// Reverse into chronological order.
	history := make([]*store.Message, len(newest))
	for i, msg := range newest {
		history[len(newest)-1-i] = msg
	}
	return history, nil
}
