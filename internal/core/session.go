package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/castfold/casting-server/internal/service/characters"
	"github.com/castfold/casting-server/internal/service/messages"
	"github.com/castfold/casting-server/internal/service/rooms"
	"github.com/castfold/casting-server/internal/store"
)

type task struct {
	client *Client
	cmd    *Command
	join   bool
	leave  bool
	stop   bool // set on the final member's departure
}

// session is the live state of one room. A single goroutine consumes its
// task queue, so mutations and snapshot assembly for a room are totally
// ordered while separate rooms proceed independently.
type session struct {
	hub   *Hub
	room  *store.Room
	tasks chan task
	log   zerolog.Logger

	// members counts bound connections; guarded by hub.mu.
	members int

	// Owned by the session goroutine.
	clients map[*Client]struct{}
	typing  map[string]string // userID -> display name
}

func newSession(h *Hub, room *store.Room) *session {
	return &session{
		hub:     h,
		room:    room,
		tasks:   make(chan task, 64),
		log:     h.log.With().Str("room_code", room.Code).Logger(),
		clients: make(map[*Client]struct{}),
		typing:  make(map[string]string),
	}
}

func (s *session) run(ctx context.Context) {
	s.log.Info().Msg("room session started")
	for {
		select {
		case t := <-s.tasks:
			switch {
			case t.join:
				s.handleJoin(ctx, t.client)
			case t.leave:
				s.handleLeave(t.client)
				if t.stop {
					s.log.Info().Msg("room session stopped")
					return
				}
			default:
				s.handleCommand(ctx, t.client, t.cmd)
			}
		case <-ctx.Done():
			return
		}
	}
}

// handleJoin adds the connection and delivers the initial snapshot to it
// alone: room metadata, the character list and recent history. Because
// the join runs on the session queue, the snapshot reflects every
// mutation completed before it, and every later mutation reaches the
// client as a broadcast, never both.
func (s *session) handleJoin(ctx context.Context, c *Client) {
	s.clients[c] = struct{}{}

	c.send(&Event{Kind: EventRoomJoined, Room: s.room})

	list, err := s.hub.registry.ListByRoom(ctx, s.room.ID)
	if err != nil {
		s.log.Error().Err(err).Str("conn_id", c.ID).Msg("character snapshot failed")
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeUpstream, "could not load characters")})
	} else {
		c.send(&Event{Kind: EventCharacterList, Characters: list})
	}

	history, err := s.hub.ledger.RecentHistory(ctx, s.room.ID, 0)
	if err != nil {
		s.log.Error().Err(err).Str("conn_id", c.ID).Msg("history snapshot failed")
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeUpstream, "could not load history")})
	} else {
		c.send(&Event{Kind: EventChatHistory, Messages: history})
	}

	s.log.Debug().Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("connection joined room")
}

// handleLeave removes the connection and clears its typing entry so no
// phantom indicator survives a disconnect.
func (s *session) handleLeave(c *Client) {
	delete(s.clients, c)

	if name, ok := s.typing[c.UserID]; ok {
		delete(s.typing, c.UserID)
		s.broadcastExcept(c, &Event{Kind: EventTypingStopped, UserID: c.UserID, DisplayName: name})
	}

	s.log.Debug().Str("conn_id", c.ID).Msg("connection left room")
}

// handleCommand runs one mutation: delegate to the owning component,
// then broadcast the resulting delta to every bound connection. Failures
// go back to the originator only and never tear down the session.
func (s *session) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandSendMessage:
		s.sendMessage(ctx, c, cmd)
	case CommandCreateCharacter:
		if _, err := s.hub.registry.Create(ctx, s.room.ID, cmd.CharacterName, cmd.AvatarRef); err != nil {
			s.fail(c, "create character", err)
			return
		}
		s.broadcastCharacterList(ctx)
	case CommandClaimCharacter:
		if err := s.hub.registry.Claim(ctx, s.room.ID, cmd.CharacterID, c.UserID); err != nil {
			s.fail(c, "claim character", err)
			return
		}
		s.broadcastCharacterList(ctx)
	case CommandReleaseCharacter:
		if err := s.hub.registry.Release(ctx, s.room.ID, cmd.CharacterID, c.UserID); err != nil {
			s.fail(c, "release character", err)
			return
		}
		s.broadcastCharacterList(ctx)
	case CommandDeleteCharacter:
		if err := s.hub.registry.Delete(ctx, s.room.ID, cmd.CharacterID); err != nil {
			s.fail(c, "delete character", err)
			return
		}
		s.broadcastCharacterList(ctx)
	case CommandUpdateCharacter:
		if err := s.hub.registry.Update(ctx, s.room.ID, cmd.CharacterID, cmd.NamePatch, cmd.AvatarPatch); err != nil {
			s.fail(c, "update character", err)
			return
		}
		s.broadcastCharacterList(ctx)
	case CommandDeleteMessage:
		msg, err := s.hub.ledger.SoftDelete(ctx, s.room.ID, cmd.MessageID, c.UserID)
		if err != nil {
			s.fail(c, "delete message", err)
			return
		}
		s.broadcast(&Event{Kind: EventMessageDeleted, MessageID: msg.ID})
	case CommandMarkRead:
		if err := s.hub.ledger.MarkRead(ctx, s.room.ID, cmd.MessageID); err != nil {
			s.fail(c, "mark read", err)
			return
		}
		s.broadcast(&Event{Kind: EventMessagesRead, MessageID: cmd.MessageID})
	case CommandTyping:
		if _, ok := s.typing[c.UserID]; !ok {
			s.typing[c.UserID] = c.Name
			s.broadcastExcept(c, &Event{Kind: EventTypingStarted, UserID: c.UserID, DisplayName: c.Name})
		}
	case CommandStopTyping:
		if name, ok := s.typing[c.UserID]; ok {
			delete(s.typing, c.UserID)
			s.broadcastExcept(c, &Event{Kind: EventTypingStopped, UserID: c.UserID, DisplayName: name})
		}
	default:
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "unknown command")})
	}
}

// sendMessage snapshots the sender's active character, appends to the
// ledger and broadcasts the stored message, originator included.
func (s *session) sendMessage(ctx context.Context, c *Client, cmd *Command) {
	var snapshot *messages.CharacterSnapshot
	active, err := s.hub.registry.ActiveFor(ctx, s.room.ID, c.UserID)
	if err != nil {
		s.log.Warn().Err(err).Str("conn_id", c.ID).Msg("active character lookup failed, sending without snapshot")
	} else if active != nil {
		snapshot = &messages.CharacterSnapshot{Name: active.Name, Avatar: active.AvatarURL}
	}

	msg, err := s.hub.ledger.Append(ctx, s.room.ID, c.UserID, c.Name, cmd.Text, cmd.Reply, cmd.Episode, snapshot)
	if err != nil {
		s.fail(c, "send message", err)
		return
	}

	s.broadcast(&Event{Kind: EventMessage, Message: msg})
}

func (s *session) broadcastCharacterList(ctx context.Context) {
	list, err := s.hub.registry.ListByRoom(ctx, s.room.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("character list refresh failed")
		return
	}
	s.broadcast(&Event{Kind: EventCharacterList, Characters: list})
}

func (s *session) broadcast(event *Event) {
	for client := range s.clients {
		client.send(event)
	}
}

func (s *session) broadcastExcept(exclude *Client, event *Event) {
	for client := range s.clients {
		if client == exclude {
			continue
		}
		client.send(event)
	}
}

// fail maps a domain error to a point-to-point error event.
func (s *session) fail(c *Client, op string, err error) {
	s.log.Debug().Err(err).Str("conn_id", c.ID).Msg(op + " failed")

	code := ErrCodeUpstream
	switch {
	case errors.Is(err, characters.ErrNotFound):
		code = ErrCodeCharacterNotFound
	case errors.Is(err, messages.ErrNotFound):
		code = ErrCodeMessageNotFound
	case errors.Is(err, rooms.ErrNotFound):
		code = ErrCodeRoomNotFound
	case errors.Is(err, characters.ErrForbidden), errors.Is(err, messages.ErrForbidden):
		code = ErrCodeForbidden
	case errors.Is(err, characters.ErrInvalidName), errors.Is(err, messages.ErrEmptyText):
		code = ErrCodeBadRequest
	}
	c.send(&Event{Kind: EventError, Error: coreError(code, op+" failed")})
}
