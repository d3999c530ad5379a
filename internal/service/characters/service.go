// Package characters is the character registry: creation, claiming,
// release, updates and deletion of the claimable identities in a room.
package characters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/castfold/casting-server/internal/assets"
	"github.com/castfold/casting-server/internal/store"
)

var (
	// ErrNotFound is returned when a character lookup misses.
	ErrNotFound = errors.New("character not found")
	// ErrForbidden is returned when a non-owner tries to release a character.
	ErrForbidden = errors.New("not the character owner")
	// ErrInvalidName is returned when the character name is empty.
	ErrInvalidName = errors.New("character name is required")
)

// Service provides character registry operations. It is a pure data
// component: it persists changes and leaves broadcasting to the caller.
type Service struct {
	store  store.CharacterStore
	avatar assets.Resolver
	log    *zerolog.Logger
}

// New creates a new character registry.
func New(st store.CharacterStore, avatar assets.Resolver, logger *zerolog.Logger) *Service {
	return &Service{store: st, avatar: avatar, log: logger}
}

// Create inserts an unowned, inactive character. Avatar resolution is
// best effort: an upload failure falls back to the placeholder instead
// of blocking creation.
func (s *Service) Create(ctx context.Context, roomID, name, avatarRef string) (*store.Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	ch := &store.Character{
		RoomID:    roomID,
		Name:      name,
		AvatarURL: s.resolveAvatar(ctx, avatarRef),
	}
	if err := s.store.CreateCharacter(ctx, ch); err != nil {
		return nil, fmt.Errorf("create character: %w", err)
	}
	return ch, nil
}

// Claim marks the character owned and active for the user. Any other
// character the user holds active in the room is deactivated in the same
// step. A character held by someone else is transferred: last claim wins.
func (s *Service) Claim(ctx context.Context, roomID, characterID, userID string) error {
	err := s.store.ClaimCharacter(ctx, roomID, characterID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("claim character: %w", err)
	}
	return nil
}

// Release clears ownership and the active flag. Only the current owner
// may release; anyone else gets ErrForbidden. A character that does not
// belong to the room is treated as missing.
func (s *Service) Release(ctx context.Context, roomID, characterID, userID string) error {
	ch, err := s.get(ctx, roomID, characterID)
	if err != nil {
		return err
	}
	if ch.OwnerID == nil || *ch.OwnerID != userID {
		return ErrForbidden
	}

	if err := s.store.ReleaseCharacter(ctx, characterID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("release character: %w", err)
	}
	return nil
}

// Update applies a partial update. Nil fields are left unchanged; a new
// avatar reference goes through the same best-effort resolution as Create.
func (s *Service) Update(ctx context.Context, roomID, characterID string, name, avatarRef *string) error {
	if _, err := s.get(ctx, roomID, characterID); err != nil {
		return err
	}

	patch := store.CharacterPatch{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return ErrInvalidName
		}
		patch.Name = &trimmed
	}
	if avatarRef != nil {
		patch.AvatarURL = s.resolveAvatar(ctx, *avatarRef)
		if patch.AvatarURL == nil {
			placeholder := assets.PlaceholderURL
			patch.AvatarURL = &placeholder
		}
	}

	err := s.store.UpdateCharacter(ctx, characterID, patch)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	return nil
}

// Delete removes the character. Any room member may delete: the cast
// is a shared table, not per-user property. The character must belong
// to the given room.
func (s *Service) Delete(ctx context.Context, roomID, characterID string) error {
	if _, err := s.get(ctx, roomID, characterID); err != nil {
		return err
	}

	err := s.store.DeleteCharacter(ctx, characterID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	return nil
}

// get loads a character and verifies it belongs to the room. A character
// in another room is indistinguishable from a missing one.
func (s *Service) get(ctx context.Context, roomID, characterID string) (*store.Character, error) {
	ch, err := s.store.GetCharacter(ctx, characterID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load character: %w", err)
	}
	if ch.RoomID != roomID {
		return nil, ErrNotFound
	}
	return ch, nil
}

// ListByRoom lists all characters in the room, oldest first.
func (s *Service) ListByRoom(ctx context.Context, roomID string) ([]*store.Character, error) {
	characters, err := s.store.ListCharacters(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	return characters, nil
}

// ActiveFor returns the user's currently active character in the room,
// or nil if none.
func (s *Service) ActiveFor(ctx context.Context, roomID, userID string) (*store.Character, error) {
	characters, err := s.store.ListCharacters(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	for _, ch := range characters {
		if ch.Active && ch.OwnerID != nil && *ch.OwnerID == userID {
			return ch, nil
		}
	}
	return nil, nil
}

func (s *Service) resolveAvatar(ctx context.Context, ref string) *string {
	if ref == "" {
		return nil
	}
	url, err := s.avatar.Resolve(ctx, ref)
	if err != nil {
		s.log.Warn().Err(err).Msg("avatar resolution failed, using placeholder")
		placeholder := assets.PlaceholderURL
		return &placeholder
	}
	if url == "" {
		return nil
	}
	return &url
}
