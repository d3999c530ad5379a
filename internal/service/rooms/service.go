// Package rooms is the room directory: it creates rooms with short
// shareable codes and resolves codes back to rooms.
package rooms

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/castfold/casting-server/internal/store"
)

// Room codes are upper-case base36.
const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// CodeLength is the length of generated room codes.
const CodeLength = 6

// maxCodeAttempts bounds the collision-retry loop.
const maxCodeAttempts = 10

var (
	// ErrNotFound is returned when no room matches a code.
	ErrNotFound = errors.New("room not found")
	// ErrInvalidName is returned when the room name is empty.
	ErrInvalidName = errors.New("room name is required")
)

// Service provides room directory operations.
type Service struct {
	store store.RoomStore
}

// New creates a new room directory service.
func New(st store.RoomStore) *Service {
	return &Service{store: st}
}

// Create generates a unique code and persists the room.
func (s *Service) Create(ctx context.Context, name, ownerID string) (*store.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	room, err := s.store.CreateRoom(ctx, code, name, ownerID)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

// FindByCode resolves a shareable code to a room. The match is
// whitespace-trimmed and case-insensitive.
func (s *Service) FindByCode(ctx context.Context, code string) (*store.Room, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}

	room, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find room by code: %w", err)
	}
	return room, nil
}

func (s *Service) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateCode(CodeLength)
		if err != nil {
			return "", err
		}
		exists, err := s.store.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique room code after %d attempts", maxCodeAttempts)
}

// GenerateCode generates a random room code of the given length.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = CodeLength
	}

	code := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
