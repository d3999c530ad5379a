package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/castfold/casting-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Identity is the resolved identity of a connection.
type Identity struct {
	UserID      string
	DisplayName string
	Guest       bool
}

// Service provides authentication operations and identity resolution.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with hashed password and returns a JWT token.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return "", ErrInvalidUsername
	}
	if len(password) < 6 {
		return "", ErrInvalidPassword
	}

	existing, err := s.store.GetUserByUsername(ctx, username)
	if err == nil && existing != nil {
		return "", ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, hashedPassword)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// Login validates credentials and returns a JWT token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// GuestToken issues a token for a synthesized guest identity. Guest
// identities are never persisted; each call produces a fresh one.
func (s *Service) GuestToken() (string, Identity, error) {
	identity := NewGuestIdentity()
	token, err := GenerateToken(s.jwtConfig, identity.UserID, identity.DisplayName)
	if err != nil {
		return "", Identity{}, fmt.Errorf("generate guest token: %w", err)
	}
	return token, identity, nil
}

// Resolve maps an optional bearer credential to an identity. A missing,
// malformed, or expired credential degrades to a fresh guest identity
// instead of rejecting the connection, so spectators can join without
// logging in.
func (s *Service) Resolve(tokenString string) Identity {
	if tokenString == "" {
		return NewGuestIdentity()
	}

	claims, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil || claims.UserID == "" {
		return NewGuestIdentity()
	}

	return Identity{
		UserID:      claims.UserID,
		DisplayName: claims.DisplayName,
		Guest:       strings.HasPrefix(claims.UserID, guestPrefix),
	}
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

const guestPrefix = "GUEST_"

// NewGuestIdentity synthesizes an anonymous identity.
func NewGuestIdentity() Identity {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand is effectively infallible; keep the identity usable anyway
		return Identity{UserID: guestPrefix + "00000000", DisplayName: "Guest", Guest: true}
	}
	return Identity{
		UserID:      guestPrefix + hex.EncodeToString(b),
		DisplayName: "Guest",
		Guest:       true,
	}
}
