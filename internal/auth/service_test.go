package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/castfold/casting-server/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return NewService(st, jwtConfig)
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ab", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	// Should be validated after trimming whitespace.
	if _, err := svc.Register(ctx, " ab ", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestRegister_RejectsInvalidPassword(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "abc", "12345"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestRegister_TrimsUsernameAndCreatesUser(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, " alice ", "password123")
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	// Should collide because the stored username is trimmed.
	if _, err := svc.Register(ctx, "alice", "password123"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestResolve_ValidToken(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	identity := svc.Resolve(token)
	if identity.Guest {
		t.Fatalf("expected registered identity, got guest %+v", identity)
	}
	if identity.DisplayName != "alice" {
		t.Fatalf("expected display name alice, got %s", identity.DisplayName)
	}
}

func TestResolve_MissingTokenFallsBackToGuest(t *testing.T) {
	svc := newTestAuthService(t)

	identity := svc.Resolve("")
	if !identity.Guest {
		t.Fatalf("expected guest identity, got %+v", identity)
	}
	if !strings.HasPrefix(identity.UserID, "GUEST_") {
		t.Fatalf("expected GUEST_ prefix, got %s", identity.UserID)
	}
	if identity.DisplayName != "Guest" {
		t.Fatalf("expected display name Guest, got %s", identity.DisplayName)
	}
}

func TestResolve_MalformedTokenFallsBackToGuest(t *testing.T) {
	svc := newTestAuthService(t)

	identity := svc.Resolve("not-a-jwt")
	if !identity.Guest {
		t.Fatalf("expected guest identity for malformed token, got %+v", identity)
	}
}

func TestResolve_GuestIdentitiesAreFresh(t *testing.T) {
	svc := newTestAuthService(t)

	first := svc.Resolve("")
	second := svc.Resolve("")
	if first.UserID == second.UserID {
		t.Fatalf("expected distinct guest identities, both were %s", first.UserID)
	}
}

func TestGuestToken_ResolvesAsGuest(t *testing.T) {
	svc := newTestAuthService(t)

	token, identity, err := svc.GuestToken()
	if err != nil {
		t.Fatalf("guest token: %v", err)
	}

	resolved := svc.Resolve(token)
	if !resolved.Guest {
		t.Fatalf("expected guest token to resolve as guest, got %+v", resolved)
	}
	if resolved.UserID != identity.UserID {
		t.Fatalf("expected stable user id within session, got %s vs %s", resolved.UserID, identity.UserID)
	}
}
