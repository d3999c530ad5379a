package characters

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/castfold/casting-server/internal/assets"
	"github.com/castfold/casting-server/internal/store"
	"github.com/castfold/casting-server/internal/store/sqlite"
)

func newTestService(t *testing.T, avatar assets.Resolver) (*Service, *store.Room) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	room, err := st.CreateRoom(context.Background(), "ABCD12", "Test Room", "owner-1")
	if err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}

	logger := zerolog.Nop()
	if avatar == nil {
		avatar = assets.StaticResolver{URL: "https://img.example/avatar.png"}
	}
	return New(st, avatar, &logger), room
}

func TestCreate_StartsUnownedInactive(t *testing.T) {
	svc, room := newTestService(t, nil)
	ctx := context.Background()

	ch, err := svc.Create(ctx, room.ID, "Thalia", "raw-image-data")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ch.OwnerID != nil || ch.Active {
		t.Fatalf("expected unowned inactive character, got %+v", ch)
	}
	if ch.AvatarURL == nil || *ch.AvatarURL != "https://img.example/avatar.png" {
		t.Fatalf("expected resolved avatar, got %v", ch.AvatarURL)
	}
}

func TestCreate_RejectsEmptyName(t *testing.T) {
	svc, room := newTestService(t, nil)

	if _, err := svc.Create(context.Background(), room.ID, "  ", ""); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestCreate_AvatarFailureFallsBackToPlaceholder(t *testing.T) {
	svc, room := newTestService(t, assets.StaticResolver{Err: assets.ErrUploadFailed})

	ch, err := svc.Create(context.Background(), room.ID, "Thalia", "raw-image-data")
	if err != nil {
		t.Fatalf("create should not fail on avatar upload failure: %v", err)
	}
	if ch.AvatarURL == nil || *ch.AvatarURL != assets.PlaceholderURL {
		t.Fatalf("expected placeholder avatar, got %v", ch.AvatarURL)
	}
}

func TestClaim_OneActivePerUserPerRoom(t *testing.T) {
	svc, room := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, room.ID, "Thalia", "")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := svc.Create(ctx, room.ID, "Bram", "")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	if err := svc.Claim(ctx, room.ID, first.ID, "u1"); err != nil {
		t.Fatalf("claim first: %v", err)
	}
	if err := svc.Claim(ctx, room.ID, second.ID, "u1"); err != nil {
		t.Fatalf("claim second: %v", err)
	}

	characters, err := svc.ListByRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	active := 0
	for _, ch := range characters {
		if ch.Active && ch.OwnerID != nil && *ch.OwnerID == "u1" {
			active++
			if ch.ID != second.ID {
				t.Fatalf("expected latest claim to be active, got %s", ch.Name)
			}
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active character for u1, got %d", active)
	}
}

func TestClaim_ForcesTransfer(t *testing.T) {
	svc, room := newTestService(t, nil)
	ctx := context.Background()

	ch, err := svc.Create(ctx, room.ID, "Thalia", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Claim(ctx, room.ID, ch.ID, "u1"); err != nil {
		t.Fatalf("claim by u1: %v", err)
	}
	if err := svc.Claim(ctx, room.ID, ch.ID, "u2"); err != nil {
		t.Fatalf("claim by u2: %v", err)
	}

	active, err := svc.ActiveFor(ctx, room.ID, "u2")
	if err != nil {
		t.Fatalf("active for u2: %v", err)
	}
	if active == nil || active.ID != ch.ID {
		t.Fatalf("expected u2 to hold the character, got %+v", active)
	}

	prior, err := svc.ActiveFor(ctx, room.ID, "u1")
	if err != nil {
		t.Fatalf("active for u1: %v", err)
	}
	if prior != nil {
		t.Fatalf("expected u1 to have no active character after transfer, got %+v", prior)
	}
}

func TestClaim_UnknownCharacter(t *testing.T) {
	svc, room := newTestService(t, nil)

	if err := svc.Claim(context.Background(), room.ID, "missing", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRelease_OwnerOnly(t *testing.T) {
	svc, room := newTestService(t, nil)
	ctx := context.Background()

	ch, err := svc.Create(ctx, room.ID, "Thalia", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Claim(ctx, room.ID, ch.ID, "u1"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := svc.Release(ctx, room.ID, ch.ID, "u2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}

	if err := svc.Release(ctx, room.ID, ch.ID, "u1"); err != nil {
		t.Fatalf("owner release: %v", err)
	}

	active, err := svc.ActiveFor(ctx, room.ID, "u1")
	if err != nil {
		t.Fatalf("active for u1: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active character after release, got %+v", active)
	}
}

func TestUpdate_PartialAndSnapshotIndependence(t *testing.T) {
	svc, room := newTestService(t, nil)
	ctx := context.Background()

	ch, err := svc.Create(ctx, room.ID, "Thalia", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newName := "Thalia the Bold"
	if err := svc.Update(ctx, room.ID, ch.ID, &newName, nil); err != nil {
		t.Fatalf("update name: %v", err)
	}

	characters, err := svc.ListByRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if characters[0].Name != "Thalia the Bold" {
		t.Fatalf("expected renamed character, got %s", characters[0].Name)
	}
}

func TestDelete_AnyMember(t *testing.T) {
	svc, room := newTestService(t, nil)
	ctx := context.Background()

	ch, err := svc.Create(ctx, room.ID, "Thalia", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Claim(ctx, room.ID, ch.ID, "u1"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Deletion has no ownership restriction.
	if err := svc.Delete(ctx, room.ID, ch.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	characters, err := svc.ListByRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(characters) != 0 {
		t.Fatalf("expected empty room, got %d characters", len(characters))
	}
}

func TestMutations_ScopedToRoom(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	roomA, err := st.CreateRoom(ctx, "AAAA11", "Room A", "owner-1")
	if err != nil {
		t.Fatalf("seed room A: %v", err)
	}
	roomB, err := st.CreateRoom(ctx, "BBBB22", "Room B", "owner-2")
	if err != nil {
		t.Fatalf("seed room B: %v", err)
	}

	logger := zerolog.Nop()
	svc := New(st, assets.StaticResolver{URL: "https://img.example/avatar.png"}, &logger)

	ch, err := svc.Create(ctx, roomB.ID, "Thalia", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Claim(ctx, roomB.ID, ch.ID, "u1"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Another room's id must behave exactly like a missing character.
	if err := svc.Delete(ctx, roomA.ID, ch.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting through room A, got %v", err)
	}
	if err := svc.Release(ctx, roomA.ID, ch.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound releasing through room A, got %v", err)
	}
	newName := "Renamed"
	if err := svc.Update(ctx, roomA.ID, ch.ID, &newName, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating through room A, got %v", err)
	}

	characters, err := svc.ListByRoom(ctx, roomB.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(characters) != 1 || characters[0].Name != "Thalia" || !characters[0].Active {
		t.Fatalf("character mutated through the wrong room: %+v", characters)
	}
}
