package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/castfold/casting-server/internal/assets"
	"github.com/castfold/casting-server/internal/auth"
	"github.com/castfold/casting-server/internal/config"
	"github.com/castfold/casting-server/internal/core"
	"github.com/castfold/casting-server/internal/proto"
	"github.com/castfold/casting-server/internal/service/characters"
	"github.com/castfold/casting-server/internal/service/messages"
	"github.com/castfold/casting-server/internal/service/rooms"
	"github.com/castfold/casting-server/internal/store"
	"github.com/castfold/casting-server/internal/store/sqlite"
)

type testEnv struct {
	ts          *httptest.Server
	store       store.Store
	authService *auth.Service
	room        *store.Room
}

// newTestEnv spins up the full server over an in-memory store with one
// seeded room.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	room, err := st.CreateRoom(context.Background(), "ABCD12", "Test Room", "owner-1")
	if err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}

	logger := zerolog.Nop()

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	})
	directory := rooms.New(st)
	registry := characters.New(st, assets.StaticResolver{URL: "https://img.example/a.png"}, &logger)
	ledger := messages.New(st)

	hub := core.NewHub(directory, registry, ledger, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}

	server := NewServer(hub, authService, directory, cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, authService: authService, room: room}
}

// outboundEnvelope mirrors proto.Outbound with raw data for tests.
type outboundEnvelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readUntilEvent reads frames until one carries the wanted event name.
func readUntilEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	for {
		var out outboundEnvelope
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read while waiting for %q: %v", event, err)
		}
		if out.Type == proto.OutboundTypeError {
			t.Fatalf("unexpected error while waiting for %q: %+v", event, out.Error)
		}
		if out.Event == event {
			return out.Data
		}
	}
}

// readError reads frames until an error envelope arrives.
func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) *proto.Error {
	t.Helper()

	for {
		var out outboundEnvelope
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read while waiting for error: %v", err)
		}
		if out.Type == proto.OutboundTypeError {
			return out.Error
		}
	}
}

func sendIntent(t *testing.T, ctx context.Context, conn *websocket.Conn, intentType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", intentType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: intentType, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", intentType, err)
	}
}
