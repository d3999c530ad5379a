package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateRoom(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.authService.Register(context.Background(), "gamemaster", "password123")
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}

	// Create room with valid token.
	reqBody := bytes.NewBufferString(`{"name":"The Long Night"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var roomResp RoomResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &roomResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if roomResp.Name != "The Long Night" {
		t.Errorf("expected room name 'The Long Night', got %q", roomResp.Name)
	}
	if len(roomResp.Code) != 6 {
		t.Errorf("expected 6-char room code, got %q", roomResp.Code)
	}
	if roomResp.OwnerID == "" {
		t.Errorf("expected owner id to be set")
	}

	// Create room without token.
	reqBody = bytes.NewBufferString(`{"name":"should-fail"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/rooms", reqBody)
	req.Header.Set("Content-Type", "application/json")

	resp = httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", resp.Code)
	}
}

func TestGetRoomByCode(t *testing.T) {
	env := newTestEnv(t)

	// Lookup is public and case-insensitive.
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/abcd12", nil)
	resp := httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var roomResp RoomResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &roomResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if roomResp.Code != "ABCD12" || roomResp.Name != "Test Room" {
		t.Errorf("unexpected room payload: %+v", roomResp)
	}

	// Unknown code.
	req = httptest.NewRequest(http.MethodGet, "/api/rooms/NOPE99", nil)
	resp = httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.Code)
	}
}

func TestRegisterAndLoginEndpoints(t *testing.T) {
	env := newTestEnv(t)

	register := bytes.NewBufferString(`{"username":"rpuser","password":"password123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/register", register)
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var authResp AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &authResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if authResp.Token == "" {
		t.Fatal("expected a token")
	}

	// Duplicate registration conflicts.
	register = bytes.NewBufferString(`{"username":"rpuser","password":"password123"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/register", register)
	req.Header.Set("Content-Type", "application/json")

	resp = httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", resp.Code)
	}

	// Login with the same credentials.
	login := bytes.NewBufferString(`{"username":"rpuser","password":"password123"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/login", login)
	req.Header.Set("Content-Type", "application/json")

	resp = httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	// Wrong password.
	login = bytes.NewBufferString(`{"username":"rpuser","password":"wrong"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/login", login)
	req.Header.Set("Content-Type", "application/json")

	resp = httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", resp.Code)
	}
}

func TestGuestEndpoint(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/guest", nil)
	resp := httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var authResp AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &authResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if authResp.Token == "" {
		t.Fatal("expected a token")
	}

	claims, err := env.authService.ValidateToken(authResp.Token)
	if err != nil {
		t.Fatalf("guest token should validate: %v", err)
	}
	if claims.DisplayName != "Guest" {
		t.Errorf("expected display name Guest, got %q", claims.DisplayName)
	}
}
