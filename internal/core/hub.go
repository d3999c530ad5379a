package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/castfold/casting-server/internal/service/characters"
	"github.com/castfold/casting-server/internal/service/messages"
	"github.com/castfold/casting-server/internal/service/rooms"
)

// Hub is the session coordinator. It binds connections to rooms, routes
// intents into the room's ordered task queue and owns the lifecycle of
// the per-room sessions.
type Hub struct {
	directory *rooms.Service
	registry  *characters.Service
	ledger    *messages.Service
	log       *zerolog.Logger

	mu       sync.Mutex
	ctx      context.Context
	ready    chan struct{}        // closed once Run has installed the context
	sessions map[string]*session  // keyed by room id
	bindings map[*Client]*session
}

// NewHub creates a hub wired to the room directory, character registry
// and message ledger.
func NewHub(directory *rooms.Service, registry *characters.Service, ledger *messages.Service, logger *zerolog.Logger) *Hub {
	return &Hub{
		directory: directory,
		registry:  registry,
		ledger:    ledger,
		log:       logger,
		ready:     make(chan struct{}),
		sessions:  make(map[string]*session),
		bindings:  make(map[*Client]*session),
	}
}

// Run installs the context every room session inherits and parks until
// it is cancelled. Joins block until Run has started, so no session can
// be born with a context that never observes shutdown. Run is called
// once per hub.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()
	close(h.ready)

	<-ctx.Done()
}

// Register announces a new connection. Binding happens on join.
func (h *Hub) Register(c *Client) {
	h.log.Debug().Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("connection registered")
}

// Unregister removes a disconnected client from its room, cleaning up
// its typing entry so no phantom indicator outlives the connection.
func (h *Hub) Unregister(c *Client) {
	h.detach(c)
	h.log.Debug().Str("conn_id", c.ID).Msg("connection unregistered")
}

// Dispatch routes one client intent. Join resolves the room code in the
// calling goroutine, so a slow directory lookup only blocks the joining
// connection; everything else is handed to the bound room's task queue.
func (h *Hub) Dispatch(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinRoom:
		h.join(c, cmd.RoomCode)
	case CommandLeaveRoom:
		h.detach(c)
	default:
		h.mu.Lock()
		s := h.bindings[c]
		h.mu.Unlock()
		if s == nil {
			c.send(&Event{Kind: EventError, Error: coreError(ErrCodeNotJoined, "join a room first")})
			return
		}
		s.tasks <- task{client: c, cmd: cmd}
	}
}

func (h *Hub) join(c *Client, code string) {
	<-h.ready

	room, err := h.directory.FindByCode(h.context(), code)
	if err != nil {
		h.log.Debug().Err(err).Str("room_code", code).Str("conn_id", c.ID).Msg("join failed")
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeRoomNotFound, "room not found")})
		return
	}

	// Rebinding leaves the previous room first.
	h.detach(c)

	h.mu.Lock()
	s := h.sessions[room.ID]
	if s == nil {
		s = newSession(h, room)
		h.sessions[room.ID] = s
		go s.run(h.ctx)
	}
	s.members++
	h.bindings[c] = s
	h.mu.Unlock()

	s.tasks <- task{client: c, join: true}
}

// detach unbinds the client from its current session, if any. The final
// member's departure retires the session.
func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	s := h.bindings[c]
	if s == nil {
		h.mu.Unlock()
		return
	}
	delete(h.bindings, c)
	s.members--
	last := s.members == 0
	if last {
		delete(h.sessions, s.room.ID)
	}
	h.mu.Unlock()

	s.tasks <- task{client: c, leave: true, stop: last}
}

func (h *Hub) context() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctx
}
