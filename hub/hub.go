// Package hub tracks which room each live connection belongs to and fans
// serialized messages out to room members. The hub holds references only:
// connection lifetime belongs to the transport, scene state to the scene
// store. Tearing down an empty room removes membership and routing, never
// cached scene state — that survives for reconnecting clients.
package hub

import (
	"log/slog"
	"sync"
)

// Conn is one live transport session. Implementations must tolerate Send
// being called concurrently with their own read/write loops; a returned
// error marks that single delivery as failed, nothing more.
type Conn interface {
	ID() string
	Send(payload []byte) error
}

// Hub is the connection registry and room broadcaster. A connection is a
// member of at most one room; joining a second room implicitly leaves the
// first. Safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn
	byConn map[string]string // conn id → room id
	logger *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets a custom logger for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// New creates an empty Hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		rooms:  make(map[string]map[string]Conn),
		byConn: make(map[string]string),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Join adds a connection to a room, creating the room on first join. If the
// connection is already a member of another room it leaves that room first;
// re-joining the same room is a harmless no-op. Join never fails.
func (h *Hub) Join(c Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(c.ID())

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]Conn)
		h.rooms[roomID] = members
	}
	members[c.ID()] = c
	h.byConn[c.ID()] = roomID
}

// Leave removes a connection from its current room, tearing the room down
// if it becomes empty. No-op for connections that are not in any room.
func (h *Hub) Leave(c Conn) {
	h.mu.Lock()
	h.removeLocked(c.ID())
	h.mu.Unlock()
}

// removeLocked detaches a connection from its room and deletes the room when
// its member set becomes empty. Caller must hold h.mu.
func (h *Hub) removeLocked(connID string) {
	roomID, ok := h.byConn[connID]
	if !ok {
		return
	}
	delete(h.byConn, connID)
	members := h.rooms[roomID]
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// RoomOf reports the room a connection currently belongs to.
func (h *Hub) RoomOf(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	roomID, ok := h.byConn[connID]
	return roomID, ok
}

// MemberCount reports how many connections are in a room. Zero for unknown
// rooms — an empty room never persists in the registry.
func (h *Hub) MemberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// TotalConnections reports connections across all rooms.
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byConn)
}

// Rooms returns the ids of all rooms with at least one member.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		out = append(out, id)
	}
	return out
}

// BroadcastToRoom delivers an already-serialized payload to every member of
// a room except excludeID (pass "" to deliver to everyone). Delivery iterates
// over a snapshot of the membership taken at call time, so join/leave side
// effects triggered by delivery cannot corrupt the iteration or cause a
// double delivery. Per-connection send failures are logged and skipped.
func (h *Hub) BroadcastToRoom(roomID string, payload []byte, excludeID string) {
	h.mu.RLock()
	members := h.rooms[roomID]
	targets := make([]Conn, 0, len(members))
	for id, c := range members {
		if id == excludeID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.deliver(targets, roomID, payload)
}

// BroadcastAll delivers a payload to every connection in every room. Used for
// library-wide notifications that are not scoped to one scene.
func (h *Hub) BroadcastAll(payload []byte) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.byConn))
	for _, members := range h.rooms {
		for _, c := range members {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	h.deliver(targets, "", payload)
}

func (h *Hub) deliver(targets []Conn, roomID string, payload []byte) {
	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			h.logger.Warn("broadcast delivery failed",
				"conn", c.ID(), "room", roomID, "error", err)
		}
	}
}
