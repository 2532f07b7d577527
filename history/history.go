// Package history keeps bounded per-room undo/redo stacks on top of the
// scene store. Entries are immutable snapshots captured before a mutation is
// applied; the store itself never touches these stacks, callers decide which
// mutation paths are undoable.
//
// Stack discipline: any mutation that is not undo/redo must clear the redo
// stack after it commits (DropRedo), so redo never replays across a fork.
package history

import (
	"sync"
	"time"

	"github.com/hazyhaar/croquis/scene"
)

// DefaultMaxDepth bounds each stack when no explicit depth is configured.
const DefaultMaxDepth = 100

// Entry is one captured state: the element sequence and view state as they
// were immediately before a mutation. Files are not captured; binary assets
// are append-only and survive undo.
type Entry struct {
	Elements []scene.Element
	AppState map[string]any
	Recorded time.Time
}

// EntryOf captures a snapshot into an immutable history entry.
func EntryOf(snap scene.Snapshot) Entry {
	e := Entry{
		Elements: append(make([]scene.Element, 0, len(snap.Elements)), snap.Elements...),
		AppState: make(map[string]any, len(snap.AppState)),
		Recorded: time.Now(),
	}
	for k, v := range snap.AppState {
		e.AppState[k] = v
	}
	return e
}

type stacks struct {
	undo []Entry
	redo []Entry
}

// Manager holds the undo/redo stacks for every room. Safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	max   int
	rooms map[string]*stacks
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxDepth bounds both stacks per room. Values below one fall back to
// DefaultMaxDepth.
func WithMaxDepth(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.max = n
		}
	}
}

// NewManager creates a Manager with empty stacks.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		max:   DefaultMaxDepth,
		rooms: make(map[string]*stacks),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Record pushes the current state onto the undo stack, evicting the oldest
// entry when the stack exceeds its bound. Call before applying any mutation
// that should be undoable.
func (m *Manager) Record(roomID string, current Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.stacks(roomID)
	st.undo = append(st.undo, current)
	if len(st.undo) > m.max {
		st.undo = append(st.undo[:0], st.undo[len(st.undo)-m.max:]...)
	}
}

// DropRedo empties the redo stack. Every committed mutation other than
// undo/redo itself must call this.
func (m *Manager) DropRedo(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.rooms[roomID]; ok {
		st.redo = nil
	}
}

// Undo pops the most recent undo entry, pushing current onto the redo stack.
// Returns ErrNothingToUndo (and pushes nothing) when the stack is empty.
func (m *Manager) Undo(roomID string, current Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.stacks(roomID)
	if len(st.undo) == 0 {
		return Entry{}, &ErrNothingToUndo{Room: roomID}
	}
	top := st.undo[len(st.undo)-1]
	st.undo = st.undo[:len(st.undo)-1]

	st.redo = append(st.redo, current)
	if len(st.redo) > m.max {
		st.redo = append(st.redo[:0], st.redo[len(st.redo)-m.max:]...)
	}
	return top, nil
}

// Redo pops the most recent redo entry, pushing current onto the undo stack.
// Returns ErrNothingToRedo when the stack is empty.
func (m *Manager) Redo(roomID string, current Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.stacks(roomID)
	if len(st.redo) == 0 {
		return Entry{}, &ErrNothingToRedo{Room: roomID}
	}
	top := st.redo[len(st.redo)-1]
	st.redo = st.redo[:len(st.redo)-1]

	st.undo = append(st.undo, current)
	if len(st.undo) > m.max {
		st.undo = append(st.undo[:0], st.undo[len(st.undo)-m.max:]...)
	}
	return top, nil
}

// Clear empties both stacks for a room. The scene state itself is unaffected.
func (m *Manager) Clear(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
}

// Depths reports the current undo and redo stack lengths for a room.
func (m *Manager) Depths(roomID string) (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.rooms[roomID]
	if !ok {
		return 0, 0
	}
	return len(st.undo), len(st.redo)
}

// stacks returns the room's stacks, creating them on first touch.
// Caller must hold m.mu.
func (m *Manager) stacks(roomID string) *stacks {
	st, ok := m.rooms[roomID]
	if !ok {
		st = &stacks{}
		m.rooms[roomID] = st
	}
	return st
}
