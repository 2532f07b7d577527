// Package scene holds the per-room cached drawing model: ordered elements,
// partial view state and a binary-file index. The Store is the single source
// of truth the server keeps for a scene; clients own any durable copy.
//
// Merge-on-write semantics: the wire protocol sends whole-array updates for
// elements, so Update replaces the element sequence wholesale, while appState
// and files are merged key-by-key into the existing maps.
package scene

import (
	"log/slog"
	"sync"
)

// BinaryFile describes one binary asset (image) referenced by elements.
type BinaryFile struct {
	ID       string `json:"id"`
	MimeType string `json:"mimeType"`
	DataURL  string `json:"dataURL"`
	Created  int64  `json:"created"`
}

// Snapshot is the full cached state of one scene at a point in time.
type Snapshot struct {
	Elements []Element             `json:"elements"`
	AppState map[string]any        `json:"appState"`
	Files    map[string]BinaryFile `json:"files"`
}

// Partial is a merge-on-write scene update. Nil members are absent: a nil
// Elements slice leaves the stored sequence untouched, a non-nil one replaces
// it wholesale. AppState and Files entries merge into the stored maps.
type Partial struct {
	Elements []Element             `json:"elements"`
	AppState map[string]any        `json:"appState"`
	Files    map[string]BinaryFile `json:"files"`
}

// DefaultAppState returns the view state a never-written scene starts with.
func DefaultAppState() map[string]any {
	return map[string]any{"viewBackgroundColor": "#ffffff"}
}

// EmptySnapshot returns the well-defined default scene: no elements, default
// view background, no files.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Elements: []Element{},
		AppState: DefaultAppState(),
		Files:    map[string]BinaryFile{},
	}
}

// Store caches one Snapshot per room. All methods are safe for concurrent use
// and every mutation runs to completion under the lock, so callers never see
// a half-applied update. Returned snapshots are copies: mutating them does
// not affect the stored state.
type Store struct {
	mu     sync.RWMutex
	rooms  map[string]Snapshot
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets a custom logger for the store.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		rooms:  make(map[string]Snapshot),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the current snapshot for a room, or the empty default if the
// room has never been written. Never-written rooms are not materialized.
func (s *Store) Get(roomID string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.rooms[roomID]
	if !ok {
		return EmptySnapshot()
	}
	// Copy while still holding the lock: writers mutate the stored maps and
	// element array in place.
	return copySnapshot(snap)
}

// Update applies a partial scene update: elements (if present) replace the
// stored sequence wholesale, appState and files merge key-by-key.
func (s *Store) Update(roomID string, partial Partial) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.current(roomID)
	if partial.Elements != nil {
		snap.Elements = append([]Element(nil), partial.Elements...)
	}
	for k, v := range partial.AppState {
		snap.AppState[k] = v
	}
	for k, v := range partial.Files {
		snap.Files[k] = v
	}
	s.rooms[roomID] = snap
}

// Replace swaps the whole snapshot for a room.
func (s *Store) Replace(roomID string, snap Snapshot) {
	s.mu.Lock()
	s.rooms[roomID] = copySnapshot(snap)
	s.mu.Unlock()
}

// AddElement appends one element to the stored sequence.
func (s *Store) AddElement(roomID string, el Element) {
	s.AddElements(roomID, []Element{el})
}

// AddElements appends elements to the stored sequence in order.
func (s *Store) AddElements(roomID string, els []Element) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.current(roomID)
	snap.Elements = append(snap.Elements, els...)
	s.rooms[roomID] = snap
}

// UpdateElement merges a patch into the element with the given id and bumps
// its version by exactly one. Returns the updated element, or
// ErrElementNotFound without touching the snapshot when the id is unknown.
func (s *Store) UpdateElement(roomID, elementID string, patch Patch) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.rooms[roomID]
	if !ok {
		return Element{}, &ErrElementNotFound{Room: roomID, ID: elementID}
	}
	for i := range snap.Elements {
		if snap.Elements[i].ID != elementID {
			continue
		}
		patch.apply(&snap.Elements[i])
		snap.Elements[i].Version++
		return snap.Elements[i], nil
	}
	return Element{}, &ErrElementNotFound{Room: roomID, ID: elementID}
}

// DeleteElement soft-deletes an element: IsDeleted flips to true and the
// version bumps like any other accepted update. The element stays in the
// snapshot.
func (s *Store) DeleteElement(roomID, elementID string) (Element, error) {
	deleted := true
	return s.UpdateElement(roomID, elementID, Patch{IsDeleted: &deleted})
}

// AddFiles merges binary-file descriptors into the room's file index.
func (s *Store) AddFiles(roomID string, files map[string]BinaryFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.current(roomID)
	for k, v := range files {
		snap.Files[k] = v
	}
	s.rooms[roomID] = snap
}

// Reset replaces the snapshot with the empty default. History capture is the
// caller's decision; Reset itself never touches undo/redo stacks.
func (s *Store) Reset(roomID string) {
	s.mu.Lock()
	s.rooms[roomID] = EmptySnapshot()
	s.mu.Unlock()
}

// Elements returns the element sequence for a room. With includeDeleted false,
// soft-deleted elements are filtered out.
func (s *Store) Elements(roomID string, includeDeleted bool) []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.rooms[roomID]
	if !ok {
		return []Element{}
	}
	out := make([]Element, 0, len(snap.Elements))
	for _, el := range snap.Elements {
		if !includeDeleted && el.IsDeleted {
			continue
		}
		out = append(out, el)
	}
	return out
}

// AppState returns a copy of the room's view state.
func (s *Store) AppState(roomID string) map[string]any {
	return s.Get(roomID).AppState
}

// Files returns a copy of the room's binary-file index.
func (s *Store) Files(roomID string) map[string]BinaryFile {
	return s.Get(roomID).Files
}

// current returns the stored snapshot for writing, materializing the default
// on first touch. Caller must hold s.mu.
func (s *Store) current(roomID string) Snapshot {
	snap, ok := s.rooms[roomID]
	if !ok {
		snap = EmptySnapshot()
	}
	return snap
}

func copySnapshot(snap Snapshot) Snapshot {
	out := Snapshot{
		Elements: append(make([]Element, 0, len(snap.Elements)), snap.Elements...),
		AppState: make(map[string]any, len(snap.AppState)),
		Files:    make(map[string]BinaryFile, len(snap.Files)),
	}
	for k, v := range snap.AppState {
		out.AppState[k] = v
	}
	for k, v := range snap.Files {
		out.Files[k] = v
	}
	return out
}
