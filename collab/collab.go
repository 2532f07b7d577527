// Package collab ties the collaboration core together: one connection hub,
// one scene store, one history manager and one export correlator, explicitly
// constructed and injected — no package-level state. The transport (ws) and
// the outer surfaces (httpapi, MCP tools) all drive the same Service, so a
// REST mutation and a websocket mutation observe identical semantics.
package collab

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/croquis/audit"
	"github.com/hazyhaar/croquis/export"
	"github.com/hazyhaar/croquis/history"
	"github.com/hazyhaar/croquis/hub"
	"github.com/hazyhaar/croquis/protocol"
	"github.com/hazyhaar/croquis/scene"
)

// Service is the collaborative session layer for all scenes in the process.
type Service struct {
	store    *scene.Store
	hist     *history.Manager
	hub      *hub.Hub
	exporter *export.Correlator
	audit    *audit.Logger // optional, nil-safe
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a custom logger, propagated to all owned components.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithAudit attaches an audit event logger.
func WithAudit(a *audit.Logger) Option {
	return func(s *Service) { s.audit = a }
}

// New creates a Service with its own store, history, hub and correlator.
func New(cfg Config, opts ...Option) *Service {
	cfg.defaults()

	s := &Service{logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.store = scene.NewStore(scene.WithLogger(s.logger))
	s.hist = history.NewManager(history.WithMaxDepth(cfg.HistoryMaxDepth))
	s.hub = hub.New(hub.WithLogger(s.logger))
	s.exporter = export.New(s.hub,
		export.WithTimeout(cfg.ExportTimeout),
		export.WithLogger(s.logger))
	return s
}

// Hub exposes the connection registry for transports and stats endpoints.
func (s *Service) Hub() *hub.Hub { return s.hub }

// Shutdown rejects all pending exports. Scene state is process-lifetime only
// and needs no teardown.
func (s *Service) Shutdown() {
	s.exporter.CancelAll()
}

// HandleMessage processes one inbound frame from a connection. Malformed or
// unrecognized frames are logged and dropped; the connection stays open.
func (s *Service) HandleMessage(ctx context.Context, conn hub.Conn, raw []byte) {
	msg, err := protocol.DecodeClient(raw)
	if err != nil {
		s.logger.Warn("dropping malformed message", "conn", conn.ID(), "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.Join:
		s.hub.Join(conn, m.SceneID)
		s.audit.Record(ctx, audit.Event{
			SceneID: m.SceneID, EventType: audit.EventRoomJoined, ConnID: conn.ID()})
		// The joiner receives the room's cached snapshot immediately.
		if err := conn.Send(protocol.EncodeSceneSync(s.store.Get(m.SceneID))); err != nil {
			s.logger.Warn("scene sync to joiner failed", "conn", conn.ID(), "error", err)
		}

	case protocol.Leave:
		s.leave(ctx, conn)

	case protocol.SceneUpdate:
		// A remote participant's edit arrives already applied on its side:
		// cache it without recording history, then echo to the rest of the
		// room. The sender is excluded to avoid a redundant echo loop.
		// The mutation still forks the timeline, so redo is cleared.
		s.store.Update(m.SceneID, scene.Partial{
			Elements: m.Elements,
			AppState: m.AppState,
			Files:    m.Files,
		})
		s.hist.DropRedo(m.SceneID)
		s.hub.BroadcastToRoom(m.SceneID,
			protocol.EncodeSceneSync(s.store.Get(m.SceneID)), conn.ID())

	case protocol.ExportResponse:
		s.exporter.HandleResponse(m.RequestID, m.Data, m.MimeType)

	case protocol.Ping:
		if err := conn.Send(protocol.EncodePong()); err != nil {
			s.logger.Warn("pong failed", "conn", conn.ID(), "error", err)
		}
	}
}

// Disconnect tears down membership for a closed connection. Pending exports
// that expected this peer to answer are left to age out via their timeout.
func (s *Service) Disconnect(conn hub.Conn) {
	s.leave(context.Background(), conn)
}

func (s *Service) leave(ctx context.Context, conn hub.Conn) {
	roomID, ok := s.hub.RoomOf(conn.ID())
	if !ok {
		return
	}
	s.hub.Leave(conn)
	s.audit.Record(ctx, audit.Event{
		SceneID: roomID, EventType: audit.EventRoomLeft, ConnID: conn.ID()})
}

// --- scene reads ---

// Scene returns the full cached snapshot for a scene.
func (s *Service) Scene(sceneID string) scene.Snapshot {
	return s.store.Get(sceneID)
}

// Elements returns the element sequence, optionally including soft-deleted
// elements.
func (s *Service) Elements(sceneID string, includeDeleted bool) []scene.Element {
	return s.store.Elements(sceneID, includeDeleted)
}

// AppState returns the cached view state.
func (s *Service) AppState(sceneID string) map[string]any {
	return s.store.AppState(sceneID)
}

// Files returns the cached binary-file index.
func (s *Service) Files(sceneID string) map[string]scene.BinaryFile {
	return s.store.Files(sceneID)
}

// --- scene mutations (undoable, room-synced) ---

// UpdateScene applies a partial scene update: elements replace wholesale,
// appState and files merge. Undoable.
func (s *Service) UpdateScene(sceneID string, partial scene.Partial) {
	pre := history.EntryOf(s.store.Get(sceneID))
	s.store.Update(sceneID, partial)
	s.commit(sceneID, pre)
}

// AddElement appends one element to the scene. Undoable.
func (s *Service) AddElement(sceneID string, el scene.Element) {
	s.AddElements(sceneID, []scene.Element{el})
}

// AddElements appends elements in order. Undoable.
func (s *Service) AddElements(sceneID string, els []scene.Element) {
	pre := history.EntryOf(s.store.Get(sceneID))
	s.store.AddElements(sceneID, els)
	s.commit(sceneID, pre)
}

// UpdateElement merges a patch into one element, bumping its version by one.
// Unknown ids fail with scene.ErrElementNotFound and change nothing.
func (s *Service) UpdateElement(sceneID, elementID string, patch scene.Patch) (scene.Element, error) {
	pre := history.EntryOf(s.store.Get(sceneID))
	updated, err := s.store.UpdateElement(sceneID, elementID, patch)
	if err != nil {
		return scene.Element{}, err
	}
	s.commit(sceneID, pre)
	return updated, nil
}

// DeleteElement soft-deletes one element. Undoable.
func (s *Service) DeleteElement(sceneID, elementID string) (scene.Element, error) {
	pre := history.EntryOf(s.store.Get(sceneID))
	deleted, err := s.store.DeleteElement(sceneID, elementID)
	if err != nil {
		return scene.Element{}, err
	}
	s.commit(sceneID, pre)
	return deleted, nil
}

// AddFiles merges binary assets into the scene's file index. Files are not
// captured by history entries (binary assets survive undo), but the mutation
// still forks the timeline, so the redo stack is cleared.
func (s *Service) AddFiles(sceneID string, files map[string]scene.BinaryFile) {
	s.store.AddFiles(sceneID, files)
	s.hist.DropRedo(sceneID)
	s.sync(sceneID)
}

// ResetScene replaces the snapshot with the empty default. Undoable; clients
// are told to drop their local state.
func (s *Service) ResetScene(ctx context.Context, sceneID string) {
	pre := history.EntryOf(s.store.Get(sceneID))
	s.store.Reset(sceneID)
	s.hist.Record(sceneID, pre)
	s.hist.DropRedo(sceneID)
	s.audit.Record(ctx, audit.Event{SceneID: sceneID, EventType: audit.EventSceneReset})
	s.hub.BroadcastToRoom(sceneID, protocol.EncodeReset(), "")
	s.sync(sceneID)
}

// commit records the pre-mutation entry, clears redo and syncs the room.
func (s *Service) commit(sceneID string, pre history.Entry) {
	s.hist.Record(sceneID, pre)
	s.hist.DropRedo(sceneID)
	s.sync(sceneID)
}

// sync broadcasts the current snapshot to every room member.
func (s *Service) sync(sceneID string) {
	s.hub.BroadcastToRoom(sceneID, protocol.EncodeSceneSync(s.store.Get(sceneID)), "")
}

// --- history ---

// Undo restores the most recent pre-mutation snapshot. Binary files are kept
// as-is; elements and view state roll back.
func (s *Service) Undo(sceneID string) error {
	cur := s.store.Get(sceneID)
	entry, err := s.hist.Undo(sceneID, history.EntryOf(cur))
	if err != nil {
		return err
	}
	s.restore(sceneID, entry, cur)
	s.hub.BroadcastToRoom(sceneID, protocol.EncodeUndo(), "")
	s.sync(sceneID)
	return nil
}

// Redo restores the most recently undone snapshot.
func (s *Service) Redo(sceneID string) error {
	cur := s.store.Get(sceneID)
	entry, err := s.hist.Redo(sceneID, history.EntryOf(cur))
	if err != nil {
		return err
	}
	s.restore(sceneID, entry, cur)
	s.hub.BroadcastToRoom(sceneID, protocol.EncodeRedo(), "")
	s.sync(sceneID)
	return nil
}

// ClearHistory empties both stacks; the scene itself is untouched.
func (s *Service) ClearHistory(sceneID string) {
	s.hist.Clear(sceneID)
	s.hub.BroadcastToRoom(sceneID, protocol.EncodeHistoryClear(), "")
}

// HistoryDepths reports undo/redo stack sizes for a scene.
func (s *Service) HistoryDepths(sceneID string) (undo, redo int) {
	return s.hist.Depths(sceneID)
}

func (s *Service) restore(sceneID string, entry history.Entry, cur scene.Snapshot) {
	s.store.Replace(sceneID, scene.Snapshot{
		Elements: entry.Elements,
		AppState: entry.AppState,
		Files:    cur.Files,
	})
}

// --- export ---

// RequestExport delegates a snapshot export to one of the room's peers and
// blocks until the result, the timeout, or shutdown.
func (s *Service) RequestExport(ctx context.Context, sceneID, format string) (export.Result, error) {
	s.audit.Record(ctx, audit.Event{
		SceneID: sceneID, EventType: audit.EventExportRequested,
		Detail: `{"format":"` + format + `"}`})

	res, err := s.exporter.Request(ctx, sceneID, format)
	if err != nil {
		s.audit.Record(ctx, audit.Event{
			SceneID: sceneID, EventType: audit.EventExportFailed})
		return export.Result{}, err
	}
	s.audit.Record(ctx, audit.Event{
		SceneID: sceneID, EventType: audit.EventExportCompleted,
		Detail: `{"mimeType":"` + res.MimeType + `"}`})
	return res, nil
}

// HandleExportResponse feeds an export response arriving over a side channel
// (e.g. REST) into the correlator. Unknown ids are silent no-ops.
func (s *Service) HandleExportResponse(requestID, data, mimeType string) {
	s.exporter.HandleResponse(requestID, data, mimeType)
}

// --- UI control fan-out (stateless, not undoable) ---

// ScrollTo pans every client in the room to a target.
func (s *Service) ScrollTo(sceneID, target string) {
	s.hub.BroadcastToRoom(sceneID, protocol.EncodeScrollTo(target), "")
}

// SetActiveTool switches the active drawing tool on every client.
func (s *Service) SetActiveTool(sceneID, tool string, options map[string]any) {
	s.hub.BroadcastToRoom(sceneID, protocol.EncodeSetActiveTool(tool, options), "")
}

// ToggleSidebar opens or closes a named sidebar on every client.
func (s *Service) ToggleSidebar(sceneID, name string, open *bool) {
	s.hub.BroadcastToRoom(sceneID, protocol.EncodeToggleSidebar(name, open), "")
}

// SetToast shows a toast on every client in the room.
func (s *Service) SetToast(sceneID, message string, closable *bool, durationMs *int) {
	s.hub.BroadcastToRoom(sceneID, protocol.EncodeSetToast(message, closable, durationMs), "")
}

// ClearToast dismisses any visible toast in the room.
func (s *Service) ClearToast(sceneID string) {
	s.hub.BroadcastToRoom(sceneID, protocol.EncodeClearToast(), "")
}

// Refresh asks every client in the room to re-render.
func (s *Service) Refresh(sceneID string) {
	s.hub.BroadcastToRoom(sceneID, protocol.EncodeRefresh(), "")
}

// Broadcast sends a library-wide notification to every connection.
func (s *Service) Broadcast(payload []byte) {
	s.hub.BroadcastAll(payload)
}

// RoomInfo describes one active room for stats endpoints.
type RoomInfo struct {
	SceneID string `json:"sceneId"`
	Members int    `json:"members"`
}

// Rooms lists all rooms with at least one member.
func (s *Service) Rooms() []RoomInfo {
	ids := s.hub.Rooms()
	out := make([]RoomInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, RoomInfo{SceneID: id, Members: s.hub.MemberCount(id)})
	}
	return out
}
