// Package audit records collaboration events (joins, leaves, exports,
// resets) in a local SQLite database. The scene itself is never persisted —
// state lives only for the process lifetime — the audit log is an
// observability trail, not a recovery mechanism.
//
// Usage:
//
//	db, err := audit.Open("db/audit.db")
//	logger := audit.NewLogger(db)
//	err = logger.Init()
//	logger.Record(ctx, audit.Event{SceneID: "demo", EventType: audit.EventRoomJoined})
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/croquis/idgen"
)

// Event types recorded by the collaboration layer.
const (
	EventRoomJoined      = "room_joined"
	EventRoomLeft        = "room_left"
	EventSceneReset      = "scene_reset"
	EventExportRequested = "export_requested"
	EventExportCompleted = "export_completed"
	EventExportFailed    = "export_failed"
)

// Event is one row in the collaboration event log.
type Event struct {
	EventID   string
	SceneID   string
	EventType string
	ConnID    string
	Detail    string // optional JSON
	CreatedAt int64  // unix seconds
}

// Open opens the audit SQLite database with production-safe pragmas,
// creating parent directories as needed. The caller must blank-import
// modernc.org/sqlite.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("audit: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: %s: %w", p, err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}
	return db, nil
}

// Logger writes collaboration events. Safe for concurrent use; writes are
// best-effort — a failing audit store never blocks collaboration.
type Logger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithIDGenerator sets a custom ID generator for event IDs.
func WithIDGenerator(gen idgen.Generator) LoggerOption {
	return func(l *Logger) { l.newID = gen }
}

// WithLogger sets the slog logger used to report write failures.
func WithLogger(sl *slog.Logger) LoggerOption {
	return func(l *Logger) { l.logger = sl }
}

// NewLogger creates an event logger backed by the given database.
func NewLogger(db *sql.DB, opts ...LoggerOption) *Logger {
	l := &Logger{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Init creates the schema. Idempotent.
func (l *Logger) Init() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS scene_events (
			event_id   TEXT PRIMARY KEY,
			scene_id   TEXT NOT NULL,
			event_type TEXT NOT NULL,
			conn_id    TEXT NOT NULL DEFAULT '',
			detail     TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scene_events_scene
			ON scene_events(scene_id, created_at);`)
	if err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// Record writes one event. Nil receivers are a no-op so callers can hold an
// optional *Logger without guarding every call site. Errors are logged via
// slog and swallowed.
func (l *Logger) Record(ctx context.Context, event Event) {
	if l == nil || l.db == nil {
		return
	}
	if event.EventID == "" {
		event.EventID = l.newID()
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO scene_events (event_id, scene_id, event_type, conn_id, detail, created_at)
		VALUES (?,?,?,?,?,?)`,
		event.EventID, event.SceneID, event.EventType, event.ConnID, event.Detail, event.CreatedAt)
	if err != nil {
		l.logger.Warn("audit event write failed",
			"error", err, "event_type", event.EventType, "scene", event.SceneID)
	}
}

// Recent returns the newest events, most recent first.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_id, scene_id, event_type, conn_id, detail, created_at
		FROM scene_events ORDER BY created_at DESC, event_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.EventID, &e.SceneID, &e.EventType, &e.ConnID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: rows: %w", err)
	}
	return out, nil
}

// Cleanup deletes events older than the retention window. Zero or negative
// days means no cleanup.
func (l *Logger) Cleanup(ctx context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := time.Now().Unix() - int64(days)*86400
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM scene_events WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("audit: cleanup: %w", err)
	}
	return nil
}
