// Package export correlates externally-delegated export jobs. The server
// cannot rasterize a scene itself, so an export request is broadcast into
// the room and exactly one peer answers with the rendered bytes. The
// Correlator matches that response back to the waiting caller by request id.
//
// Resolution is first-of-three: matching response, timeout, or shutdown.
// Whichever happens first removes the pending entry; the others become
// silent no-ops, so a future is never resolved twice.
package export

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/croquis/idgen"
	"github.com/hazyhaar/croquis/protocol"
)

// DefaultTimeout bounds how long a caller waits for a peer to answer.
const DefaultTimeout = 30 * time.Second

// Broadcaster is the slice of the hub the correlator needs.
type Broadcaster interface {
	MemberCount(roomID string) int
	BroadcastToRoom(roomID string, payload []byte, excludeID string)
}

// Result is a completed export.
type Result struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type outcome struct {
	result Result
	err    error
}

type pendingExport struct {
	roomID string
	ch     chan outcome
	timer  *time.Timer
}

// Correlator tracks outstanding export requests. Multiple concurrent exports
// per room are allowed; each is independent and there is no ordering
// guarantee between them.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingExport
	closed  bool

	hub     Broadcaster
	timeout time.Duration
	newID   idgen.Generator
	logger  *slog.Logger
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Correlator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithIDGenerator sets a custom request-id generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(c *Correlator) { c.newID = gen }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Correlator) { c.logger = l }
}

// New creates a Correlator broadcasting through the given hub.
func New(hub Broadcaster, opts ...Option) *Correlator {
	c := &Correlator{
		pending: make(map[string]*pendingExport),
		hub:     hub,
		timeout: DefaultTimeout,
		newID:   idgen.Prefixed("exp_", idgen.Default),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Request broadcasts an export_request into the room and blocks until a
// matching response arrives, the timeout fires, the context is done, or the
// correlator shuts down. Rooms with no members fail fast with ErrNoPeers and
// register nothing.
func (c *Correlator) Request(ctx context.Context, roomID, format string) (Result, error) {
	if c.hub.MemberCount(roomID) == 0 {
		return Result{}, &ErrNoPeers{Room: roomID}
	}

	requestID := c.newID()
	p := &pendingExport{
		roomID: roomID,
		ch:     make(chan outcome, 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{}, &ErrCancelled{RequestID: requestID}
	}
	c.pending[requestID] = p
	p.timer = time.AfterFunc(c.timeout, func() { c.expire(requestID) })
	c.mu.Unlock()

	c.logger.Debug("export requested",
		"room", roomID, "format", format, "request_id", requestID)
	c.hub.BroadcastToRoom(roomID, protocol.EncodeExportRequest(format, requestID), "")

	select {
	case out := <-p.ch:
		return out.result, out.err
	case <-ctx.Done():
		// Caller gave up: drop the entry so a late response is a no-op.
		c.remove(requestID)
		return Result{}, ctx.Err()
	}
}

// HandleResponse resolves the pending export with the given request id.
// Unknown ids — already resolved, expired, or never issued — are a silent
// no-op, so a late or duplicate response can never resolve a future twice.
func (c *Correlator) HandleResponse(requestID, data, mimeType string) {
	p := c.remove(requestID)
	if p == nil {
		return
	}
	c.logger.Debug("export resolved", "room", p.roomID, "request_id", requestID)
	p.ch <- outcome{result: Result{Data: data, MimeType: mimeType}}
}

// Pending reports the number of outstanding export requests.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// CancelAll rejects every outstanding export and refuses new requests.
// Called at shutdown.
func (c *Correlator) CancelAll() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingExport)
	c.closed = true
	c.mu.Unlock()

	for id, p := range pending {
		p.timer.Stop()
		p.ch <- outcome{err: &ErrCancelled{RequestID: id}}
	}
}

// expire rejects a pending export whose timeout fired.
func (c *Correlator) expire(requestID string) {
	p := c.remove(requestID)
	if p == nil {
		return
	}
	c.logger.Debug("export timed out", "room", p.roomID, "request_id", requestID)
	p.ch <- outcome{err: &ErrTimeout{RequestID: requestID, Room: p.roomID}}
}

// remove atomically takes a pending entry out of the map. Removal is the
// single resolution point: whoever gets the entry delivers the outcome,
// everyone else sees nil.
func (c *Correlator) remove(requestID string) *pendingExport {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[requestID]
	if !ok {
		return nil
	}
	delete(c.pending, requestID)
	p.timer.Stop()
	return p
}
