// Package ws is the websocket transport: it upgrades HTTP requests, assigns
// each socket a process-unique connection id and pumps frames between the
// socket and the collaboration service. All protocol interpretation lives in
// the service; this package only moves bytes.
package ws

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/croquis/collab"
	"github.com/hazyhaar/croquis/idgen"
)

// maxMessageSize bounds one inbound frame. Scene updates carry element
// arrays and data-URL file payloads, so the limit is generous.
const maxMessageSize = 8 << 20

// Handler upgrades HTTP requests to websocket sessions on the collaboration
// service.
type Handler struct {
	svc     *collab.Service
	newID   idgen.Generator
	logger  *slog.Logger
	upgrade websocket.Upgrader
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets a custom logger for the handler.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithIDGenerator overrides connection id generation.
func WithIDGenerator(g idgen.Generator) Option {
	return func(h *Handler) { h.newID = g }
}

// WithCheckOrigin overrides the browser origin check. The default accepts
// same-host and localhost origins only.
func WithCheckOrigin(f func(*http.Request) bool) Option {
	return func(h *Handler) { h.upgrade.CheckOrigin = f }
}

// NewHandler creates a websocket handler bound to a collaboration service.
func NewHandler(svc *collab.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:    svc,
		newID:  idgen.Prefixed("conn_", idgen.Default),
		logger: slog.Default(),
		upgrade: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     defaultCheckOrigin,
		},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func defaultCheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	host := hostOf(origin)
	return host == hostOf("//"+r.Host) || host == "localhost" || host == "127.0.0.1"
}

func hostOf(s string) string {
	// Strip scheme and port; enough for an origin comparison.
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '/' && s[i+1] == '/' {
			s = s[i+2:]
			break
		}
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}

// ServeHTTP upgrades the request and runs the read loop until the client
// disconnects. One goroutine per direction.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrade.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(h.newID(), sock)
	h.logger.Info("websocket connected", "conn", conn.ID(), "remote", r.RemoteAddr)

	go conn.writeLoop()
	h.readLoop(r, conn)
}

func (h *Handler) readLoop(r *http.Request, conn *Conn) {
	defer func() {
		conn.close()
		h.svc.Disconnect(conn)
		h.logger.Info("websocket disconnected", "conn", conn.ID())
	}()

	conn.sock.SetReadLimit(maxMessageSize)
	for {
		msgType, raw, err := conn.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", "conn", conn.ID(), "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.svc.HandleMessage(r.Context(), conn, raw)
	}
}
