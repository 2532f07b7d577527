// Package httpapi is the REST surface over the collaboration service. Every
// mutation goes through the same Service methods the websocket and MCP layers
// use, so the three surfaces cannot diverge.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/croquis/collab"
	"github.com/hazyhaar/croquis/export"
	"github.com/hazyhaar/croquis/scene"
)

// Handler serves the REST API for scenes, history, exports and UI control.
type Handler struct {
	svc    *collab.Service
	logger *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets a custom logger for the handler.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates the REST handler bound to a collaboration service.
func NewHandler(svc *collab.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Routes mounts all endpoints on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/api/rooms", h.listRooms)

	r.Route("/api/scenes/{sceneID}", func(r chi.Router) {
		r.Get("/", h.getScene)
		r.Put("/", h.replaceScene)
		r.Post("/reset", h.resetScene)

		r.Get("/elements", h.listElements)
		r.Post("/elements", h.addElement)
		r.Post("/elements/batch", h.addElements)
		r.Patch("/elements/{elementID}", h.patchElement)
		r.Delete("/elements/{elementID}", h.deleteElement)

		r.Get("/appstate", h.getAppState)
		r.Get("/files", h.getFiles)
		r.Post("/files", h.addFiles)

		r.Post("/export", h.exportScene)
		r.Post("/export/{requestID}/response", h.exportResponse)

		r.Post("/undo", h.undo)
		r.Post("/redo", h.redo)
		r.Post("/history/clear", h.clearHistory)
		r.Get("/history", h.historyDepths)

		r.Post("/scroll-to", h.scrollTo)
		r.Post("/set-active-tool", h.setActiveTool)
		r.Post("/toggle-sidebar", h.toggleSidebar)
		r.Post("/set-toast", h.setToast)
		r.Delete("/set-toast", h.clearToast)
		r.Post("/refresh", h.refresh)
	})

	return r
}

func sceneID(r *http.Request) string { return chi.URLParam(r, "sceneID") }

// --- scene ---

func (h *Handler) getScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, h.svc.Scene(sceneID(r)))
}

func (h *Handler) replaceScene(w http.ResponseWriter, r *http.Request) {
	var req scene.Partial
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	h.svc.UpdateScene(sceneID(r), req)
	writeJSON(w, 200, h.svc.Scene(sceneID(r)))
}

func (h *Handler) resetScene(w http.ResponseWriter, r *http.Request) {
	h.svc.ResetScene(r.Context(), sceneID(r))
	writeJSON(w, 200, map[string]string{"status": "reset"})
}

// --- elements ---

func (h *Handler) listElements(w http.ResponseWriter, r *http.Request) {
	includeDeleted := r.URL.Query().Get("includeDeleted") == "true"
	writeJSON(w, 200, map[string]any{
		"elements": h.svc.Elements(sceneID(r), includeDeleted),
	})
}

func (h *Handler) addElement(w http.ResponseWriter, r *http.Request) {
	var el scene.Element
	if err := json.NewDecoder(r.Body).Decode(&el); err != nil {
		writeError(w, 400, err)
		return
	}
	if el.ID == "" {
		writeError(w, 400, errors.New("element id is required"))
		return
	}
	if el.Version == 0 {
		el.Version = 1
	}
	h.svc.AddElement(sceneID(r), el)
	writeJSON(w, 201, el)
}

func (h *Handler) addElements(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Elements []scene.Element `json:"elements"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	for i := range req.Elements {
		if req.Elements[i].ID == "" {
			writeError(w, 400, errors.New("every element needs an id"))
			return
		}
		if req.Elements[i].Version == 0 {
			req.Elements[i].Version = 1
		}
	}
	h.svc.AddElements(sceneID(r), req.Elements)
	writeJSON(w, 201, map[string]int{"added": len(req.Elements)})
}

func (h *Handler) patchElement(w http.ResponseWriter, r *http.Request) {
	var patch scene.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, 400, err)
		return
	}
	updated, err := h.svc.UpdateElement(sceneID(r), chi.URLParam(r, "elementID"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, 200, updated)
}

func (h *Handler) deleteElement(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.svc.DeleteElement(sceneID(r), chi.URLParam(r, "elementID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, 200, deleted)
}

// --- appstate and files ---

func (h *Handler) getAppState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, h.svc.AppState(sceneID(r)))
}

func (h *Handler) getFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, h.svc.Files(sceneID(r)))
}

func (h *Handler) addFiles(w http.ResponseWriter, r *http.Request) {
	var files map[string]scene.BinaryFile
	if err := json.NewDecoder(r.Body).Decode(&files); err != nil {
		writeError(w, 400, err)
		return
	}
	h.svc.AddFiles(sceneID(r), files)
	writeJSON(w, 200, map[string]int{"added": len(files)})
}

// --- export ---

func (h *Handler) exportScene(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Format string `json:"format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if req.Format == "" {
		req.Format = "png"
	}
	res, err := h.svc.RequestExport(r.Context(), sceneID(r), req.Format)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, 200, res)
}

// exportResponse lets a client answer an export over REST instead of the
// socket. Unknown request ids are accepted and ignored, matching the
// correlator's no-op semantics.
func (h *Handler) exportResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data     string `json:"data"`
		MimeType string `json:"mimeType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	h.svc.HandleExportResponse(chi.URLParam(r, "requestID"), req.Data, req.MimeType)
	writeJSON(w, 202, map[string]string{"status": "accepted"})
}

// --- history ---

func (h *Handler) undo(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Undo(sceneID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, 200, h.svc.Scene(sceneID(r)))
}

func (h *Handler) redo(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Redo(sceneID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, 200, h.svc.Scene(sceneID(r)))
}

func (h *Handler) clearHistory(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearHistory(sceneID(r))
	writeJSON(w, 200, map[string]string{"status": "cleared"})
}

func (h *Handler) historyDepths(w http.ResponseWriter, r *http.Request) {
	undo, redo := h.svc.HistoryDepths(sceneID(r))
	writeJSON(w, 200, map[string]int{"undo": undo, "redo": redo})
}

// --- UI control ---

func (h *Handler) scrollTo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if req.Target == "" {
		req.Target = "content"
	}
	h.svc.ScrollTo(sceneID(r), req.Target)
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handler) setActiveTool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tool    string         `json:"tool"`
		Options map[string]any `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if req.Tool == "" {
		writeError(w, 400, errors.New("tool is required"))
		return
	}
	h.svc.SetActiveTool(sceneID(r), req.Tool, req.Options)
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handler) toggleSidebar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Open *bool  `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	h.svc.ToggleSidebar(sceneID(r), req.Name, req.Open)
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handler) setToast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message  string `json:"message"`
		Closable *bool  `json:"closable"`
		Duration *int   `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	h.svc.SetToast(sceneID(r), req.Message, req.Closable, req.Duration)
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handler) clearToast(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearToast(sceneID(r))
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	h.svc.Refresh(sceneID(r))
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

// --- rooms ---

func (h *Handler) listRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, 200, map[string]any{"rooms": h.svc.Rooms()})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeDomainError maps service errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var notFound *scene.ErrElementNotFound
	var noPeers *export.ErrNoPeers
	var timeout *export.ErrTimeout
	var cancelled *export.ErrCancelled

	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err)
	case errors.As(err, &noPeers):
		writeError(w, http.StatusConflict, err)
	case errors.As(err, &timeout):
		writeError(w, http.StatusGatewayTimeout, err)
	case errors.As(err, &cancelled):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		// Undo/redo on empty stacks and other client-state errors.
		writeError(w, http.StatusConflict, err)
	}
}
