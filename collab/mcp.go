package collab

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/croquis/kit"
	"github.com/hazyhaar/croquis/scene"
)

// RegisterMCP registers the collaboration tools on an MCP server, giving
// automation clients the same surface the REST layer exposes.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerSceneTool(srv)
	s.registerReplaceSceneTool(srv)
	s.registerElementsTool(srv)
	s.registerAddElementTool(srv)
	s.registerUpdateElementTool(srv)
	s.registerDeleteElementTool(srv)
	s.registerResetTool(srv)
	s.registerUndoTool(srv)
	s.registerRedoTool(srv)
	s.registerExportTool(srv)
	s.registerRoomsTool(srv)
}

// registerTool wraps the endpoint in the service's tool middleware before
// handing it to the MCP server.
func (s *Service) registerTool(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	wrap := kit.Chain(s.toolLogging(tool.Name))
	kit.RegisterMCPTool(srv, tool, wrap(endpoint), decode)
}

// toolLogging records every tool invocation with its duration and outcome.
func (s *Service) toolLogging(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			if err != nil {
				s.logger.Warn("mcp tool failed", "tool", name,
					"duration", time.Since(start), "error", err)
				return nil, err
			}
			s.logger.Debug("mcp tool done", "tool", name, "duration", time.Since(start))
			return resp, nil
		}
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var sceneIDProp = map[string]any{"type": "string", "description": "Scene identifier (room key)"}

// --- croquis_scene ---

type sceneReq struct {
	SceneID string `json:"sceneId"`
}

func (s *Service) registerSceneTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "croquis_scene",
		Description: "Get the full cached scene snapshot: elements, view state and file index.",
		InputSchema: inputSchema(map[string]any{
			"sceneId": sceneIDProp,
		}, []string{"sceneId"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*sceneReq)
		return s.Scene(r.SceneID), nil
	}

	s.registerTool(srv, tool, endpoint, decodeInto[sceneReq])
}

// --- croquis_replace_scene ---

type replaceSceneReq struct {
	SceneID  string                      `json:"sceneId"`
	Elements []scene.Element             `json:"elements"`
	AppState map[string]any              `json:"appState"`
	Files    map[string]scene.BinaryFile `json:"files"`
}

func (s *Service) registerReplaceSceneTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "croquis_replace_scene",
		Description: "Apply a scene update: elements replace wholesale, appState and files merge. Undoable.",
		InputSchema: inputSchema(map[string]any{
			"sceneId":  sceneIDProp,
			"elements": map[string]any{"type": "array", "description": "Full element sequence; replaces the stored one"},
			"appState": map[string]any{"type": "object", "description": "View-state keys to merge"},
			"files":    map[string]any{"type": "object", "description": "Binary-file descriptors to merge, keyed by file id"},
		}, []string{"sceneId"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*replaceSceneReq)
		s.UpdateScene(r.SceneID, scene.Partial{
			Elements: r.Elements,
			AppState: r.AppState,
			Files:    r.Files,
		})
		return map[string]any{"status": "updated"}, nil
	}

	s.registerTool(srv, tool, endpoint, decodeInto[replaceSceneReq])
}

// --- croquis_elements ---

type elementsReq struct {
	SceneID        string `json:"sceneId"`
	IncludeDeleted bool   `json:"includeDeleted"`
}

func (s *Service) registerElementsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "croquis_elements",
		Description: "List the scene's elements, optionally including soft-deleted ones.",
		InputSchema: inputSchema(map[string]any{
			"sceneId":        sceneIDProp,
			"includeDeleted": map[string]any{"type": "boolean", "description": "Include soft-deleted elements"},
		}, []string{"sceneId"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*elementsReq)
		return map[string]any{"elements": s.Elements(r.SceneID, r.IncludeDeleted)}, nil
	}

	s.registerTool(srv, tool, endpoint, decodeInto[elementsReq])
}

// --- croquis_add_element ---

type addElementReq struct {
	SceneID string        `json:"sceneId"`
	Element scene.Element `json:"element"`
}

func (s *Service) registerAddElementTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "croquis_add_element",
		Description: "Append one element to the scene and sync the room.",
		InputSchema: inputSchema(map[string]any{
			"sceneId": sceneIDProp,
			"element": map[string]any{"type": "object", "description": "Element to append (id, type, geometry, style)"},
		}, []string{"sceneId", "element"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*addElementReq)
		if r.Element.Version == 0 {
			r.Element.Version = 1
		}
		s.AddElement(r.SceneID, r.Element)
		return map[string]any{"status": "added", "id": r.Element.ID}, nil
	}

	s.registerTool(srv, tool, endpoint, decodeInto[addElementReq])
}

// --- croquis_update_element ---

type updateElementReq struct {
	SceneID   string      `json:"sceneId"`
	ElementID string      `json:"elementId"`
	Patch     scene.Patch `json:"patch"`
}

func (s *Service) registerUpdateElementTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "croquis_update_element",
		Description: "Merge a partial update into one element; its version bumps by one.",
		InputSchema: inputSchema(map[string]any{
			"sceneId":   sceneIDProp,
			"elementId": map[string]any{"type": "string", "description": "Element id to update"},
			"patch":     map[string]any{"type": "object", "description": "Fields to merge (x, y, width, height, text, colors, ...)"},
		}, []string{"sceneId", "elementId", "patch"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*updateElementReq)
		updated, err := s.UpdateElement(r.SceneID, r.ElementID, r.Patch)
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	s.registerTool(srv, tool, endpoint, decodeInto[updateElementReq])
}

// --- croquis_delete_element ---

type deleteElementReq struct {
	SceneID   string `json:"sceneId"`
	ElementID string `json:"elementId"`
}

func (s *Service) registerDeleteElementTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "croquis_delete_element",
		Description: "Soft-delete one element (it stays in the snapshot with isDeleted set).",
		InputSchema: inputSchema(map[string]any{
			"sceneId":   sceneIDProp,
			"elementId": map[string]any{"type": "string", "description": "Element id to delete"},
		}, []string{"sceneId", "elementId"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*deleteElementReq)
		deleted, err := s.DeleteElement(r.SceneID, r.ElementID)
		if err != nil {
			return nil, err
		}
		return deleted, nil
	}

	s.registerTool(srv, tool, endpoint, decodeInto[deleteElementReq])
}

// --- croquis_reset ---

func (s *Service) registerResetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "croquis_reset",
		Description: "Replace the scene with the empty default. Undoable.",
		InputSchema: inputSchema(map[string]any{
			"sceneId": sceneIDProp,
		}, []string{"sceneId"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*sceneReq)
		s.ResetScene(ctx, r.SceneID)
		return map[string]any{"status": "reset"}, nil
	}

	s.registerTool(srv, tool, endpoint, decodeInto[sceneReq])
}

// --- croquis_undo / croquis_redo ---

func (s *Service) registerUndoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "croquis_undo",
		Description: "Undo the most recent undoable mutation in the scene.",
		InputSchema: inputSchema(map[string]any{
			"sceneId": sceneIDProp,
		}, []string{"sceneId"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*sceneReq)
		if err := s.Undo(r.SceneID); err != nil {
			return nil, err
		}
		return map[string]any{"status": "undone"}, nil
	}

	s.registerTool(srv, tool, endpoint, decodeInto[sceneReq])
}

func (s *Service) registerRedoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "croquis_redo",
		Description: "Redo the most recently undone mutation in the scene.",
		InputSchema: inputSchema(map[string]any{
			"sceneId": sceneIDProp,
		}, []string{"sceneId"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*sceneReq)
		if err := s.Redo(r.SceneID); err != nil {
			return nil, err
		}
		return map[string]any{"status": "redone"}, nil
	}

	s.registerTool(srv, tool, endpoint, decodeInto[sceneReq])
}

// --- croquis_export ---

type exportReq struct {
	SceneID string `json:"sceneId"`
	Format  string `json:"format"`
}

func (s *Service) registerExportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "croquis_export",
		Description: "Ask a connected client to export the scene (png, svg, json) and wait for the result.",
		InputSchema: inputSchema(map[string]any{
			"sceneId": sceneIDProp,
			"format":  map[string]any{"type": "string", "description": "Export format: png, svg or json"},
		}, []string{"sceneId", "format"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*exportReq)
		return s.RequestExport(ctx, r.SceneID, r.Format)
	}

	s.registerTool(srv, tool, endpoint, decodeInto[exportReq])
}

// --- croquis_rooms ---

func (s *Service) registerRoomsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "croquis_rooms",
		Description: "List active rooms and their member counts.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"rooms": s.Rooms()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	s.registerTool(srv, tool, endpoint, decode)
}

// decodeInto unmarshals MCP arguments into a typed request.
func decodeInto[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r T
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}
