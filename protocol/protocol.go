// Package protocol defines the wire envelope shared by every participant:
// a JSON object {type, payload?} over a bidirectional text transport.
//
// Inbound messages form a closed union — DecodeClient returns exactly one of
// the typed structs below or ErrMalformed; an unrecognized type is malformed,
// not extensible. Outbound messages are built by the Encode* constructors,
// which serialize once so a broadcast marshals a single time regardless of
// fan-out width.
package protocol

import (
	"encoding/json"

	"github.com/hazyhaar/croquis/scene"
)

// Envelope is the outer wire frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound message types.
const (
	TypeJoin           = "join"
	TypeLeave          = "leave"
	TypeSceneUpdate    = "scene_update"
	TypeExportResponse = "export_response"
	TypePing           = "ping"
)

// Outbound message types.
const (
	TypeSceneSync     = "scene_sync"
	TypeReset         = "reset"
	TypeScrollTo      = "scroll_to"
	TypeSetActiveTool = "set_active_tool"
	TypeToggleSidebar = "toggle_sidebar"
	TypeSetToast      = "set_toast"
	TypeRefresh       = "refresh"
	TypeUndo          = "undo"
	TypeRedo          = "redo"
	TypeHistoryClear  = "history_clear"
	TypeExportRequest = "export_request"
	TypePong          = "pong"
)

// ClientMessage is the closed union of inbound message payloads.
type ClientMessage interface {
	isClientMessage()
}

// Join asks to enter the room for a scene.
type Join struct {
	SceneID string `json:"sceneId"`
}

// Leave asks to exit the room for a scene.
type Leave struct {
	SceneID string `json:"sceneId"`
}

// SceneUpdate carries a partial scene mutation already applied on the sender.
// A nil Elements slice means the field was absent from the payload.
type SceneUpdate struct {
	SceneID  string                      `json:"sceneId"`
	Elements []scene.Element             `json:"elements"`
	AppState map[string]any              `json:"appState"`
	Files    map[string]scene.BinaryFile `json:"files"`
}

// ExportResponse answers an earlier export_request by request id.
type ExportResponse struct {
	RequestID string `json:"requestId"`
	Data      string `json:"data"`
	MimeType  string `json:"mimeType"`
}

// Ping is a liveness probe; the server answers with pong.
type Ping struct{}

func (Join) isClientMessage()           {}
func (Leave) isClientMessage()          {}
func (SceneUpdate) isClientMessage()    {}
func (ExportResponse) isClientMessage() {}
func (Ping) isClientMessage()           {}

// DecodeClient parses a raw frame into a typed inbound message. Unparseable
// frames and unknown types return ErrMalformed; the caller logs and drops,
// the connection stays open.
func DecodeClient(raw []byte) (ClientMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ErrMalformed{Reason: "invalid envelope: " + err.Error()}
	}

	switch env.Type {
	case TypeJoin:
		var m Join
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeLeave:
		var m Leave
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeSceneUpdate:
		var m SceneUpdate
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeExportResponse:
		var m ExportResponse
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypePing:
		return Ping{}, nil
	default:
		return nil, &ErrMalformed{Reason: "unknown type: " + env.Type}
	}
}

func decodePayload(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return &ErrMalformed{Reason: "missing payload"}
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return &ErrMalformed{Reason: "invalid payload: " + err.Error()}
	}
	return nil
}

func encode(msgType string, payload any) []byte {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			// All payloads are plain structs and maps of JSON-safe values;
			// a marshal failure is a programming error.
			panic("protocol: marshal " + msgType + ": " + err.Error())
		}
		env.Payload = raw
	}
	out, err := json.Marshal(env)
	if err != nil {
		panic("protocol: marshal envelope: " + err.Error())
	}
	return out
}

// EncodeSceneSync serializes the room's current snapshot for fan-out.
func EncodeSceneSync(snap scene.Snapshot) []byte {
	return encode(TypeSceneSync, snap)
}

// EncodeReset tells clients to drop their local scene state.
func EncodeReset() []byte {
	return encode(TypeReset, nil)
}

// EncodeScrollTo pans client viewports to a target (element id or "content").
func EncodeScrollTo(target string) []byte {
	return encode(TypeScrollTo, map[string]any{"target": target})
}

// EncodeSetActiveTool switches the active drawing tool on clients.
func EncodeSetActiveTool(tool string, options map[string]any) []byte {
	payload := map[string]any{"tool": tool}
	if len(options) > 0 {
		payload["options"] = options
	}
	return encode(TypeSetActiveTool, payload)
}

// EncodeToggleSidebar opens or closes a named sidebar. Nil open toggles.
func EncodeToggleSidebar(name string, open *bool) []byte {
	payload := map[string]any{"name": name}
	if open != nil {
		payload["open"] = *open
	}
	return encode(TypeToggleSidebar, payload)
}

// EncodeSetToast shows a toast on clients.
func EncodeSetToast(message string, closable *bool, durationMs *int) []byte {
	payload := map[string]any{"message": message}
	if closable != nil {
		payload["closable"] = *closable
	}
	if durationMs != nil {
		payload["duration"] = *durationMs
	}
	return encode(TypeSetToast, payload)
}

// EncodeClearToast dismisses any visible toast (set_toast with null payload).
func EncodeClearToast() []byte {
	return []byte(`{"type":"` + TypeSetToast + `","payload":null}`)
}

// EncodeRefresh asks clients to re-render.
func EncodeRefresh() []byte {
	return encode(TypeRefresh, nil)
}

// EncodeUndo and friends mirror history operations to the room.
func EncodeUndo() []byte {
	return encode(TypeUndo, nil)
}

func EncodeRedo() []byte {
	return encode(TypeRedo, nil)
}

func EncodeHistoryClear() []byte {
	return encode(TypeHistoryClear, nil)
}

// EncodeExportRequest asks one room member to compute an export.
func EncodeExportRequest(format, requestID string) []byte {
	return encode(TypeExportRequest, map[string]any{
		"format":    format,
		"requestId": requestID,
	})
}

// EncodePong answers a ping.
func EncodePong() []byte {
	return encode(TypePong, nil)
}
