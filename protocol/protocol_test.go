package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hazyhaar/croquis/scene"
)

func TestDecodeClient_Join(t *testing.T) {
	msg, err := DecodeClient([]byte(`{"type":"join","payload":{"sceneId":"demo"}}`))
	if err != nil {
		t.Fatal(err)
	}
	join, ok := msg.(Join)
	if !ok {
		t.Fatalf("got %T, want Join", msg)
	}
	if join.SceneID != "demo" {
		t.Fatalf("SceneID = %q", join.SceneID)
	}
}

func TestDecodeClient_SceneUpdateAbsentElements(t *testing.T) {
	msg, err := DecodeClient([]byte(`{"type":"scene_update","payload":{"sceneId":"demo","appState":{"zoom":2}}}`))
	if err != nil {
		t.Fatal(err)
	}
	up := msg.(SceneUpdate)
	if up.Elements != nil {
		t.Fatal("absent elements must decode to nil, not empty slice")
	}
	if up.AppState["zoom"] != 2.0 {
		t.Fatalf("appState = %v", up.AppState)
	}

	// Present-but-empty is distinct from absent.
	msg, err = DecodeClient([]byte(`{"type":"scene_update","payload":{"sceneId":"demo","elements":[]}}`))
	if err != nil {
		t.Fatal(err)
	}
	if up := msg.(SceneUpdate); up.Elements == nil {
		t.Fatal("empty elements array must decode to a non-nil slice")
	}
}

func TestDecodeClient_Ping(t *testing.T) {
	msg, err := DecodeClient([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := msg.(Ping); !ok {
		t.Fatalf("got %T, want Ping", msg)
	}
}

func TestDecodeClient_Malformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"type":"teleport","payload":{}}`,
		`{"type":"join"}`,
		`{"type":"scene_update","payload":"nope"}`,
	}
	for _, raw := range cases {
		_, err := DecodeClient([]byte(raw))
		var malformed *ErrMalformed
		if !errors.As(err, &malformed) {
			t.Fatalf("DecodeClient(%q): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestEncodeSceneSync_RoundTrip(t *testing.T) {
	snap := scene.Snapshot{
		Elements: []scene.Element{{ID: "a", Type: "rectangle", Version: 2}},
		AppState: map[string]any{"zoom": 1.5},
		Files:    map[string]scene.BinaryFile{},
	}
	raw := EncodeSceneSync(snap)

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != TypeSceneSync {
		t.Fatalf("type = %q", env.Type)
	}
	var decoded scene.Snapshot
	if err := json.Unmarshal(env.Payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Elements) != 1 || decoded.Elements[0].Version != 2 {
		t.Fatalf("payload = %+v", decoded)
	}
}

func TestEncodeExportRequest(t *testing.T) {
	raw := EncodeExportRequest("png", "exp_123")

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	var payload struct {
		Format    string `json:"format"`
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Format != "png" || payload.RequestID != "exp_123" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestEncodeClearToast_NullPayload(t *testing.T) {
	raw := EncodeClearToast()
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatal(err)
	}
	v, present := parsed["payload"]
	if !present || v != nil {
		t.Fatalf("payload = %v (present=%v), want explicit null", v, present)
	}
}

func TestEncodeControlMessages_Types(t *testing.T) {
	open := true
	closable := false
	duration := 5000
	cases := []struct {
		raw      []byte
		wantType string
	}{
		{EncodeReset(), TypeReset},
		{EncodeScrollTo("el-1"), TypeScrollTo},
		{EncodeSetActiveTool("rectangle", map[string]any{"locked": true}), TypeSetActiveTool},
		{EncodeToggleSidebar("library", &open), TypeToggleSidebar},
		{EncodeSetToast("saved", &closable, &duration), TypeSetToast},
		{EncodeRefresh(), TypeRefresh},
		{EncodeUndo(), TypeUndo},
		{EncodeRedo(), TypeRedo},
		{EncodeHistoryClear(), TypeHistoryClear},
		{EncodePong(), TypePong},
	}
	for _, tt := range cases {
		var env Envelope
		if err := json.Unmarshal(tt.raw, &env); err != nil {
			t.Fatalf("%s: %v", tt.wantType, err)
		}
		if env.Type != tt.wantType {
			t.Fatalf("type = %q, want %q", env.Type, tt.wantType)
		}
	}
}
