package history

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hazyhaar/croquis/scene"
)

func entry(ids ...string) Entry {
	els := make([]scene.Element, len(ids))
	for i, id := range ids {
		els[i] = scene.Element{ID: id, Version: 1}
	}
	return EntryOf(scene.Snapshot{Elements: els, AppState: scene.DefaultAppState()})
}

func firstID(e Entry) string {
	if len(e.Elements) == 0 {
		return ""
	}
	return e.Elements[0].ID
}

func TestUndoRedo_RoundTrip(t *testing.T) {
	m := NewManager()

	// Mutation: record pre-state "v1", current becomes "v2".
	m.Record("demo", entry("v1"))
	m.DropRedo("demo")

	restored, err := m.Undo("demo", entry("v2"))
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if firstID(restored) != "v1" {
		t.Fatalf("undo restored %q, want v1", firstID(restored))
	}

	replayed, err := m.Redo("demo", restored)
	if err != nil {
		t.Fatalf("redo: %v", err)
	}
	if firstID(replayed) != "v2" {
		t.Fatalf("redo restored %q, want v2", firstID(replayed))
	}

	// Back where we started: one undo entry, empty redo.
	undo, redo := m.Depths("demo")
	if undo != 1 || redo != 0 {
		t.Fatalf("depths = (%d, %d), want (1, 0)", undo, redo)
	}
}

func TestUndo_EmptyStackFails(t *testing.T) {
	m := NewManager()
	_, err := m.Undo("demo", entry("current"))
	var nothing *ErrNothingToUndo
	if !errors.As(err, &nothing) {
		t.Fatalf("expected ErrNothingToUndo, got %T: %v", err, err)
	}
	// The failed undo must not have touched the redo stack.
	if _, redo := m.Depths("demo"); redo != 0 {
		t.Fatalf("redo depth = %d after failed undo", redo)
	}
}

func TestRedo_EmptyStackFails(t *testing.T) {
	m := NewManager()
	_, err := m.Redo("demo", entry("current"))
	var nothing *ErrNothingToRedo
	if !errors.As(err, &nothing) {
		t.Fatalf("expected ErrNothingToRedo, got %T: %v", err, err)
	}
}

func TestMutationAfterUndo_ClearsRedo(t *testing.T) {
	m := NewManager()
	m.Record("demo", entry("v1"))
	if _, err := m.Undo("demo", entry("v2")); err != nil {
		t.Fatal(err)
	}
	if _, redo := m.Depths("demo"); redo != 1 {
		t.Fatalf("redo depth = %d, want 1", redo)
	}

	// A fresh (non-undo/redo) mutation commits.
	m.Record("demo", entry("v1b"))
	m.DropRedo("demo")

	if _, redo := m.Depths("demo"); redo != 0 {
		t.Fatal("redo stack survived a new mutation")
	}
}

func TestRecord_EvictsOldestBeyondMax(t *testing.T) {
	m := NewManager(WithMaxDepth(100))
	for i := 1; i <= 101; i++ {
		m.Record("demo", entry(fmt.Sprintf("e%d", i)))
	}

	undo, _ := m.Depths("demo")
	if undo != 100 {
		t.Fatalf("undo depth = %d, want 100", undo)
	}

	// Pop everything: the oldest surviving entry must be e2 (e1 evicted).
	var last Entry
	cur := entry("current")
	for i := 0; i < 100; i++ {
		e, err := m.Undo("demo", cur)
		if err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
		last = e
		cur = e
	}
	if firstID(last) != "e2" {
		t.Fatalf("oldest surviving entry = %q, want e2", firstID(last))
	}
	if _, err := m.Undo("demo", cur); err == nil {
		t.Fatal("expected empty stack after 100 pops")
	}
}

func TestClear_EmptiesBothStacks(t *testing.T) {
	m := NewManager()
	m.Record("demo", entry("v1"))
	m.Record("demo", entry("v2"))
	if _, err := m.Undo("demo", entry("v3")); err != nil {
		t.Fatal(err)
	}

	m.Clear("demo")
	undo, redo := m.Depths("demo")
	if undo != 0 || redo != 0 {
		t.Fatalf("depths = (%d, %d) after clear", undo, redo)
	}
}

func TestRooms_AreIndependent(t *testing.T) {
	m := NewManager()
	m.Record("a", entry("a1"))

	if _, err := m.Undo("b", entry("b-cur")); err == nil {
		t.Fatal("room b must not see room a's history")
	}
	if undo, _ := m.Depths("a"); undo != 1 {
		t.Fatalf("room a depth = %d", undo)
	}
}

func TestEntryOf_CopiesState(t *testing.T) {
	snap := scene.Snapshot{
		Elements: []scene.Element{{ID: "a", Version: 1}},
		AppState: map[string]any{"zoom": 1.0},
	}
	e := EntryOf(snap)
	snap.Elements[0].Version = 99
	snap.AppState["zoom"] = 9.0

	if e.Elements[0].Version != 1 {
		t.Fatal("entry aliases the source elements")
	}
	if e.AppState["zoom"] != 1.0 {
		t.Fatal("entry aliases the source appState")
	}
}
