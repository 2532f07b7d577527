package scene

import (
	"errors"
	"sync"
	"testing"
)

func el(id string, version int) Element {
	return Element{ID: id, Type: "rectangle", Version: version, X: 10, Y: 20, Width: 100, Height: 50}
}

func TestGet_UnknownRoomReturnsEmptyDefault(t *testing.T) {
	s := NewStore()
	snap := s.Get("never-written")
	if len(snap.Elements) != 0 {
		t.Fatalf("expected no elements, got %d", len(snap.Elements))
	}
	if snap.AppState["viewBackgroundColor"] != "#ffffff" {
		t.Fatalf("expected default background, got %v", snap.AppState["viewBackgroundColor"])
	}
	if len(snap.Files) != 0 {
		t.Fatalf("expected no files, got %d", len(snap.Files))
	}
}

func TestUpdate_ElementsReplaceWholesale(t *testing.T) {
	s := NewStore()
	s.Update("demo", Partial{Elements: []Element{el("a", 1), el("b", 1)}})
	s.Update("demo", Partial{Elements: []Element{el("c", 1)}})

	got := s.Get("demo").Elements
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("expected wholesale replacement with [c], got %v", got)
	}
}

func TestUpdate_AppStateAndFilesMerge(t *testing.T) {
	s := NewStore()
	s.Update("demo", Partial{AppState: map[string]any{"zoom": 1.5}})
	s.Update("demo", Partial{
		AppState: map[string]any{"scrollX": 40.0},
		Files:    map[string]BinaryFile{"f1": {ID: "f1", MimeType: "image/png"}},
	})

	snap := s.Get("demo")
	if snap.AppState["zoom"] != 1.5 || snap.AppState["scrollX"] != 40.0 {
		t.Fatalf("appState not merged: %v", snap.AppState)
	}
	if snap.AppState["viewBackgroundColor"] != "#ffffff" {
		t.Fatal("default background lost on merge")
	}
	if _, ok := snap.Files["f1"]; !ok {
		t.Fatal("file f1 not merged")
	}

	// Absent elements member must not clear the stored sequence.
	s.Update("demo", Partial{Elements: []Element{el("a", 1)}})
	s.Update("demo", Partial{AppState: map[string]any{"zoom": 2.0}})
	if got := s.Get("demo").Elements; len(got) != 1 {
		t.Fatalf("nil Elements cleared the sequence: %v", got)
	}
}

func TestUpdateElement_BumpsVersionByOne(t *testing.T) {
	s := NewStore()
	s.Update("demo", Partial{Elements: []Element{el("a", 1)}})

	x := 42.0
	updated, err := s.UpdateElement("demo", "a", Patch{X: &x})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("version = %d, want 2", updated.Version)
	}
	if updated.X != 42 {
		t.Fatalf("x = %v, want 42", updated.X)
	}

	// Untouched fields survive the merge.
	if updated.Width != 100 {
		t.Fatalf("width = %v, want 100", updated.Width)
	}

	updated, err = s.UpdateElement("demo", "a", Patch{})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Version != 3 {
		t.Fatalf("version = %d, want 3 (one bump per accepted update)", updated.Version)
	}
}

func TestUpdateElement_UnknownIDFailsWithoutChange(t *testing.T) {
	s := NewStore()
	s.Update("demo", Partial{Elements: []Element{el("a", 1)}})

	x := 1.0
	_, err := s.UpdateElement("demo", "ghost", Patch{X: &x})
	var nf *ErrElementNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrElementNotFound, got %T: %v", err, err)
	}
	if nf.ID != "ghost" || nf.Room != "demo" {
		t.Fatalf("error fields = %+v", nf)
	}

	got := s.Get("demo").Elements
	if len(got) != 1 || got[0].Version != 1 {
		t.Fatalf("snapshot changed on failed update: %v", got)
	}

	// Unknown room behaves the same.
	if _, err := s.UpdateElement("nowhere", "a", Patch{}); err == nil {
		t.Fatal("expected error for unknown room")
	}
}

func TestDeleteElement_SoftDelete(t *testing.T) {
	s := NewStore()
	s.Update("demo", Partial{Elements: []Element{el("a", 1), el("b", 1)}})

	deleted, err := s.DeleteElement("demo", "a")
	if err != nil {
		t.Fatal(err)
	}
	if !deleted.IsDeleted {
		t.Fatal("IsDeleted not set")
	}
	if deleted.Version != 2 {
		t.Fatalf("delete must bump version: got %d", deleted.Version)
	}

	all := s.Elements("demo", true)
	if len(all) != 2 {
		t.Fatalf("soft-deleted element physically removed: %v", all)
	}
	visible := s.Elements("demo", false)
	if len(visible) != 1 || visible[0].ID != "b" {
		t.Fatalf("deleted element still visible: %v", visible)
	}
}

func TestAddElements_AppendsInOrder(t *testing.T) {
	s := NewStore()
	s.AddElement("demo", el("a", 1))
	s.AddElements("demo", []Element{el("b", 1), el("c", 1)})

	got := s.Get("demo").Elements
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestReset_ReplacesWithEmptyDefault(t *testing.T) {
	s := NewStore()
	s.Update("demo", Partial{
		Elements: []Element{el("a", 1)},
		AppState: map[string]any{"zoom": 3.0},
		Files:    map[string]BinaryFile{"f1": {ID: "f1"}},
	})
	s.Reset("demo")

	snap := s.Get("demo")
	if len(snap.Elements) != 0 || len(snap.Files) != 0 {
		t.Fatalf("reset left state behind: %+v", snap)
	}
	if snap.AppState["viewBackgroundColor"] != "#ffffff" {
		t.Fatal("reset did not restore default view state")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Update("demo", Partial{Elements: []Element{el("a", 1)}})

	snap := s.Get("demo")
	snap.Elements[0].X = 999
	snap.AppState["zoom"] = 9.0
	snap.Files["rogue"] = BinaryFile{ID: "rogue"}

	fresh := s.Get("demo")
	if fresh.Elements[0].X == 999 {
		t.Fatal("stored elements aliased by Get")
	}
	if _, ok := fresh.AppState["zoom"]; ok {
		t.Fatal("stored appState aliased by Get")
	}
	if _, ok := fresh.Files["rogue"]; ok {
		t.Fatal("stored files aliased by Get")
	}
}

func TestAddFiles_Merges(t *testing.T) {
	s := NewStore()
	s.AddFiles("demo", map[string]BinaryFile{"f1": {ID: "f1", MimeType: "image/png"}})
	s.AddFiles("demo", map[string]BinaryFile{"f2": {ID: "f2", MimeType: "image/svg+xml"}})

	files := s.Files("demo")
	if len(files) != 2 {
		t.Fatalf("files = %v", files)
	}
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := NewStore()
	s.Update("demo", Partial{Elements: []Element{el("a", 1)}})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			x := float64(n)
			for i := 0; i < 200; i++ {
				s.Update("demo", Partial{
					Elements: []Element{el("a", 1)},
					AppState: map[string]any{"zoom": i},
				})
				s.UpdateElement("demo", "a", Patch{X: &x})
				s.AddFiles("demo", map[string]BinaryFile{"f": {ID: "f"}})
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := s.Get("demo")
				for k := range snap.AppState {
					_ = snap.AppState[k]
				}
				for _, e := range s.Elements("demo", true) {
					_ = e.ID
				}
			}
		}()
	}
	wg.Wait()

	if got := s.Elements("demo", true); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("elements = %+v, want [a]", got)
	}
}
