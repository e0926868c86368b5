package character

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/maximbilan/chatr/internal/kv"
)

func newTestStore(t *testing.T) (*Store, kv.Store) {
	t.Helper()
	backend, err := kv.OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	s := NewStore(backend, nil)
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return s, backend
}

func strPtr(s string) *string { return &s }

func TestLoadSeedsDefault(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)

	chars, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(chars) != 1 {
		t.Fatalf("Load() returned %d characters, want 1", len(chars))
	}
	if chars[0].Name != defaultName || chars[0].SystemPrompt != defaultSetting {
		t.Errorf("seeded character = %+v", chars[0])
	}

	// The seed must already be persisted.
	if _, err := backend.Get(ctx, Key); err != nil {
		t.Fatalf("seed not persisted: %v", err)
	}

	// A second load reads it back instead of seeding again.
	again := NewStore(backend, nil)
	reloaded, err := again.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(chars, reloaded); diff != "" {
		t.Errorf("reload (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	a, err := s.Create(ctx, Draft{Name: "Ada", Subtitle: "engineer", SystemPrompt: "You are Ada."})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for _, m := range []Message{
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleAssistant, Content: "Hi there!"},
		{Role: RoleUser, Content: "Bye"},
	} {
		if err := s.AppendMessage(a.ID, m); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := NewStore(backend, nil).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(s.All(), reloaded); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c, err := s.Create(ctx, Draft{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.Name != NewCharacterName {
		t.Errorf("Create() name = %q, want %q", c.Name, NewCharacterName)
	}

	updated, err := s.Update(ctx, c.ID, Patch{Name: strPtr("Bob"), SystemPrompt: strPtr("You are Bob.")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Bob" || updated.SystemPrompt != "You are Bob." || updated.Subtitle != "" {
		t.Errorf("Update() = %+v", updated)
	}

	var nf *NotFoundError
	if _, err := s.Update(ctx, "nope", Patch{}); !errors.As(err, &nf) {
		t.Errorf("Update(nope) error = %v, want NotFoundError", err)
	}

	n, err := s.Delete(ctx, c.ID, "nope")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Delete() removed %d, want 1", n)
	}
	if _, ok := s.Get(c.ID); ok {
		t.Error("Get() found deleted character")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	chars, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	id := chars[0].ID

	if err := s.AppendMessage(id, Message{Role: RoleUser, Content: "one"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	snapshot, _ := s.Get(id)
	snapshot.History[0].Content = "mutated"
	snapshot.Name = "mutated"

	if err := s.AppendMessage(id, Message{Role: RoleAssistant, Content: "two"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	got, _ := s.Get(id)
	want := []Message{{Role: RoleUser, Content: "one"}, {Role: RoleAssistant, Content: "two"}}
	if diff := cmp.Diff(want, got.History); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}
	if got.Name == "mutated" {
		t.Error("Get() leaked internal state")
	}
}

func TestAppendMessageRejectsBadRole(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	id := s.All()[0].ID
	if err := s.AppendMessage(id, Message{Role: "tool", Content: "x"}); err == nil {
		t.Error("AppendMessage() with role tool should fail")
	}
}

func TestClearHistory(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)
	chars, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	id := chars[0].ID
	_ = s.AppendMessage(id, Message{Role: RoleUser, Content: "hi"})
	if err := s.ClearHistory(ctx, id); err != nil {
		t.Fatalf("ClearHistory() error = %v", err)
	}

	reloaded, err := NewStore(backend, nil).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(reloaded[0].History) != 0 {
		t.Errorf("history after clear = %v", reloaded[0].History)
	}
}

func TestReplaceRejectsDuplicateIDs(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Replace(context.Background(), []Character{{ID: "a"}, {ID: "a"}})
	if err == nil {
		t.Error("Replace() with duplicate ids should fail")
	}
}

func TestLoadRejectsInvalidIDs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "duplicate id", doc: `[{"id":"a","name":"A","history":[]},{"id":"a","name":"B","history":[]}]`},
		{name: "missing id", doc: `[{"id":"","name":"A","history":[]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, backend := newTestStore(t)
			if err := backend.Put(context.Background(), Key, []byte(tt.doc)); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if _, err := s.Load(context.Background()); err == nil {
				t.Fatal("Load() error = nil, want id error")
			}
			if got := s.All(); len(got) != 0 {
				t.Errorf("All() = %v, want nothing loaded", got)
			}
		})
	}
}

func TestExportImport(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			ctx := context.Background()
			src, _ := newTestStore(t)
			if _, err := src.Load(ctx); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			id := src.All()[0].ID
			_ = src.AppendMessage(id, Message{Role: RoleUser, Content: "Hello"})

			var buf bytes.Buffer
			if err := src.Export(&buf, format); err != nil {
				t.Fatalf("Export() error = %v", err)
			}

			dst, _ := newTestStore(t)
			if _, err := dst.Load(ctx); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			n, err := dst.Import(ctx, &buf, format)
			if err != nil {
				t.Fatalf("Import() error = %v", err)
			}
			if n != 1 {
				t.Fatalf("Import() = %d, want 1", n)
			}

			all := dst.All()
			if len(all) != 2 {
				t.Fatalf("collection size = %d, want 2", len(all))
			}
			// Both stores start their ids at id-1, so the import collides and is renumbered.
			if all[0].ID == all[1].ID {
				t.Error("imported character kept a colliding id")
			}
			if diff := cmp.Diff(src.All()[0].History, all[1].History); diff != "" {
				t.Errorf("imported history (-want +got):\n%s", diff)
			}
		})
	}
}
