package facts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileStore_MissingAndCorruptFailOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	missing := NewFileStore(filepath.Join(dir, "missing.json"))
	if diff := cmp.Diff(NewMemory(), missing.Load(ctx)); diff != "" {
		t.Errorf("missing file (-want +got):\n%s", diff)
	}

	corruptPath := filepath.Join(dir, "corrupt.json")
	_ = os.WriteFile(corruptPath, []byte(`{"users": [`), 0o644)
	corrupt := NewFileStore(corruptPath)
	notes, err := corrupt.Notes(ctx, ServerScope())
	if err != nil || len(notes) != 0 {
		t.Errorf("Notes(corrupt) = %v, %v; want empty, nil", notes, err)
	}
}

func TestFileStore_EmptyDocumentShape(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "memory.json")
	s := NewFileStore(path)
	if err := s.Save(context.Background(), NewMemory()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, _ := os.ReadFile(path)
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{
		"users":  map[string]any{},
		"server": map[string]any{"notes": []any{}, "relationships": map[string]any{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("document shape (-want +got):\n%s", diff)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memory.json")
	input := `{
    "users": {
        "42": {"notes": [{"text": "likes tea", "embedding": [0.5, 0.25]}, {"text": "no vector", "embedding": null}]}
    },
    "server": {"notes": [{"text": "raid on friday", "embedding": [1, 0]}], "relationships": {"42": "friend"}, "current_persona": "tsun"}
}`
	_ = os.WriteFile(path, []byte(input), 0o644)

	s := NewFileStore(path)
	first := s.Load(ctx)
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := s.Load(ctx)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("round trip changed content (-first +second):\n%s", diff)
	}

	userNotes, _ := s.Notes(ctx, UserScope("42"))
	if len(userNotes) != 2 || userNotes[1].Embedding != nil {
		t.Errorf("user notes = %+v", userNotes)
	}
	persona, _ := s.CurrentPersona(ctx)
	if persona != "tsun" {
		t.Errorf("CurrentPersona() = %q, want tsun", persona)
	}
}

func TestFileStore_AddNoteAndPersona(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "memory.json"))

	if err := s.AddNote(ctx, UserScope("7"), Note{Text: "plays bass", Embedding: []float32{1}}); err != nil {
		t.Fatalf("AddNote user: %v", err)
	}
	if err := s.AddNote(ctx, ServerScope(), Note{Text: "server rules: be nice"}); err != nil {
		t.Fatalf("AddNote server: %v", err)
	}
	if err := s.AddNote(ctx, ServerScope(), Note{Text: "  "}); err == nil {
		t.Error("expected error for blank note")
	}
	if err := s.AddNote(ctx, UserScope(""), Note{Text: "x"}); err == nil {
		t.Error("expected error for empty user id")
	}

	got, _ := s.Notes(ctx, UserScope("7"))
	if len(got) != 1 || got[0].Text != "plays bass" {
		t.Errorf("user notes = %+v", got)
	}
	if got, _ := s.Notes(ctx, UserScope("unknown")); len(got) != 0 {
		t.Errorf("unknown user notes = %+v", got)
	}

	if err := s.SetCurrentPersona(ctx, "kuudere"); err != nil {
		t.Fatalf("SetCurrentPersona: %v", err)
	}
	if p, _ := s.CurrentPersona(ctx); p != "kuudere" {
		t.Errorf("CurrentPersona() = %q", p)
	}
	if err := s.SetCurrentPersona(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.CurrentPersona(ctx); p != "" {
		t.Errorf("CurrentPersona() after clear = %q", p)
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewFileStore(filepath.Join(t.TempDir(), "m.json"))
	if _, err := s.Notes(ctx, ServerScope()); err == nil {
		t.Error("expected context error")
	}
}

func TestFileStore_WritesPreserveCorruptFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.json")
	corrupt := []byte(`{"users": {"7": [`)
	if err := os.WriteFile(path, corrupt, 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)

	if err := s.AddNote(ctx, ServerScope(), Note{Text: "be nice"}); err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	backups, _ := filepath.Glob(path + ".corrupt-*")
	if len(backups) != 1 {
		t.Fatalf("backups = %v, want exactly one", backups)
	}
	saved, err := os.ReadFile(backups[0])
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(corrupt), string(saved)); diff != "" {
		t.Errorf("backup contents (-want +got):\n%s", diff)
	}
	got, _ := s.Notes(ctx, ServerScope())
	if len(got) != 1 || got[0].Text != "be nice" {
		t.Errorf("server notes = %+v", got)
	}

	// The rewritten file decodes, so further writes leave no new backups.
	if err := s.SetCurrentPersona(ctx, "kuudere"); err != nil {
		t.Fatalf("SetCurrentPersona: %v", err)
	}
	if backups, _ := filepath.Glob(path + ".corrupt-*"); len(backups) != 1 {
		t.Errorf("backups after clean write = %v", backups)
	}
}

func TestFileStore_UnreadableFileRefusesWrite(t *testing.T) {
	t.Parallel()

	// A directory at the memory path cannot be read as a file.
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)
	if err := s.AddNote(context.Background(), ServerScope(), Note{Text: "x"}); err == nil {
		t.Error("AddNote on unreadable path: expected error")
	}
	if err := s.SetCurrentPersona(context.Background(), "x"); err == nil {
		t.Error("SetCurrentPersona on unreadable path: expected error")
	}
}
