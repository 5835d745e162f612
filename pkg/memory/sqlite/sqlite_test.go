package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/glyphchat/pkg/memory"
	"github.com/MrWong99/glyphchat/pkg/memory/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "nested", "messages.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := []memory.Message{
		{ID: "1", GuildID: "g", ChannelID: "c1", AuthorID: "alice", AuthorName: "Alice", Content: "I love baking sourdough bread", Embedding: []float32{1, 0, 0}, Timestamp: base},
		{ID: "2", GuildID: "g", ChannelID: "c1", AuthorID: "bob", AuthorName: "Bob", Content: "My cat knocked over the plant", Embedding: []float32{0, 1, 0}, Timestamp: base.Add(time.Minute)},
		{ID: "3", GuildID: "g", ChannelID: "c2", AuthorID: "alice", AuthorName: "Alice", Content: "Bread again for dinner", Embedding: []float32{0.9, 0.1, 0}, Timestamp: base.Add(2 * time.Minute)},
		{ID: "4", GuildID: "g", ChannelID: "c2", AuthorID: "carol", AuthorName: "Carol", Content: "no vector, 100% bread", Timestamp: base.Add(3 * time.Minute)},
		{ID: "5", GuildID: "h", ChannelID: "c9", AuthorID: "dave", AuthorName: "Dave", Content: "bread in another server", Embedding: []float32{1, 0, 0}, Timestamp: base},
	}
	for _, m := range msgs {
		if err := s.Append(context.Background(), m); err != nil {
			t.Fatalf("Append %s: %v", m.ID, err)
		}
	}
	return s
}

func ids(hits []memory.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Message.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	q := []float32{1, 0, 0}

	tests := []struct {
		name  string
		query memory.Query
		want  []string
	}{
		{name: "semantic guild", query: memory.Query{Embedding: q, GuildID: "g", Limit: 10}, want: []string{"1", "3", "2"}},
		{name: "semantic channel", query: memory.Query{Embedding: q, ChannelID: "c1"}, want: []string{"1", "2"}},
		{name: "semantic author", query: memory.Query{Embedding: q, ChannelID: "c1", AuthorID: "bob"}, want: []string{"2"}},
		{name: "semantic exclude", query: memory.Query{Embedding: q, GuildID: "g", ExcludeChannelID: "c1"}, want: []string{"3"}},
		{name: "semantic limit", query: memory.Query{Embedding: q, GuildID: "g", Limit: 1}, want: []string{"1"}},
		{name: "dimension mismatch skipped", query: memory.Query{Embedding: []float32{1, 0}, GuildID: "g"}, want: []string{}},
		{name: "keyword newest first", query: memory.Query{Text: "BREAD", GuildID: "g"}, want: []string{"4", "3", "1"}},
		{name: "keyword partial terms", query: memory.Query{Text: "sourdough bread", GuildID: "g"}, want: []string{"1", "4", "3"}},
		{name: "keyword literal percent", query: memory.Query{Text: "100%"}, want: []string{"4"}},
		{name: "empty", query: memory.Query{GuildID: "g"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := s.Search(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if diff := cmp.Diff(tt.want, ids(hits)); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAppend_ReplaceKeepsEmbedding(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, memory.Message{ID: "1", GuildID: "g", ChannelID: "c1", Content: "edited"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	hits, err := s.Search(ctx, memory.Query{Embedding: []float32{1, 0, 0}, ChannelID: "c1", Limit: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Message.Content != "edited" {
		t.Fatalf("hits = %+v, want edited message 1", hits)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("score = %f, want ~1", hits[0].Score)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
