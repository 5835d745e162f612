package mood

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/glyphchat/internal/jsonfile"
)

// Store persists channel mood records.
type Store interface {
	// LoadMoods returns every persisted record. Implementations fail open:
	// unreadable state is reported as an error alongside an empty map.
	LoadMoods(ctx context.Context) (map[string]Record, error)

	// SaveMoods replaces the persisted records.
	SaveMoods(ctx context.Context, moods map[string]Record) error
}

// FileStore keeps mood records in a JSON file of the form
// {channelID: {"scores": [...], "average": n}}.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a [FileStore] writing to path.
func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// LoadMoods implements [Store]. A missing file yields an empty map.
func (s *FileStore) LoadMoods(_ context.Context) (map[string]Record, error) {
	moods := make(map[string]Record)
	if _, err := jsonfile.Read(s.path, &moods); err != nil {
		return make(map[string]Record), fmt.Errorf("mood: load: %w", err)
	}
	return moods, nil
}

// SaveMoods implements [Store] with an atomic replace.
func (s *FileStore) SaveMoods(_ context.Context, moods map[string]Record) error {
	if err := jsonfile.WriteAtomic(s.path, moods); err != nil {
		return fmt.Errorf("mood: save: %w", err)
	}
	return nil
}

// MemoryStore is an in-process [Store] for tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.Mutex
	moods map[string]Record
	// Err, if set, is returned by SaveMoods.
	Err error
}

var _ Store = (*MemoryStore)(nil)

// LoadMoods implements [Store].
func (m *MemoryStore) LoadMoods(_ context.Context) (map[string]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneMoods(m.moods), nil
}

// SaveMoods implements [Store].
func (m *MemoryStore) SaveMoods(_ context.Context, moods map[string]Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.moods = cloneMoods(moods)
	return nil
}

func cloneMoods(in map[string]Record) map[string]Record {
	out := make(map[string]Record, len(in))
	for k, v := range in {
		out[k] = Record{Scores: append([]float64(nil), v.Scores...), Average: v.Average}
	}
	return out
}
