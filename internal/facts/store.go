package facts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/glyphchat/internal/jsonfile"
)

// FileStore keeps the memory document in a JSON file. The file is re-read on
// every access so edits made by hand or by another process are picked up.
//
// All methods are safe for concurrent use.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the JSON file at path. The file
// does not need to exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the memory document. A missing or corrupt file yields the empty
// document; corruption is logged.
func (s *FileStore) Load(ctx context.Context) *Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *FileStore) load(ctx context.Context) *Memory {
	m := &Memory{}
	if _, err := jsonfile.Read(s.path, m); err != nil {
		slog.WarnContext(ctx, "facts: memory file unreadable, using empty memory", "path", s.path, "err", err)
		m = &Memory{}
	}
	m.normalise()
	return m
}

// loadForUpdate reads the document ahead of a write. A corrupt file is moved
// aside to a timestamped backup first so the write cannot destroy it. A file
// that cannot be read at all refuses the write.
func (s *FileStore) loadForUpdate(ctx context.Context) (*Memory, error) {
	m := &Memory{}
	found, err := jsonfile.Read(s.path, m)
	switch {
	case err == nil:
	case !found:
		return nil, fmt.Errorf("facts: %w", err)
	default:
		backup := s.path + ".corrupt-" + time.Now().UTC().Format("20060102T150405.000000000Z")
		if rerr := os.Rename(s.path, backup); rerr != nil {
			return nil, fmt.Errorf("facts: memory file corrupt, backup failed: %w", errors.Join(err, rerr))
		}
		slog.WarnContext(ctx, "facts: memory file corrupt, moved aside before writing",
			"path", s.path, "backup", backup, "err", err)
		m = &Memory{}
	}
	m.normalise()
	return m, nil
}

// Save replaces the memory document.
func (s *FileStore) Save(ctx context.Context, m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(m)
}

func (s *FileStore) save(m *Memory) error {
	m.normalise()
	if err := jsonfile.WriteAtomic(s.path, m); err != nil {
		return fmt.Errorf("facts: save: %w", err)
	}
	return nil
}

// Notes returns the notes stored for scope. It never fails on a missing or
// corrupt file; ctx cancellation is the only error.
func (s *FileStore) Notes(ctx context.Context, scope Scope) ([]Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Load(ctx).notes(scope), nil
}

// AddNote appends a note to scope and persists the document.
func (s *FileStore) AddNote(ctx context.Context, scope Scope, n Note) error {
	if strings.TrimSpace(n.Text) == "" {
		return fmt.Errorf("facts: add note: empty text")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadForUpdate(ctx)
	if err != nil {
		return err
	}
	if scope.IsServer() {
		m.Server.Notes = append(m.Server.Notes, n)
	} else {
		if scope.UserID() == "" {
			return fmt.Errorf("facts: add note: empty user id")
		}
		u := m.Users[scope.UserID()]
		if u == nil {
			u = &UserRecord{}
			m.Users[scope.UserID()] = u
		}
		u.Notes = append(u.Notes, n)
	}
	return s.save(m)
}

// CurrentPersona returns the persona name selected for the server, or "".
func (s *FileStore) CurrentPersona(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m := s.Load(ctx)
	if m.Server.CurrentPersona == nil {
		return "", nil
	}
	return *m.Server.CurrentPersona, nil
}

// SetCurrentPersona records the selected persona. An empty name clears it.
func (s *FileStore) SetCurrentPersona(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadForUpdate(ctx)
	if err != nil {
		return err
	}
	if name == "" {
		m.Server.CurrentPersona = nil
	} else {
		m.Server.CurrentPersona = &name
	}
	return s.save(m)
}
