package persona

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound is returned when no profile file exists for a name.
	ErrNotFound = errors.New("persona: not found")

	// ErrNoneSelected is returned by [Loader.Current] when the server has
	// not selected a persona and no default is configured.
	ErrNoneSelected = errors.New("persona: none selected")

	// ErrInvalidName is returned for names that could escape the directory.
	ErrInvalidName = errors.New("persona: invalid name")
)

// extensions are tried in order when resolving a name to a file.
var extensions = []string{".yaml", ".yml", ".json"}

// Selector reports the persona name the server has chosen. An empty name
// means no choice was made.
type Selector interface {
	CurrentPersona(ctx context.Context) (string, error)
}

// Loader reads profiles from a directory and caches the parsed result.
// It is safe for concurrent use.
type Loader struct {
	dir      string
	fallback string
	selector Selector
	cache    *cache.Cache
}

// Option configures a [Loader].
type Option func(*Loader)

// WithDefault sets the persona used when the selector reports none.
func WithDefault(name string) Option {
	return func(l *Loader) { l.fallback = name }
}

// WithSelector sets the source of the server's current persona choice.
func WithSelector(s Selector) Option {
	return func(l *Loader) { l.selector = s }
}

// WithCacheTTL sets how long a parsed profile is reused. The default is 5m.
func WithCacheTTL(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.cache = cache.New(d, 2*d)
		}
	}
}

// NewLoader returns a Loader reading profiles from dir.
func NewLoader(dir string, opts ...Option) *Loader {
	l := &Loader{dir: dir}
	for _, o := range opts {
		o(l)
	}
	if l.cache == nil {
		l.cache = cache.New(5*time.Minute, 10*time.Minute)
	}
	return l
}

// Dir returns the profile directory.
func (l *Loader) Dir() string { return l.dir }

// Load returns the named profile, reading it from disk on a cache miss.
func (l *Loader) Load(_ context.Context, name string) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if v, ok := l.cache.Get(name); ok {
		return v.(*Profile), nil
	}

	p, err := l.read(name)
	if err != nil {
		return nil, err
	}
	l.cache.SetDefault(name, p)
	return p, nil
}

func (l *Loader) read(name string) (*Profile, error) {
	for _, ext := range extensions {
		path := filepath.Join(l.dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("persona: read %q: %w", path, err)
		}

		// yaml.v3 accepts JSON documents too.
		p := &Profile{}
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("persona: parse %q: %w", path, err)
		}
		if p.Name == "" {
			p.Name = name
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("persona: %q: %w", path, err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrNotFound, name, l.dir)
}

// Current resolves the server's active persona. A selected persona that no
// longer exists falls back to the default with a warning.
func (l *Loader) Current(ctx context.Context) (*Profile, error) {
	var selected string
	if l.selector != nil {
		name, err := l.selector.CurrentPersona(ctx)
		if err != nil {
			slog.Warn("persona: reading current selection failed, using default", "err", err)
		}
		selected = name
	}

	if selected != "" {
		p, err := l.Load(ctx, selected)
		if err == nil {
			return p, nil
		}
		if l.fallback == "" || l.fallback == selected {
			return nil, err
		}
		slog.Warn("persona: selected persona unavailable, using default",
			"selected", selected, "default", l.fallback, "err", err)
	}

	if l.fallback == "" {
		return nil, ErrNoneSelected
	}
	return l.Load(ctx, l.fallback)
}

// List returns the names of every profile file in the directory, sorted.
func (l *Loader) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("persona: list %q: %w", l.dir, err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !slices.Contains(extensions, ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Invalidate drops the cached copy of name. An empty name drops everything.
func (l *Loader) Invalidate(name string) {
	if name == "" {
		l.cache.Flush()
		return
	}
	l.cache.Delete(name)
}

// Watch invalidates cached profiles whenever their files change. It blocks
// until ctx is cancelled.
func (l *Loader) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("persona: create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(l.dir); err != nil {
		return fmt.Errorf("persona: watch %q: %w", l.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			ext := filepath.Ext(ev.Name)
			if !slices.Contains(extensions, ext) {
				continue
			}
			name := strings.TrimSuffix(filepath.Base(ev.Name), ext)
			l.Invalidate(name)
			slog.Debug("persona: cache invalidated", "name", name, "op", ev.Op.String())
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("persona: watcher error", "err", err)
		}
	}
}
