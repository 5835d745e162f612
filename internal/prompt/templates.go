package prompt

import (
	"embed"
	"fmt"
	"os"
)

//go:embed templates/*.txt
var defaultFS embed.FS

// Template names.
const (
	NameMeta     = "meta"
	NameResponse = "response"
	NameMood     = "mood"
	NameCreate   = "create"
	NameSearch   = "search"
)

// Set holds every template the agent uses.
type Set struct {
	Meta     *Template
	Response *Template
	Mood     *Template
	Create   *Template
	Search   *Template
}

// Defaults returns the templates compiled into the binary.
func Defaults() *Set {
	load := func(name string) *Template {
		b, err := defaultFS.ReadFile("templates/" + name + ".txt")
		if err != nil {
			panic(fmt.Sprintf("prompt: embedded template %s: %v", name, err))
		}
		return MustParse(name, string(b))
	}
	return &Set{
		Meta:     load(NameMeta),
		Response: load(NameResponse),
		Mood:     load(NameMood),
		Create:   load(NameCreate),
		Search:   load(NameSearch),
	}
}

// Load returns the default set with any templates named in overrides
// replaced by the contents of the given file. Empty paths are skipped.
func Load(overrides map[string]string) (*Set, error) {
	s := Defaults()
	slots := map[string]**Template{
		NameMeta:     &s.Meta,
		NameResponse: &s.Response,
		NameMood:     &s.Mood,
		NameCreate:   &s.Create,
		NameSearch:   &s.Search,
	}
	for name, path := range overrides {
		if path == "" {
			continue
		}
		slot, ok := slots[name]
		if !ok {
			return nil, fmt.Errorf("prompt: unknown template %q", name)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("prompt: read %s template: %w", name, err)
		}
		t, err := Parse(name, string(b))
		if err != nil {
			return nil, err
		}
		*slot = t
	}
	return s, nil
}
