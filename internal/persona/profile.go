// Package persona loads the character profiles the bot speaks as.
//
// A profile lives in <dir>/<name>.yaml, <name>.yml or <name>.json. Its
// settings.char_settings text is a template with a {user_name} placeholder
// that is filled with the addressed user's display name before it reaches
// the response prompt. The server selects its active persona by name; when
// none is selected the configured default is used.
package persona

import (
	"errors"
	"fmt"

	"github.com/MrWong99/glyphchat/internal/prompt"
)

// Profile is a persona definition.
type Profile struct {
	// Name is the persona's identifier. When empty in the file it is taken
	// from the file name.
	Name string `yaml:"name" json:"name"`

	// Description is a one-line summary shown by /persona list.
	Description string `yaml:"description" json:"description"`

	// Settings holds the character configuration.
	Settings Settings `yaml:"settings" json:"settings"`

	// Attributes holds arbitrary metadata the chat pipeline does not read.
	Attributes map[string]any `yaml:"attributes" json:"attributes"`
}

// Settings is the character configuration block of a [Profile].
type Settings struct {
	// CharSettings is the base persona prompt. It may reference {user_name}.
	CharSettings string `yaml:"char_settings" json:"char_settings"`
}

// Validate checks the profile for a name and a well-formed character
// template that references no field other than user_name.
func (p *Profile) Validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("persona: name must not be empty"))
	}
	if p.Settings.CharSettings == "" {
		errs = append(errs, errors.New("persona: settings.char_settings must not be empty"))
	} else if tmpl, err := prompt.Parse(p.Name, p.Settings.CharSettings); err != nil {
		errs = append(errs, fmt.Errorf("persona: settings.char_settings: %w", err))
	} else {
		for _, f := range tmpl.Fields() {
			if f != prompt.FieldUserName {
				errs = append(errs, fmt.Errorf("persona: settings.char_settings: unsupported placeholder {%s}", f))
			}
		}
	}
	return errors.Join(errs...)
}

// Render fills the character template for userName.
func (p *Profile) Render(userName string) (string, error) {
	out, err := prompt.Render(p.Settings.CharSettings, prompt.Fields{prompt.FieldUserName: userName})
	if err != nil {
		return "", fmt.Errorf("persona: render %q: %w", p.Name, err)
	}
	return out, nil
}
