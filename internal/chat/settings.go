package chat

import (
	"github.com/MrWong99/glyphchat/internal/config"
	"github.com/MrWong99/glyphchat/internal/prompt"
)

// Settings are the hot-reloadable knobs of a [Pipeline].
type Settings struct {
	// CommandPrefix marks messages handled by the command layer. They are
	// neither answered nor observed.
	CommandPrefix string

	// SelfLabel is the speaker name of the agent's turns in the history.
	SelfLabel string

	// FactTopK is how many notes per scope reach the prompt.
	FactTopK int

	Timeouts config.TimeoutsConfig
	Messages config.MessagesConfig
	Prompts  *prompt.Set
}

// SettingsFromConfig extracts pipeline settings from a loaded config.
func SettingsFromConfig(cfg *config.Config, prompts *prompt.Set) Settings {
	return Settings{
		CommandPrefix: cfg.Discord.CommandPrefix,
		SelfLabel:     cfg.Chat.SelfLabel,
		FactTopK:      cfg.Chat.FactTopK,
		Timeouts:      cfg.Chat.Timeouts,
		Messages:      cfg.Chat.Messages,
		Prompts:       prompts,
	}
}

func (s *Settings) applyDefaults() {
	if s.CommandPrefix == "" {
		s.CommandPrefix = config.DefaultCommandPrefix
	}
	if s.SelfLabel == "" {
		s.SelfLabel = config.DefaultSelfLabel
	}
	if s.FactTopK <= 0 {
		s.FactTopK = config.DefaultFactTopK
	}
	if s.Prompts == nil {
		s.Prompts = prompt.Defaults()
	}
	config.ApplyChatDefaults(&s.Timeouts, &s.Messages)
}
