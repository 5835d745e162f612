package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ChatChanged is true when any chat tuning value (messages, timeouts,
	// thresholds, sizes or the self label) differs.
	ChatChanged bool

	// PromptsChanged is true when any prompt override path differs.
	PromptsChanged bool

	// PersonaChanged is true when the persona directory, default or cache
	// TTL differs.
	PersonaChanged bool

	// RestartRequired lists top-level sections that changed but cannot be
	// applied without a restart.
	RestartRequired []string
}

// Empty reports whether nothing hot-reloadable or restart-worthy changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ChatChanged && !d.PromptsChanged && !d.PersonaChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.ChatChanged = chatChanged(old.Chat, new.Chat)
	d.PromptsChanged = old.Prompts != new.Prompts
	d.PersonaChanged = old.Persona != new.Persona

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.LogFile != new.Server.LogFile {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Discord != new.Discord {
		d.RestartRequired = append(d.RestartRequired, "discord")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Data != new.Data {
		d.RestartRequired = append(d.RestartRequired, "data")
	}
	if old.Memory != new.Memory {
		d.RestartRequired = append(d.RestartRequired, "memory")
	}
	if old.WebSearch != new.WebSearch {
		d.RestartRequired = append(d.RestartRequired, "websearch")
	}
	return d
}

func chatChanged(a, b ChatConfig) bool {
	if a.HistoryTurns != b.HistoryTurns || a.MoodWindow != b.MoodWindow || a.FactTopK != b.FactTopK {
		return true
	}
	if !floatPtrEqual(a.PositiveThreshold, b.PositiveThreshold) || !floatPtrEqual(a.NegativeThreshold, b.NegativeThreshold) {
		return true
	}
	return a.SelfLabel != b.SelfLabel || a.Timeouts != b.Timeouts || a.Messages != b.Messages
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func providersEqual(a, b ProvidersConfig) bool {
	if !entryEqual(a.LLM, b.LLM) || !entryEqual(a.Embeddings, b.Embeddings) || len(a.LLMFallbacks) != len(b.LLMFallbacks) {
		return false
	}
	for i := range a.LLMFallbacks {
		if !entryEqual(a.LLMFallbacks[i], b.LLMFallbacks[i]) {
			return false
		}
	}
	return true
}

// entryEqual compares the scalar fields of two entries. Options maps are
// compared by length only.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && len(a.Options) == len(b.Options)
}
