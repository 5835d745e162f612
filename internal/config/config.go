// Package config provides the configuration schema, loader, watcher and
// provider registry for glyphchat.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// MemoryBackend selects where the long-term message log lives.
type MemoryBackend string

const (
	// MemoryNone disables the long-term message log. Searches degrade to
	// the "none available" placeholder.
	MemoryNone MemoryBackend = "none"

	// MemoryPostgres stores messages in PostgreSQL with pgvector.
	MemoryPostgres MemoryBackend = "postgres"

	// MemorySQLite stores messages in an embedded SQLite file.
	MemorySQLite MemoryBackend = "sqlite"
)

// IsValid reports whether b is a recognised backend.
func (b MemoryBackend) IsValid() bool {
	switch b {
	case MemoryNone, MemoryPostgres, MemorySQLite:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Providers ProvidersConfig `yaml:"providers"`
	Data      DataConfig      `yaml:"data"`
	Persona   PersonaConfig   `yaml:"persona"`
	Memory    MemoryConfig    `yaml:"memory"`
	Chat      ChatConfig      `yaml:"chat"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	WebSearch WebSearchConfig `yaml:"websearch"`
}

// ServerConfig holds the observability endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the address of the health and metrics server
	// (e.g., ":9090"). Empty disables it.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile, when Path is set, mirrors logs into a rotating file.
	LogFile LogFileConfig `yaml:"log_file"`
}

// LogFileConfig configures the rotating log file.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DiscordConfig holds the bot credentials and command settings.
type DiscordConfig struct {
	// Token is the bot token. Usually supplied as ${DISCORD_TOKEN}.
	Token string `yaml:"token"`

	// GuildID restricts slash-command registration to one guild. Empty
	// registers commands globally.
	GuildID string `yaml:"guild_id"`

	// AdminRoleID is the role allowed to run administrative commands
	// (/persona use, /note add server). Empty allows only members with the
	// Manage Server permission.
	AdminRoleID string `yaml:"admin_role_id"`

	// CommandPrefix marks messages the chat pipeline ignores entirely.
	// Defaults to "!".
	CommandPrefix string `yaml:"command_prefix"`
}

// ProvidersConfig selects the generation and embedding backends.
type ProvidersConfig struct {
	// LLM is the primary text-generation provider.
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when the primary provider fails or its
	// circuit breaker is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	// Embeddings is the text-embedding provider.
	Embeddings ProviderEntry `yaml:"embeddings"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// DataConfig locates the JSON state files.
type DataConfig struct {
	// Dir is the base directory for relative file names. Defaults to "data".
	Dir string `yaml:"dir"`

	// MemoryFile holds user and server notes. Defaults to "memory.json".
	MemoryFile string `yaml:"memory_file"`

	// MoodFile holds per-channel mood windows. Defaults to "channel_mood.json".
	MoodFile string `yaml:"mood_file"`
}

// PersonaConfig locates persona definitions.
type PersonaConfig struct {
	// Dir holds one <name>.yaml, <name>.yml or <name>.json file per persona.
	Dir string `yaml:"dir"`

	// Default is used when the server has not selected a persona.
	Default string `yaml:"default"`

	// CacheTTL bounds how long a parsed persona is reused. Defaults to 5m.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// MemoryConfig configures the long-term message log.
type MemoryConfig struct {
	// Backend is one of none, postgres or sqlite. Defaults to none.
	Backend MemoryBackend `yaml:"backend"`

	// PostgresDSN is the PostgreSQL connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// SQLitePath is the database file for the sqlite backend. Relative
	// paths resolve against data.dir. Defaults to "messages.db".
	SQLitePath string `yaml:"sqlite_path"`

	// EmbeddingDimensions is the vector length of the embeddings column.
	// Must match providers.embeddings. Defaults to 1536.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// SearchLimit caps how many past messages a search returns. Defaults to 5.
	SearchLimit int `yaml:"search_limit"`
}

// ChatConfig tunes the conversation pipeline.
type ChatConfig struct {
	// HistoryTurns is the short-term history capacity per channel. Defaults to 6.
	HistoryTurns int `yaml:"history_turns"`

	// MoodWindow is the number of sentiment scores kept per channel. Defaults to 10.
	MoodWindow int `yaml:"mood_window"`

	// FactTopK is how many notes per scope reach the prompt. Defaults to 3.
	FactTopK int `yaml:"fact_top_k"`

	// PositiveThreshold and NegativeThreshold bound the neutral mood band.
	// Default to 0.2 and -0.2.
	PositiveThreshold *float64 `yaml:"positive_threshold"`
	NegativeThreshold *float64 `yaml:"negative_threshold"`

	// SelfLabel is the speaker name used for the agent's own turns.
	SelfLabel string `yaml:"self_label"`

	// Timeouts bound every call to an external service.
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// Messages are the user-visible fixed strings and prompt placeholders.
	Messages MessagesConfig `yaml:"messages"`
}

// TimeoutsConfig bounds collaborator calls. Zero values take defaults.
type TimeoutsConfig struct {
	Meta       time.Duration `yaml:"meta"`
	Generation time.Duration `yaml:"generation"`
	Embedding  time.Duration `yaml:"embedding"`
	Search     time.Duration `yaml:"search"`
	Lookup     time.Duration `yaml:"lookup"`
	Send       time.Duration `yaml:"send"`
	Background time.Duration `yaml:"background"`
}

// MessagesConfig holds fixed texts. Fields marked as templates accept
// {placeholders}.
type MessagesConfig struct {
	Unknown       string `yaml:"unknown"`
	NoneAvailable string `yaml:"none_available"`
	NoHistory     string `yaml:"no_history"`
	NoMentions    string `yaml:"no_mentions"`
	NoPersona     string `yaml:"no_persona"`

	// ErrorReply is a template with an {error} placeholder.
	ErrorReply string `yaml:"error_reply"`

	MemoryHeading string `yaml:"memory_heading"`

	// TargetMemoryHeading is a template with a {name} placeholder.
	TargetMemoryHeading string `yaml:"target_memory_heading"`
}

// PromptsConfig overrides built-in prompt templates with files.
type PromptsConfig struct {
	Meta     string `yaml:"meta_file"`
	Response string `yaml:"response_file"`
	Mood     string `yaml:"mood_file"`
	Create   string `yaml:"create_file"`
	Search   string `yaml:"search_file"`
}

// Overrides returns the configured files keyed by template name.
func (p PromptsConfig) Overrides() map[string]string {
	return map[string]string{
		"meta":     p.Meta,
		"response": p.Response,
		"mood":     p.Mood,
		"create":   p.Create,
		"search":   p.Search,
	}
}

// WebSearchConfig configures the Google Custom Search integration used by
// the /search command. Search is disabled when APIKey or EngineID is empty.
type WebSearchConfig struct {
	APIKey   string `yaml:"api_key"`
	EngineID string `yaml:"engine_id"`

	// Results is how many hits are requested. Defaults to 5.
	Results int `yaml:"results"`

	// ScrapePages is how many of the hits are fetched and summarised.
	// Defaults to 3.
	ScrapePages int `yaml:"scrape_pages"`

	// Timeout bounds each HTTP request. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether web search is configured.
func (w WebSearchConfig) Enabled() bool { return w.APIKey != "" && w.EngineID != "" }
