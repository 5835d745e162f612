package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults] to zero-valued fields.
const (
	DefaultCommandPrefix       = "!"
	DefaultDataDir             = "data"
	DefaultMemoryFile          = "memory.json"
	DefaultMoodFile            = "channel_mood.json"
	DefaultSQLiteFile          = "messages.db"
	DefaultEmbeddingDimensions = 1536
	DefaultSearchLimit         = 5
	DefaultHistoryTurns        = 6
	DefaultMoodWindow          = 10
	DefaultFactTopK            = 3
	DefaultPositiveThreshold   = 0.2
	DefaultNegativeThreshold   = -0.2
	DefaultSelfLabel           = "Bot"
	DefaultPersonaCacheTTL     = 5 * time.Minute
	DefaultWebSearchResults    = 5
	DefaultWebScrapePages      = 3
	DefaultWebSearchTimeout    = 10 * time.Second
)

// DefaultTimeouts are applied per zero-valued field of [TimeoutsConfig].
var DefaultTimeouts = TimeoutsConfig{
	Meta:       30 * time.Second,
	Generation: 60 * time.Second,
	Embedding:  15 * time.Second,
	Search:     10 * time.Second,
	Lookup:     5 * time.Second,
	Send:       10 * time.Second,
	Background: 2 * time.Minute,
}

// DefaultMessages are applied per empty field of [MessagesConfig].
var DefaultMessages = MessagesConfig{
	Unknown:             "unknown",
	NoneAvailable:       "None available.",
	NoHistory:           "No previous conversation.",
	NoMentions:          "No one else was mentioned.",
	NoPersona:           "I have no persona loaded, so I cannot talk right now. An admin can pick one with /persona use.",
	ErrorReply:          "Sorry, something went wrong while I was thinking. ({error})",
	MemoryHeading:       "Related past conversation",
	TargetMemoryHeading: "Past conversation with {name}",
}

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "openai-compatible", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama", "gemini"},
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${VAR} references with the value of the environment
// variable VAR. Unset variables expand to the empty string. A bare $ is left
// untouched so tokens and DSNs containing dollar signs survive.
func ExpandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader expands environment references, decodes a YAML config from
// r, fills defaults and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Discord.CommandPrefix == "" {
		cfg.Discord.CommandPrefix = DefaultCommandPrefix
	}

	setString(&cfg.Data.Dir, DefaultDataDir)
	setString(&cfg.Data.MemoryFile, DefaultMemoryFile)
	setString(&cfg.Data.MoodFile, DefaultMoodFile)

	setDuration(&cfg.Persona.CacheTTL, DefaultPersonaCacheTTL)

	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = MemoryNone
	}
	setString(&cfg.Memory.SQLitePath, DefaultSQLiteFile)
	setInt(&cfg.Memory.EmbeddingDimensions, DefaultEmbeddingDimensions)
	setInt(&cfg.Memory.SearchLimit, DefaultSearchLimit)

	c := &cfg.Chat
	setInt(&c.HistoryTurns, DefaultHistoryTurns)
	setInt(&c.MoodWindow, DefaultMoodWindow)
	setInt(&c.FactTopK, DefaultFactTopK)
	if c.PositiveThreshold == nil {
		v := DefaultPositiveThreshold
		c.PositiveThreshold = &v
	}
	if c.NegativeThreshold == nil {
		v := DefaultNegativeThreshold
		c.NegativeThreshold = &v
	}
	setString(&c.SelfLabel, DefaultSelfLabel)

	ApplyChatDefaults(&c.Timeouts, &c.Messages)

	setInt(&cfg.WebSearch.Results, DefaultWebSearchResults)
	setInt(&cfg.WebSearch.ScrapePages, DefaultWebScrapePages)
	setDuration(&cfg.WebSearch.Timeout, DefaultWebSearchTimeout)
}

// ApplyChatDefaults fills zero-valued timeouts and empty messages.
func ApplyChatDefaults(t *TimeoutsConfig, m *MessagesConfig) {
	setDuration(&t.Meta, DefaultTimeouts.Meta)
	setDuration(&t.Generation, DefaultTimeouts.Generation)
	setDuration(&t.Embedding, DefaultTimeouts.Embedding)
	setDuration(&t.Search, DefaultTimeouts.Search)
	setDuration(&t.Lookup, DefaultTimeouts.Lookup)
	setDuration(&t.Send, DefaultTimeouts.Send)
	setDuration(&t.Background, DefaultTimeouts.Background)

	setString(&m.Unknown, DefaultMessages.Unknown)
	setString(&m.NoneAvailable, DefaultMessages.NoneAvailable)
	setString(&m.NoHistory, DefaultMessages.NoHistory)
	setString(&m.NoMentions, DefaultMessages.NoMentions)
	setString(&m.NoPersona, DefaultMessages.NoPersona)
	setString(&m.ErrorReply, DefaultMessages.ErrorReply)
	setString(&m.MemoryHeading, DefaultMessages.MemoryHeading)
	setString(&m.TargetMemoryHeading, DefaultMessages.TargetMemoryHeading)
}

func setString(p *string, v string) {
	if *p == "" {
		*p = v
	}
}

func setInt(p *int, v int) {
	if *p == 0 {
		*p = v
	}
}

func setDuration(p *time.Duration, v time.Duration) {
	if *p == 0 {
		*p = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if lf := cfg.Server.LogFile; lf.MaxSizeMB < 0 || lf.MaxBackups < 0 || lf.MaxAgeDays < 0 {
		errs = append(errs, errors.New("server.log_file limits must not be negative"))
	}

	// Discord
	if cfg.Discord.Token == "" {
		slog.Warn("discord.token is empty; the bot cannot connect until it is set")
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for _, fb := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", fb.Name)
	}
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; every message will receive the error reply")
	}
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
	}

	// Memory
	if !cfg.Memory.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("memory.backend %q is invalid; valid values: none, postgres, sqlite", cfg.Memory.Backend))
	}
	if cfg.Memory.Backend == MemoryPostgres && cfg.Memory.PostgresDSN == "" {
		errs = append(errs, errors.New("memory.postgres_dsn is required when memory.backend is postgres"))
	}
	if cfg.Memory.Backend != MemoryNone && cfg.Providers.Embeddings.Name == "" {
		slog.Warn("memory backend is enabled but providers.embeddings is not configured; only keyword search will work",
			"backend", cfg.Memory.Backend)
	}
	if cfg.Memory.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("memory.embedding_dimensions %d must be positive", cfg.Memory.EmbeddingDimensions))
	}
	if cfg.Memory.SearchLimit < 0 {
		errs = append(errs, fmt.Errorf("memory.search_limit %d must be positive", cfg.Memory.SearchLimit))
	}

	// Chat
	c := cfg.Chat
	if c.HistoryTurns < 0 {
		errs = append(errs, fmt.Errorf("chat.history_turns %d must be positive", c.HistoryTurns))
	}
	if c.MoodWindow < 0 {
		errs = append(errs, fmt.Errorf("chat.mood_window %d must be positive", c.MoodWindow))
	}
	if c.FactTopK < 0 {
		errs = append(errs, fmt.Errorf("chat.fact_top_k %d must be positive", c.FactTopK))
	}
	if c.PositiveThreshold != nil && c.NegativeThreshold != nil && *c.NegativeThreshold > *c.PositiveThreshold {
		errs = append(errs, fmt.Errorf("chat.negative_threshold %.2f must not exceed chat.positive_threshold %.2f",
			*c.NegativeThreshold, *c.PositiveThreshold))
	}
	for name, d := range map[string]time.Duration{
		"meta": c.Timeouts.Meta, "generation": c.Timeouts.Generation, "embedding": c.Timeouts.Embedding,
		"search": c.Timeouts.Search, "lookup": c.Timeouts.Lookup, "send": c.Timeouts.Send,
		"background": c.Timeouts.Background,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("chat.timeouts.%s %s must not be negative", name, d))
		}
	}

	// Web search
	ws := cfg.WebSearch
	if (ws.APIKey == "") != (ws.EngineID == "") {
		slog.Warn("websearch needs both api_key and engine_id; /search is disabled")
	}
	if ws.ScrapePages > ws.Results && ws.Results > 0 {
		slog.Warn("websearch.scrape_pages exceeds websearch.results; only returned hits are scraped",
			"scrape_pages", ws.ScrapePages, "results", ws.Results)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// ResolvePath joins name onto the data directory unless name is absolute.
func (d DataConfig) ResolvePath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}
