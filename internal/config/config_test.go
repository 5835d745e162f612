package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/glyphchat/internal/config"
	"github.com/MrWong99/glyphchat/pkg/memory"
	memorymock "github.com/MrWong99/glyphchat/pkg/memory/mock"
	"github.com/MrWong99/glyphchat/pkg/provider/embeddings"
	embmock "github.com/MrWong99/glyphchat/pkg/provider/embeddings/mock"
	"github.com/MrWong99/glyphchat/pkg/provider/llm"
	llmmock "github.com/MrWong99/glyphchat/pkg/provider/llm/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  log_file:
    path: logs/glyphchat.log
    max_size_mb: 10

discord:
  token: ${GLYPHCHAT_TEST_TOKEN}
  guild_id: "42"

providers:
  llm:
    name: gemini
    api_key: g-test
    model: gemini-2.0-flash
  llm_fallbacks:
    - name: openai
      api_key: sk-test
      model: gpt-4o-mini
  embeddings:
    name: gemini
    model: gemini-embedding-001

memory:
  backend: sqlite
  embedding_dimensions: 768

chat:
  history_turns: 8
  positive_threshold: 0.3
  timeouts:
    generation: 45s
  messages:
    error_reply: "Oops ({error})"

persona:
  dir: personas
  default: mesugaki
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Setenv("GLYPHCHAT_TEST_TOKEN", "tok-123")

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Discord.Token != "tok-123" {
		t.Errorf("discord.token: got %q, want expanded env value", cfg.Discord.Token)
	}
	if cfg.Providers.LLM.Name != "gemini" || len(cfg.Providers.LLMFallbacks) != 1 {
		t.Errorf("providers: got %+v", cfg.Providers)
	}
	if cfg.Memory.Backend != config.MemorySQLite || cfg.Memory.EmbeddingDimensions != 768 {
		t.Errorf("memory: got %+v", cfg.Memory)
	}
	if cfg.Chat.HistoryTurns != 8 {
		t.Errorf("chat.history_turns: got %d, want 8", cfg.Chat.HistoryTurns)
	}
	if *cfg.Chat.PositiveThreshold != 0.3 {
		t.Errorf("chat.positive_threshold: got %v, want 0.3", *cfg.Chat.PositiveThreshold)
	}
	if cfg.Chat.Timeouts.Generation != 45*time.Second {
		t.Errorf("chat.timeouts.generation: got %s, want 45s", cfg.Chat.Timeouts.Generation)
	}
	if cfg.Chat.Messages.ErrorReply != "Oops ({error})" {
		t.Errorf("chat.messages.error_reply: got %q", cfg.Chat.Messages.ErrorReply)
	}
}

func TestLoadFromReader_EmptyGetsDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}

	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level default: got %q", cfg.Server.LogLevel)
	}
	if cfg.Discord.CommandPrefix != "!" {
		t.Errorf("command_prefix default: got %q", cfg.Discord.CommandPrefix)
	}
	if cfg.Memory.Backend != config.MemoryNone {
		t.Errorf("memory.backend default: got %q", cfg.Memory.Backend)
	}
	if cfg.Chat.HistoryTurns != 6 || cfg.Chat.MoodWindow != 10 || cfg.Chat.FactTopK != 3 {
		t.Errorf("chat sizes: got %d/%d/%d, want 6/10/3", cfg.Chat.HistoryTurns, cfg.Chat.MoodWindow, cfg.Chat.FactTopK)
	}
	if *cfg.Chat.PositiveThreshold != 0.2 || *cfg.Chat.NegativeThreshold != -0.2 {
		t.Errorf("thresholds: got %v/%v", *cfg.Chat.PositiveThreshold, *cfg.Chat.NegativeThreshold)
	}
	if cfg.Chat.Timeouts != config.DefaultTimeouts {
		t.Errorf("timeouts: got %+v, want defaults", cfg.Chat.Timeouts)
	}
	if cfg.Chat.Messages != config.DefaultMessages {
		t.Errorf("messages: got %+v, want defaults", cfg.Chat.Messages)
	}
	if got := cfg.Data.ResolvePath(cfg.Data.MemoryFile); got != "data/memory.json" {
		t.Errorf("memory file path: got %q", got)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("chat:\n  histroy_turns: 4\n"))
	if err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("GLYPHCHAT_A", "alpha")

	tests := []struct {
		in, want string
	}{
		{"${GLYPHCHAT_A}", "alpha"},
		{"x-${GLYPHCHAT_A}-y", "x-alpha-y"},
		{"${GLYPHCHAT_UNSET_VAR}", ""},
		{"pa$$word", "pa$$word"},
		{"$GLYPHCHAT_A", "$GLYPHCHAT_A"},
	}
	for _, tt := range tests {
		if got := string(config.ExpandEnv([]byte(tt.in))); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{name: "log level", yaml: "server:\n  log_level: verbose\n", wantSub: "log_level"},
		{name: "memory backend", yaml: "memory:\n  backend: redis\n", wantSub: "memory.backend"},
		{name: "postgres without dsn", yaml: "memory:\n  backend: postgres\n", wantSub: "postgres_dsn"},
		{name: "negative history", yaml: "chat:\n  history_turns: -1\n", wantSub: "history_turns"},
		{name: "inverted thresholds", yaml: "chat:\n  positive_threshold: -0.5\n  negative_threshold: 0.5\n", wantSub: "negative_threshold"},
		{name: "negative timeout", yaml: "chat:\n  timeouts:\n    send: -1s\n", wantSub: "timeouts.send"},
		{name: "fallback without name", yaml: "providers:\n  llm_fallbacks:\n    - model: x\n", wantSub: "llm_fallbacks[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error should mention %q, got: %v", tt.wantSub, err)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	yaml := `
server:
  log_level: loud
memory:
  backend: postgres
chat:
  fact_top_k: -3
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"log_level", "postgres_dsn", "fact_top_k"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestWebSearchEnabled(t *testing.T) {
	t.Parallel()
	if (config.WebSearchConfig{APIKey: "k"}).Enabled() {
		t.Error("enabled without engine id")
	}
	if !(config.WebSearchConfig{APIKey: "k", EngineID: "e"}).Enabled() {
		t.Error("not enabled with both values")
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM: want ErrProviderNotRegistered, got %v", err)
	}
	if _, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateEmbeddings: want ErrProviderNotRegistered, got %v", err)
	}
	_, err := reg.CreateMessageLog(context.Background(), config.MemoryConfig{Backend: config.MemorySQLite}, config.DataConfig{})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateMessageLog: want ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_Registered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	reg.RegisterLLM("stub", func(e config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{Model: e.Model}, nil
	})
	reg.RegisterEmbeddings("stub", func(config.ProviderEntry) (embeddings.Provider, error) {
		return &embmock.Provider{}, nil
	})
	var gotPath string
	reg.RegisterMessageLog(config.MemorySQLite, func(_ context.Context, m config.MemoryConfig, d config.DataConfig) (memory.MessageLog, error) {
		gotPath = d.ResolvePath(m.SQLitePath)
		return &memorymock.MessageLog{}, nil
	})

	p, err := reg.CreateLLM(config.ProviderEntry{Name: "stub", Model: "m1"})
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if p.ModelID() != "m1" {
		t.Errorf("ModelID: got %q", p.ModelID())
	}
	if _, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "stub"}); err != nil {
		t.Fatalf("CreateEmbeddings: %v", err)
	}
	log, err := reg.CreateMessageLog(context.Background(),
		config.MemoryConfig{Backend: config.MemorySQLite, SQLitePath: "msgs.db"},
		config.DataConfig{Dir: "/var/lib/glyphchat"})
	if err != nil || log == nil {
		t.Fatalf("CreateMessageLog: %v, %v", log, err)
	}
	if gotPath != "/var/lib/glyphchat/msgs.db" {
		t.Errorf("resolved path: got %q", gotPath)
	}
}

func TestRegistry_NoneBackend(t *testing.T) {
	t.Parallel()
	log, err := config.NewRegistry().CreateMessageLog(context.Background(), config.MemoryConfig{Backend: config.MemoryNone}, config.DataConfig{})
	if err != nil || log != nil {
		t.Fatalf("none backend: got %v, %v; want nil, nil", log, err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	sentinel := errors.New("boom")
	reg.RegisterLLM("bad", func(config.ProviderEntry) (llm.Provider, error) { return nil, sentinel })

	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "bad"}); !errors.Is(err, sentinel) {
		t.Fatalf("want factory error, got %v", err)
	}
}
