package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/glyphchat/internal/app"
	"github.com/MrWong99/glyphchat/internal/config"
	"github.com/MrWong99/glyphchat/pkg/memory"
	"github.com/MrWong99/glyphchat/pkg/memory/postgres"
	"github.com/MrWong99/glyphchat/pkg/memory/sqlite"
	"github.com/MrWong99/glyphchat/pkg/provider/embeddings"
	geminiembed "github.com/MrWong99/glyphchat/pkg/provider/embeddings/gemini"
	ollamaembed "github.com/MrWong99/glyphchat/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/glyphchat/pkg/provider/embeddings/openai"
	"github.com/MrWong99/glyphchat/pkg/provider/llm"
	"github.com/MrWong99/glyphchat/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/glyphchat/pkg/provider/llm/openai"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// Every any-llm-go backend shares the same pattern: optional APIKey and
	// optional BaseURL. ollama reads the address from BaseURL only.
	for _, name := range anyllm.SupportedBackends {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" && name != "ollama" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// openai-compatible talks to any server implementing the OpenAI chat API.
	reg.RegisterLLM("openai-compatible", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oallm.WithTimeout(d))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if n := optInt(entry.Options, "dimensions"); n > 0 {
			opts = append(opts, oaembed.WithDimensions(n))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if n := optInt(entry.Options, "dimensions"); n > 0 {
			opts = append(opts, ollamaembed.WithDimensions(n))
		}
		if ka := optString(entry.Options, "keep_alive"); ka != "" {
			opts = append(opts, ollamaembed.WithKeepAlive(ka))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("gemini", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []geminiembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, geminiembed.WithBaseURL(entry.BaseURL))
		}
		if n := optInt(entry.Options, "dimensions"); n > 0 {
			opts = append(opts, geminiembed.WithDimensions(n))
		}
		if tt := optString(entry.Options, "task_type"); tt != "" {
			opts = append(opts, geminiembed.WithTaskType(tt))
		}
		return geminiembed.New(context.Background(), entry.APIKey, entry.Model, opts...)
	})

	// ── Message log ───────────────────────────────────────────────────────────

	reg.RegisterMessageLog(config.MemoryPostgres, func(ctx context.Context, m config.MemoryConfig, _ config.DataConfig) (memory.MessageLog, error) {
		return postgres.NewStore(ctx, m.PostgresDSN, m.EmbeddingDimensions)
	})
	reg.RegisterMessageLog(config.MemorySQLite, func(ctx context.Context, m config.MemoryConfig, d config.DataConfig) (memory.MessageLog, error) {
		return sqlite.Open(ctx, d.ResolvePath(m.SQLitePath))
	})
}

// buildProviders instantiates the providers named in cfg using the registry.
// An unregistered LLM fallback is skipped with a warning; everything else
// that is configured must be created successfully.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = &app.NamedLLM{Name: name, Provider: p}
		slog.Info("provider created", "kind", "llm", "name", name, "model", p.ModelID())
	}

	for i, entry := range cfg.Providers.LLMFallbacks {
		p, err := reg.CreateLLM(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("llm fallback not available, skipping", "index", i, "name", entry.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %d %q: %w", i, entry.Name, err)
		}
		ps.LLMFallbacks = append(ps.LLMFallbacks, app.NamedLLM{Name: fmt.Sprintf("%s#%d", entry.Name, i+1), Provider: p})
		slog.Info("provider created", "kind", "llm_fallback", "name", entry.Name, "model", p.ModelID())
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = p
		slog.Info("provider created", "kind", "embeddings", "name", name, "model", p.ModelID())
	}

	log, err := reg.CreateMessageLog(ctx, cfg.Memory, cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("open message log %q: %w", cfg.Memory.Backend, err)
	}
	if log != nil {
		ps.MessageLog = log
		slog.Info("message log opened", "backend", cfg.Memory.Backend)
	}

	return ps, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer option. YAML decodes whole numbers as int.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// optDuration extracts a duration option written as a string like "30s".
func optDuration(opts map[string]any, key string) time.Duration {
	d, err := time.ParseDuration(optString(opts, key))
	if err != nil {
		return 0
	}
	return d
}
