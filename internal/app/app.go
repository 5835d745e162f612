// Package app wires all glyphchat subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves Discord and the health endpoints until the context
// ends, Reload applies a changed config file, and Shutdown tears everything
// down in order.
//
// For testing, inject doubles via functional options (WithPlatform,
// WithTransport, WithUserDirectory, ...). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/glyphchat/internal/chat"
	"github.com/MrWong99/glyphchat/internal/config"
	"github.com/MrWong99/glyphchat/internal/discord"
	"github.com/MrWong99/glyphchat/internal/discord/commands"
	"github.com/MrWong99/glyphchat/internal/facts"
	"github.com/MrWong99/glyphchat/internal/health"
	"github.com/MrWong99/glyphchat/internal/mood"
	"github.com/MrWong99/glyphchat/internal/observe"
	"github.com/MrWong99/glyphchat/internal/persona"
	"github.com/MrWong99/glyphchat/internal/prompt"
	"github.com/MrWong99/glyphchat/internal/recall"
	"github.com/MrWong99/glyphchat/internal/resilience"
	"github.com/MrWong99/glyphchat/internal/session"
	"github.com/MrWong99/glyphchat/internal/tasks"
	"github.com/MrWong99/glyphchat/internal/websearch"
	"github.com/MrWong99/glyphchat/pkg/memory"
	"github.com/MrWong99/glyphchat/pkg/provider/embeddings"
	"github.com/MrWong99/glyphchat/pkg/provider/llm"
)

// ErrNoLLM is the generation error when no LLM provider is configured.
var ErrNoLLM = errors.New("app: no llm provider configured")

// NamedLLM is an LLM provider with the config name it was created from.
type NamedLLM struct {
	Name     string
	Provider llm.Provider
}

// Providers holds the external services created by main.go via the config
// registry. Nil means the service is not configured.
type Providers struct {
	LLM          *NamedLLM
	LLMFallbacks []NamedLLM
	Embeddings   embeddings.Provider
	MessageLog   memory.MessageLog
}

// Platform is the chat network connection. *discord.Bot implements it.
type Platform interface {
	Router() *discord.CommandRouter
	Permissions() *discord.PermissionChecker
	Handle(h discord.MessageHandler)
	Connected() bool
	Run(ctx context.Context) error
	Close() error
}

var _ Platform = (*discord.Bot)(nil)

// App owns all subsystem lifetimes.
type App struct {
	cfg       atomic.Pointer[config.Config]
	providers *Providers

	platform  Platform
	transport chat.Transport
	users     chat.UserDirectory
	metrics   *observe.Metrics
	levelVar  *slog.LevelVar

	prompts  atomic.Pointer[prompt.Set]
	gen      chat.Generator
	llm      *resilience.LLM
	embedder *resilience.Embedder
	notes    *facts.FileStore
	sessions *session.Store
	tracker  *mood.Tracker
	analyzer *mood.Analyzer
	personas *persona.Loader
	recall   *recall.Service
	search   *websearch.Client
	tasks    *tasks.Supervisor
	pipeline *chat.Pipeline
	health   *health.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithPlatform injects the chat network instead of connecting a Discord bot.
// Transport and user directory must then be injected too.
func WithPlatform(p Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithTransport injects the reply transport.
func WithTransport(t chat.Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithUserDirectory injects the user lookup.
func WithUserDirectory(u chat.UserDirectory) Option {
	return func(a *App) { a.users = u }
}

// WithMetrics records metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets Reload change the log level of the running process.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. cfg must have
// defaults applied, as [config.Load] does.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{providers: providers}
	a.cfg.Store(cfg)
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Prompts ───────────────────────────────────────────────────────
	prompts, err := prompt.Load(cfg.Prompts.Overrides())
	if err != nil {
		return nil, fmt.Errorf("app: load prompts: %w", err)
	}
	a.prompts.Store(prompts)

	// ── 2. Providers behind circuit breakers ─────────────────────────────
	a.initProviders()

	// ── 3. Local state ───────────────────────────────────────────────────
	a.notes = facts.NewFileStore(cfg.Data.ResolvePath(cfg.Data.MemoryFile))
	a.tracker = mood.NewTracker(ctx,
		mood.NewFileStore(cfg.Data.ResolvePath(cfg.Data.MoodFile)),
		mood.WithWindow(cfg.Chat.MoodWindow),
		mood.WithThresholds(deref(cfg.Chat.PositiveThreshold, config.DefaultPositiveThreshold),
			deref(cfg.Chat.NegativeThreshold, config.DefaultNegativeThreshold)),
	)
	a.analyzer = mood.NewAnalyzer(a.gen, prompts.Mood, a.tracker)
	a.personas = persona.NewLoader(cfg.Persona.Dir,
		persona.WithDefault(cfg.Persona.Default),
		persona.WithSelector(a.notes),
		persona.WithCacheTTL(cfg.Persona.CacheTTL),
	)

	// ── 4. Long-term recall ──────────────────────────────────────────────
	a.initRecall(cfg)

	// ── 5. Web search ────────────────────────────────────────────────────
	if cfg.WebSearch.Enabled() {
		c, err := websearch.New(cfg.WebSearch)
		if err != nil {
			return nil, fmt.Errorf("app: init web search: %w", err)
		}
		a.search = c
	}

	// ── 6. Platform ──────────────────────────────────────────────────────
	if err := a.initPlatform(cfg); err != nil {
		return nil, fmt.Errorf("app: init discord: %w", err)
	}

	// ── 7. Chat pipeline ─────────────────────────────────────────────────
	if err := a.initPipeline(cfg); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	a.platform.Handle(a.pipeline)
	a.registerCommands()

	// ── 8. Health server ─────────────────────────────────────────────────
	if addr := cfg.Server.ListenAddr; addr != "" {
		srv, err := health.Listen(addr, health.New(a.checkers()), a.metrics)
		if err != nil {
			return nil, fmt.Errorf("app: init health: %w", err)
		}
		a.health = srv
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initProviders wraps the configured LLM and embedder in circuit breakers.
// Without an LLM every generation fails with [ErrNoLLM].
func (a *App) initProviders() {
	onChange := func(name string, from, to resilience.State) {
		slog.Warn("circuit breaker state changed", "provider", name, "from", from, "to", to)
	}

	if p := a.providers.LLM; p != nil {
		a.llm = resilience.NewLLM(p.Name, p.Provider, resilience.BreakerConfig{OnStateChange: onChange})
		for _, fb := range a.providers.LLMFallbacks {
			a.llm.AddFallback(fb.Name, fb.Provider)
		}
		a.gen = llm.Generator{Provider: a.llm}
	} else {
		a.gen = unavailable{}
	}

	if e := a.providers.Embeddings; e != nil {
		a.embedder = resilience.NewEmbedder(e.ModelID(), e, resilience.BreakerConfig{OnStateChange: onChange})
	}
}

// initRecall attaches the message log when one is configured.
func (a *App) initRecall(cfg *config.Config) {
	log := a.providers.MessageLog
	if log == nil {
		return
	}
	opts := []recall.Option{recall.WithLimit(cfg.Memory.SearchLimit), recall.WithMetrics(a.metrics)}
	if a.embedder != nil {
		opts = append(opts, recall.WithEmbedder(a.embedder))
	}
	a.recall = recall.New(log, opts...)
	a.closers = append(a.closers, log.Close)
}

// initPlatform creates the Discord bot unless a platform was injected.
func (a *App) initPlatform(cfg *config.Config) error {
	if a.platform == nil {
		bot, err := discord.New(cfg.Discord)
		if err != nil {
			return err
		}
		a.platform = bot
		if a.transport == nil {
			a.transport = bot.Transport()
		}
		if a.users == nil {
			a.users = bot.Users()
		}
	}
	if a.transport == nil || a.users == nil {
		return errors.New("an injected platform needs a transport and a user directory")
	}
	return nil
}

func (a *App) initPipeline(cfg *config.Config) error {
	a.tasks = tasks.New(
		tasks.WithTimeout(cfg.Chat.Timeouts.Background),
		tasks.WithMetrics(a.metrics),
	)

	opts := []chat.Option{
		chat.WithMoodAnalyzer(a.analyzer),
		chat.WithTasks(a.tasks),
		chat.WithMetrics(a.metrics),
	}
	if a.embedder != nil {
		opts = append(opts, chat.WithEmbedder(a.embedder))
	}
	if a.recall != nil {
		opts = append(opts, chat.WithRecall(a.recall))
	}

	a.sessions = session.NewStore(session.WithCapacity(cfg.Chat.HistoryTurns))
	p, err := chat.New(chat.Config{
		Transport: a.transport,
		Users:     a.users,
		Generator: a.gen,
		Personas:  a.personas,
		Notes:     a.notes,
		Mood:      a.tracker,
		Sessions:  a.sessions,
		Settings:  chat.SettingsFromConfig(cfg, a.prompts.Load()),
	}, opts...)
	if err != nil {
		return err
	}
	a.pipeline = p
	return nil
}

// registerCommands installs the slash commands on the platform router.
func (a *App) registerCommands() {
	router := a.platform.Router()
	perms := a.platform.Permissions()
	prompts := func() *prompt.Set { return a.prompts.Load() }
	timeout := a.cfg.Load().Chat.Timeouts.Generation

	var embedder chat.Embedder
	if a.embedder != nil {
		embedder = a.embedder
	}
	var searcher commands.Searcher
	if a.search != nil {
		searcher = a.search
	}

	commands.NewPersonaCommands(perms, a.personas, a.notes).Register(router)
	commands.NewNoteCommands(perms, a.notes, embedder, timeout).Register(router)
	commands.NewMoodCommands(a.tracker).Register(router)
	commands.NewCreateCommands(a.gen, prompts, timeout).Register(router)
	commands.NewSearchCommands(searcher, a.gen, prompts, timeout+a.cfg.Load().WebSearch.Timeout).Register(router)
}

// checkers returns the readiness checks.
func (a *App) checkers() []health.Checker {
	cs := []health.Checker{{
		Name: "discord",
		Check: func(context.Context) error {
			if !a.platform.Connected() {
				return errors.New("gateway not connected")
			}
			return nil
		},
	}}
	if a.llm != nil {
		cs = append(cs, health.Checker{Name: "llm", Check: func(context.Context) error {
			for _, st := range a.llm.Group().States() {
				if st != resilience.Open {
					return nil
				}
			}
			return errors.New("every llm circuit is open")
		}})
	}
	if log := a.providers.MessageLog; log != nil {
		cs = append(cs, health.Checker{Name: "message_log", Check: log.Ping})
	}
	return cs
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Pipeline returns the chat pipeline.
func (a *App) Pipeline() *chat.Pipeline { return a.pipeline }

// Notes returns the note and persona-selection store.
func (a *App) Notes() *facts.FileStore { return a.notes }

// Personas returns the persona loader.
func (a *App) Personas() *persona.Loader { return a.personas }

// Mood returns the channel mood tracker.
func (a *App) Mood() *mood.Tracker { return a.tracker }

// HealthAddr returns the bound health server address, or "" when disabled.
func (a *App) HealthAddr() string {
	if a.health == nil {
		return ""
	}
	return a.health.Addr()
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run connects the platform, serves the health endpoints and watches the
// persona directory. It blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.platform.Run(ctx) })

	if a.health != nil {
		g.Go(a.health.Serve)
		g.Go(func() error {
			<-ctx.Done()
			return a.health.Shutdown(context.WithoutCancel(ctx))
		})
	}

	g.Go(func() error {
		if err := a.personas.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("persona directory watch stopped, changes need a restart", "dir", a.personas.Dir(), "err", err)
		}
		return nil
	})

	slog.Info("app running", "health_addr", a.HealthAddr())
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable parts of a changed config. It matches
// the callback signature of [config.NewWatcher].
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	a.cfg.Store(new)

	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.PromptsChanged {
		set, err := prompt.Load(new.Prompts.Overrides())
		if err != nil {
			slog.Error("prompt reload failed, keeping previous templates", "err", err)
		} else {
			a.prompts.Store(set)
			a.analyzer.SetTemplate(set.Mood)
			slog.Info("prompt templates reloaded")
		}
	}

	if d.ChatChanged || d.PromptsChanged {
		a.pipeline.Update(chat.SettingsFromConfig(new, a.prompts.Load()))
		slog.Info("chat settings reloaded")
		if n := a.sessions.Capacity(); new.Chat.HistoryTurns != n {
			slog.Warn("chat.history_turns applies after a restart",
				"active", n, "configured", new.Chat.HistoryTurns)
		}
		if old.Chat.MoodWindow != new.Chat.MoodWindow {
			slog.Warn("chat.mood_window applies after a restart")
		}
	}

	if d.PersonaChanged {
		a.personas.Invalidate("")
		if old.Persona.Dir != new.Persona.Dir || old.Persona.Default != new.Persona.Default {
			slog.Warn("persona dir and default apply after a restart")
		}
	}

	if len(d.RestartRequired) > 0 {
		slog.Warn("config sections changed that need a restart", "sections", d.RestartRequired)
	}
}

// SlogLevel converts a config log level.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown disconnects the platform, drains background tasks and closes
// the remaining subsystems. If ctx expires first the remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.platform.Close(); err != nil {
			slog.Warn("discord close error", "err", err)
		}
		if a.health != nil {
			if err := a.health.Shutdown(ctx); err != nil {
				slog.Warn("health server shutdown error", "err", err)
			}
		}
		if err := a.tasks.Shutdown(ctx); err != nil {
			slog.Warn("background tasks did not finish", "running", a.tasks.Running(), "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type unavailable struct{}

func (unavailable) Generate(context.Context, string) (string, error) { return "", ErrNoLLM }

func deref(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
