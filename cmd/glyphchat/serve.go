package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrWong99/glyphchat/internal/app"
	"github.com/MrWong99/glyphchat/internal/config"
	"github.com/MrWong99/glyphchat/internal/observe"
)

// shutdownTimeout bounds the graceful shutdown after a signal.
const shutdownTimeout = 15 * time.Second

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and answer messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func serve(parent context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	logger, closeLog := newLogger(cfg.Server.LogFile, &level)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("glyphchat starting",
		"version", version,
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(ctx, cfg, reg)
	if err != nil {
		return err
	}

	printStartupSummary(out, cfg)

	application, err := app.New(ctx, cfg, providers, app.WithLevelVar(&level))
	if err != nil {
		if providers.MessageLog != nil {
			providers.MessageLog.Close()
		}
		return fmt.Errorf("initialise application: %w", err)
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(configPath, application.Reload)
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("goodbye")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// newLogger logs text to stderr and, when a log file is configured, JSON to
// a rotating file. The returned func closes the file.
func newLogger(lf config.LogFileConfig, level *slog.LevelVar) (*slog.Logger, func()) {
	opts := &slog.HandlerOptions{Level: level}
	stderr := slog.NewTextHandler(os.Stderr, opts)
	if lf.Path == "" {
		return slog.New(stderr), func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   lf.Path,
		MaxSize:    lf.MaxSizeMB,
		MaxBackups: lf.MaxBackups,
		MaxAge:     lf.MaxAgeDays,
		Compress:   lf.Compress,
	}
	file := slog.NewJSONHandler(rotator, opts)
	return slog.New(fanout{stderr, file}), func() { rotator.Close() }
}

// fanout sends every record to each handler.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config) {
	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgHiBlack)
	on := color.New(color.FgGreen)
	off := color.New(color.FgYellow)

	row := func(name, value string, enabled bool) {
		label.Fprintf(w, "  %-12s ", name)
		if enabled {
			on.Fprintln(w, value)
		} else {
			off.Fprintln(w, value)
		}
	}

	title.Fprintln(w, "glyphchat startup summary")
	row("LLM", providerLabel(cfg.Providers.LLM), cfg.Providers.LLM.Name != "")
	row("Fallbacks", fmt.Sprintf("%d", len(cfg.Providers.LLMFallbacks)), len(cfg.Providers.LLMFallbacks) > 0)
	row("Embeddings", providerLabel(cfg.Providers.Embeddings), cfg.Providers.Embeddings.Name != "")
	row("Message log", string(cfg.Memory.Backend), cfg.Memory.Backend != config.MemoryNone)
	row("Web search", enabledLabel(cfg.WebSearch.Enabled()), cfg.WebSearch.Enabled())
	row("Discord", enabledLabel(cfg.Discord.Token != ""), cfg.Discord.Token != "")
	row("Personas", cfg.Persona.Dir, cfg.Persona.Dir != "")
	if cfg.Server.ListenAddr != "" {
		row("Listen addr", cfg.Server.ListenAddr, true)
	}
}

func providerLabel(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model == "":
		return e.Name
	default:
		return e.Name + " / " + e.Model
	}
}

func enabledLabel(ok bool) string {
	if ok {
		return "enabled"
	}
	return "(disabled)"
}
