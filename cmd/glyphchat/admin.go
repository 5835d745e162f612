package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/glyphchat/internal/config"
	"github.com/MrWong99/glyphchat/internal/facts"
	"github.com/MrWong99/glyphchat/internal/mood"
	"github.com/MrWong99/glyphchat/internal/persona"
)

// scopeFlags selects a note scope from --user or --server.
type scopeFlags struct {
	user   string
	server bool
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "Discord user ID the note is about")
	cmd.Flags().BoolVar(&f.server, "server", false, "store a server-wide note")
	cmd.MarkFlagsMutuallyExclusive("user", "server")
	cmd.MarkFlagsOneRequired("user", "server")
}

func (f *scopeFlags) scope() facts.Scope {
	if f.server {
		return facts.ServerScope()
	}
	return facts.UserScope(f.user)
}

func noteStore(cfg *config.Config) *facts.FileStore {
	return facts.NewFileStore(cfg.Data.ResolvePath(cfg.Data.MemoryFile))
}

// ── notes ─────────────────────────────────────────────────────────────────────

func newNotesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "notes", Short: "Inspect and add remembered notes"}

	var addScope scopeFlags
	add := &cobra.Command{
		Use:   "add TEXT",
		Short: "Remember a note, embedding it with the configured provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return addNote(cmd.Context(), cmd.OutOrStdout(), cfg, addScope.scope(), strings.Join(args, " "))
		},
	}
	addScope.register(add)

	var listScope scopeFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List the notes of a user or the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			notes, err := noteStore(cfg).Notes(cmd.Context(), listScope.scope())
			if err != nil {
				return err
			}
			return printNotes(cmd.OutOrStdout(), listScope.scope(), notes)
		},
	}
	listScope.register(list)

	cmd.AddCommand(add, list)
	return cmd
}

func addNote(ctx context.Context, w io.Writer, cfg *config.Config, scope facts.Scope, text string) error {
	note := facts.Note{Text: strings.TrimSpace(text)}
	if cfg.Providers.Embeddings.Name != "" {
		reg := config.NewRegistry()
		registerBuiltinProviders(reg)
		emb, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return fmt.Errorf("create embeddings provider: %w", err)
		}
		vec, err := emb.Embed(ctx, note.Text)
		if err != nil {
			return fmt.Errorf("embed note: %w", err)
		}
		note.Embedding = vec
	}
	if err := noteStore(cfg).AddNote(ctx, scope, note); err != nil {
		return err
	}
	if note.Embedding == nil {
		fmt.Fprintf(w, "Noted for %s (no embeddings provider configured, it will not be recalled).\n", scope)
		return nil
	}
	fmt.Fprintf(w, "Noted for %s.\n", scope)
	return nil
}

func printNotes(w io.Writer, scope facts.Scope, notes []facts.Note) error {
	if len(notes) == 0 {
		fmt.Fprintf(w, "No notes for %s.\n", scope)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tEMBEDDED\tTEXT")
	for i, n := range notes {
		fmt.Fprintf(tw, "%d\t%v\t%s\n", i+1, n.Embedding != nil, n.Text)
	}
	return tw.Flush()
}

// ── persona ───────────────────────────────────────────────────────────────────

func personaLoader(cfg *config.Config) (*persona.Loader, *facts.FileStore) {
	store := noteStore(cfg)
	return persona.NewLoader(cfg.Persona.Dir,
		persona.WithDefault(cfg.Persona.Default),
		persona.WithSelector(store),
	), store
}

func newPersonaCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "persona", Short: "List, show and select personas"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List installed personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			loader, _ := personaLoader(cfg)
			names, err := loader.List()
			if err != nil {
				return err
			}
			current := ""
			if p, err := loader.Current(cmd.Context()); err == nil {
				current = p.Name
			}
			w := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintf(w, "No personas in %s.\n", loader.Dir())
				return nil
			}
			for _, n := range names {
				marker := " "
				if n == current {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %s\n", marker, n)
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show [NAME]",
		Short: "Print a persona, the active one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			loader, _ := personaLoader(cfg)
			var p *persona.Profile
			if len(args) == 1 {
				p, err = loader.Load(cmd.Context(), args[0])
			} else {
				p, err = loader.Current(cmd.Context())
			}
			if errors.Is(err, persona.ErrNoneSelected) {
				return errors.New("no persona selected and no default configured")
			}
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Name: %s\n", p.Name)
			if p.Description != "" {
				fmt.Fprintf(w, "Description: %s\n", p.Description)
			}
			fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(p.Settings.CharSettings))
			return nil
		},
	}

	use := &cobra.Command{
		Use:   "use NAME",
		Short: "Select the persona the bot speaks as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			loader, store := personaLoader(cfg)
			p, err := loader.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := store.SetCurrentPersona(cmd.Context(), p.Name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Now speaking as %s.\n", p.Name)
			return nil
		},
	}

	cmd.AddCommand(list, show, use)
	return cmd
}

// ── mood ──────────────────────────────────────────────────────────────────────

func newMoodCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "mood", Short: "Inspect channel moods"}

	show := &cobra.Command{
		Use:   "show [CHANNEL_ID...]",
		Short: "Print the mood of the given channels, or of every known channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tracker := mood.NewTracker(cmd.Context(),
				mood.NewFileStore(cfg.Data.ResolvePath(cfg.Data.MoodFile)),
				mood.WithWindow(cfg.Chat.MoodWindow),
				mood.WithThresholds(*cfg.Chat.PositiveThreshold, *cfg.Chat.NegativeThreshold),
			)
			channels := args
			if len(channels) == 0 {
				channels = tracker.Channels()
			}
			return printMoods(cmd.OutOrStdout(), tracker, channels)
		},
	}

	cmd.AddCommand(show)
	return cmd
}

func printMoods(w io.Writer, tracker *mood.Tracker, channels []string) error {
	if len(channels) == 0 {
		fmt.Fprintln(w, "No channel moods recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tMOOD\tAVERAGE\tMESSAGES\tRECENT")
	for _, ch := range channels {
		r := tracker.Current(ch)
		recent := make([]string, 0, r.Samples)
		for _, s := range tracker.Scores(ch) {
			recent = append(recent, fmt.Sprintf("%+.2f", s))
		}
		fmt.Fprintf(tw, "%s\t%s\t%+.2f\t%d\t%s\n", ch, r.Category, r.Average, r.Samples, strings.Join(recent, " "))
	}
	return tw.Flush()
}
