package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/glyphchat/internal/chat"
	"github.com/MrWong99/glyphchat/internal/discord"
	"github.com/MrWong99/glyphchat/internal/facts"
)

// NoteStore persists remembered notes.
type NoteStore interface {
	AddNote(ctx context.Context, scope facts.Scope, n facts.Note) error
}

// Note scopes accepted by /note add.
const (
	scopeMe     = "me"
	scopeServer = "server"
)

// NoteCommands handles /note, which teaches the bot facts about the invoking
// user or the whole server.
type NoteCommands struct {
	perms    *discord.PermissionChecker
	store    NoteStore
	embedder chat.Embedder
	timeout  time.Duration
}

// NewNoteCommands creates a NoteCommands handler. embedder may be nil, in
// which case notes are stored without a vector and never ranked.
func NewNoteCommands(perms *discord.PermissionChecker, store NoteStore, embedder chat.Embedder, timeout time.Duration) *NoteCommands {
	return &NoteCommands{perms: perms, store: store, embedder: embedder, timeout: timeoutOr(timeout)}
}

// Register registers /note add with the router.
func (nc *NoteCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("note/add", nc.Definition(), nc.handleAdd)
}

// Definition returns the /note ApplicationCommand for Discord registration.
func (nc *NoteCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "note",
		Description: "Teach the bot something to remember",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "add",
				Description: "Remember a fact",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "text",
						Description: "The fact to remember",
						Type:        discordgo.ApplicationCommandOptionString,
						Required:    true,
						MaxLength:   500,
					},
					{
						Name:        "scope",
						Description: "Who the fact is about (default: you)",
						Type:        discordgo.ApplicationCommandOptionString,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "me", Value: scopeMe},
							{Name: "server", Value: scopeServer},
						},
					},
				},
			},
		},
	}
}

func (nc *NoteCommands) handleAdd(s discord.Session, i *discordgo.InteractionCreate) {
	text := stringOption(i, "text")
	if text == "" {
		discord.RespondEphemeral(s, i, "The note must not be empty.")
		return
	}

	userID, _ := interactionUser(i)
	scope := facts.UserScope(userID)
	if stringOption(i, "scope") == scopeServer {
		if !nc.perms.IsAdmin(i) {
			discord.RespondEphemeral(s, i, "You need the admin role to add server notes.")
			return
		}
		scope = facts.ServerScope()
	} else if userID == "" {
		discord.RespondEphemeral(s, i, "Could not tell who you are.")
		return
	}

	discord.DeferReply(s, i, false)

	ctx, cancel := context.WithTimeout(context.Background(), nc.timeout)
	defer cancel()

	note := facts.Note{Text: text}
	embedded := false
	if nc.embedder != nil {
		vec, err := nc.embedder.Embed(ctx, text)
		if err != nil {
			slog.Warn("note: embedding failed, storing without vector", "scope", scope.String(), "err", err)
		} else {
			note.Embedding = vec
			embedded = true
		}
	}

	if err := nc.store.AddNote(ctx, scope, note); err != nil {
		slog.Error("note: save failed", "scope", scope.String(), "err", err)
		discord.FollowUp(s, i, fmt.Sprintf("Error: %v", err))
		return
	}

	msg := "Noted."
	if !embedded {
		msg += " (It will not be recalled until embeddings are available.)"
	}
	discord.FollowUp(s, i, msg)
}
