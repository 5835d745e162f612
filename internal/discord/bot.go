// Package discord connects the chat pipeline to Discord: it turns gateway
// messages into pipeline input, delivers replies, resolves users and serves
// the slash commands.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/glyphchat/internal/chat"
	"github.com/MrWong99/glyphchat/internal/config"
)

// Intents requested from the gateway. Message content is a privileged
// intent and must be enabled for the application in the developer portal.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

// MessageHandler consumes converted gateway messages.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg chat.Message) chat.Outcome
	SetSelfID(id string)
}

// Bot owns the Discord gateway session, the command router and the
// message dispatch into the chat pipeline.
type Bot struct {
	session   *discordgo.Session
	router    *CommandRouter
	perms     *PermissionChecker
	guildID   string
	transport *Transport
	users     *Directory

	handler   atomic.Pointer[handlerBox]
	ctx       context.Context
	connected atomic.Bool

	registered []*discordgo.ApplicationCommand
	closeOnce  sync.Once
}

type handlerBox struct{ h MessageHandler }

// New creates a Bot for cfg. The gateway is not opened until [Bot.Run].
func New(cfg config.DiscordConfig) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord: token must not be empty")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = Intents

	b := &Bot{
		session:   session,
		router:    NewCommandRouter(),
		perms:     NewPermissionChecker(cfg.AdminRoleID),
		guildID:   cfg.GuildID,
		transport: NewTransport(session),
		users:     NewDirectory(session),
		ctx:       context.Background(),
	}

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) { b.onReady(r) })
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) { b.connected.Store(false) })
	session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { b.dispatch(m.Message) })
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) { b.router.Handle(s, i) })
	return b, nil
}

// Router returns the command router for registering slash commands.
func (b *Bot) Router() *CommandRouter { return b.router }

// Permissions returns the admin permission checker.
func (b *Bot) Permissions() *PermissionChecker { return b.perms }

// Transport returns the reply transport backed by this bot's session.
func (b *Bot) Transport() *Transport { return b.transport }

// Users returns the user directory backed by this bot's session.
func (b *Bot) Users() *Directory { return b.users }

// GuildID returns the guild slash commands are registered in, or "" for
// global registration.
func (b *Bot) GuildID() string { return b.guildID }

// Connected reports whether the gateway session is ready.
func (b *Bot) Connected() bool { return b.connected.Load() }

// Handle sets the receiver of guild messages. Messages arriving before a
// handler is set are dropped.
func (b *Bot) Handle(h MessageHandler) {
	b.handler.Store(&handlerBox{h: h})
	if u := b.session.State.User; u != nil {
		h.SetSelfID(u.ID)
	}
}

// Run opens the gateway, registers slash commands and blocks until ctx is
// cancelled. The session is closed before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	defer b.Close()

	appID := b.session.State.User.ID
	cmds, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, b.router.ApplicationCommands(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: register commands: %w", err)
	}
	b.registered = cmds
	slog.Info("discord: bot running", "commands", len(cmds), "guild_id", b.guildID)

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from the gateway. Guild commands registered by Run are
// removed; global ones are kept.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if b.guildID != "" && b.session.State.User != nil {
			appID := b.session.State.User.ID
			for _, cmd := range b.registered {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "command", cmd.Name, "err", err)
				}
			}
		}
		b.connected.Store(false)
		closeErr = b.session.Close()
	})
	return closeErr
}

func (b *Bot) onReady(r *discordgo.Ready) {
	b.connected.Store(true)
	if r.User == nil {
		return
	}
	slog.Info("discord: session ready", "user", r.User.Username, "guilds", len(r.Guilds))
	if box := b.handler.Load(); box != nil {
		box.h.SetSelfID(r.User.ID)
	}
}

// dispatch hands a gateway message to the pipeline. Discord already runs
// each event handler on its own goroutine.
func (b *Bot) dispatch(m *discordgo.Message) {
	box := b.handler.Load()
	if box == nil || m == nil || m.Author == nil {
		return
	}
	out := box.h.HandleMessage(b.ctx, ConvertMessage(m))
	slog.Debug("discord: message handled", "channel", m.ChannelID, "outcome", out.Label(), "state", out.State)
}
