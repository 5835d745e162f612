package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/glyphchat/internal/chat"
	"github.com/MrWong99/glyphchat/internal/discord"
	"github.com/MrWong99/glyphchat/internal/prompt"
)

// PromptSet returns the current prompt templates. It is consulted on every
// invocation so reloaded templates apply immediately.
type PromptSet func() *prompt.Set

// CreateCommands handles /create, which drafts an original character from a
// short concept.
type CreateCommands struct {
	gen     chat.Generator
	prompts PromptSet
	timeout time.Duration
}

// NewCreateCommands creates a CreateCommands handler.
func NewCreateCommands(gen chat.Generator, prompts PromptSet, timeout time.Duration) *CreateCommands {
	return &CreateCommands{gen: gen, prompts: prompts, timeout: timeoutOr(timeout)}
}

// Register registers /create with the router.
func (cc *CreateCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("create", cc.Definition(), cc.handle)
}

// Definition returns the /create ApplicationCommand for Discord registration.
func (cc *CreateCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "create",
		Description: "Generate an original character from a concept",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "concept",
				Description: "A short idea, e.g. \"retired dragon who runs a bakery\"",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
				MaxLength:   300,
			},
		},
	}
}

func (cc *CreateCommands) handle(s discord.Session, i *discordgo.InteractionCreate) {
	concept := stringOption(i, "concept")
	if concept == "" {
		discord.RespondEphemeral(s, i, "Please describe a concept.")
		return
	}
	discord.DeferReply(s, i, true)

	ctx, cancel := context.WithTimeout(context.Background(), cc.timeout)
	defer cancel()

	text, err := cc.Generate(ctx, concept)
	if err != nil {
		slog.Warn("create: generation failed", "err", err)
		discord.FollowUp(s, i, fmt.Sprintf("Sorry, I could not create a character this time. (%v)", err))
		return
	}
	discord.FollowUp(s, i, fmt.Sprintf("**Concept:** %s\n\n%s", concept, text))
}

// Generate renders the create template for concept and returns the model's
// trimmed answer.
func (cc *CreateCommands) Generate(ctx context.Context, concept string) (string, error) {
	p, err := cc.prompts().Create.Execute(prompt.Fields{prompt.FieldConcept: concept})
	if err != nil {
		return "", fmt.Errorf("create: render prompt: %w", err)
	}
	out, err := cc.gen.Generate(ctx, p)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("create: %w", chat.ErrEmptyReply)
	}
	return out, nil
}
