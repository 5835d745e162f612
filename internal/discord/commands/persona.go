package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/glyphchat/internal/discord"
	"github.com/MrWong99/glyphchat/internal/persona"
)

// PersonaCatalog lists and loads persona profiles.
type PersonaCatalog interface {
	List() ([]string, error)
	Load(ctx context.Context, name string) (*persona.Profile, error)
	Current(ctx context.Context) (*persona.Profile, error)
}

// PersonaSelector persists the server's persona choice.
type PersonaSelector interface {
	SetCurrentPersona(ctx context.Context, name string) error
}

// PersonaCommands handles the /persona command group.
type PersonaCommands struct {
	perms    *discord.PermissionChecker
	catalog  PersonaCatalog
	selector PersonaSelector
}

// NewPersonaCommands creates a PersonaCommands handler.
func NewPersonaCommands(perms *discord.PermissionChecker, catalog PersonaCatalog, selector PersonaSelector) *PersonaCommands {
	return &PersonaCommands{perms: perms, catalog: catalog, selector: selector}
}

// Register registers all /persona subcommands with the router.
func (pc *PersonaCommands) Register(router *discord.CommandRouter) {
	def := pc.Definition()
	router.RegisterCommand("persona/use", def, pc.handleUse)
	router.RegisterCommand("persona/show", def, pc.handleShow)
	router.RegisterCommand("persona/list", def, pc.handleList)
	router.RegisterAutocomplete("persona/use", pc.handleAutocomplete)
}

// Definition returns the /persona ApplicationCommand for Discord registration.
func (pc *PersonaCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "persona",
		Description: "Choose who the bot speaks as",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "use",
				Description: "Switch to another persona",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:         "name",
						Description:  "Persona name",
						Type:         discordgo.ApplicationCommandOptionString,
						Required:     true,
						Autocomplete: true,
					},
				},
			},
			{
				Name:        "show",
				Description: "Show the active persona",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "list",
				Description: "List available personas",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	}
}

func (pc *PersonaCommands) handleUse(s discord.Session, i *discordgo.InteractionCreate) {
	if !pc.perms.IsAdmin(i) {
		discord.RespondEphemeral(s, i, "You need the admin role to change the persona.")
		return
	}
	name := stringOption(i, "name")
	if name == "" {
		discord.RespondEphemeral(s, i, "Please give a persona name.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	p, err := pc.catalog.Load(ctx, name)
	switch {
	case errors.Is(err, persona.ErrNotFound), errors.Is(err, persona.ErrInvalidName):
		discord.RespondEphemeral(s, i, fmt.Sprintf("There is no persona called `%s`. Try `/persona list`.", name))
		return
	case err != nil:
		slog.Warn("persona: load failed", "name", name, "err", err)
		discord.RespondError(s, i, err)
		return
	}

	if err := pc.selector.SetCurrentPersona(ctx, p.Name); err != nil {
		slog.Error("persona: saving selection failed", "name", p.Name, "err", err)
		discord.RespondError(s, i, err)
		return
	}
	userID, _ := interactionUser(i)
	slog.Info("persona: switched", "name", p.Name, "by", userID)
	discord.RespondEphemeral(s, i, fmt.Sprintf("Now speaking as **%s**.", p.Name))
}

func (pc *PersonaCommands) handleShow(s discord.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	p, err := pc.catalog.Current(ctx)
	if err != nil {
		if errors.Is(err, persona.ErrNoneSelected) || errors.Is(err, persona.ErrNotFound) {
			discord.RespondEphemeral(s, i, "No persona is active. An admin can pick one with `/persona use`.")
			return
		}
		discord.RespondError(s, i, err)
		return
	}

	desc := p.Description
	if desc == "" {
		desc = "No description."
	}
	discord.RespondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       p.Name,
		Description: desc,
		Color:       embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Character", Value: discord.Truncate(p.Settings.CharSettings, 1024)},
		},
	})
}

func (pc *PersonaCommands) handleList(s discord.Session, i *discordgo.InteractionCreate) {
	names, err := pc.catalog.List()
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}
	if len(names) == 0 {
		discord.RespondEphemeral(s, i, "No personas are installed.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	current := ""
	if p, err := pc.catalog.Current(ctx); err == nil {
		current = p.Name
	}

	var b strings.Builder
	b.WriteString("**Personas**\n")
	for _, name := range names {
		line := "- " + name
		if name == current {
			line += " (active)"
		}
		if p, err := pc.catalog.Load(ctx, name); err == nil && p.Description != "" {
			line += ": " + p.Description
		}
		b.WriteString(line + "\n")
	}
	discord.RespondEphemeral(s, i, b.String())
}

func (pc *PersonaCommands) handleAutocomplete(s discord.Session, i *discordgo.InteractionCreate) {
	names, err := pc.catalog.List()
	if err != nil {
		slog.Debug("persona: autocomplete list failed", "err", err)
	}
	partial := focusedValue(i)
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, name := range names {
		if partial != "" && !strings.HasPrefix(strings.ToLower(name), partial) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name})
		if len(choices) >= maxChoices {
			break
		}
	}
	discord.RespondChoices(s, i, choices)
}
