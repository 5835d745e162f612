// Package commands implements the bot's slash commands.
package commands

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// DefaultTimeout bounds the work behind a single command.
const DefaultTimeout = 60 * time.Second

// maxChoices is Discord's autocomplete limit.
const maxChoices = 25

// subcommandOptions extracts the options from the first subcommand in an
// interaction's application command data. Top-level options are returned
// for commands without subcommands.
func subcommandOptions(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandInteractionDataOption {
	data := i.ApplicationCommandData()
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return data.Options[0].Options
	}
	return data.Options
}

// stringOption returns the trimmed value of the named string option.
func stringOption(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range subcommandOptions(i) {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return strings.TrimSpace(opt.StringValue())
		}
	}
	return ""
}

// focusedValue returns the lower-cased partial input of the focused option
// in an autocomplete interaction.
func focusedValue(i *discordgo.InteractionCreate) string {
	for _, opt := range subcommandOptions(i) {
		if opt.Focused {
			return strings.ToLower(strings.TrimSpace(opt.StringValue()))
		}
	}
	return ""
}

// interactionUser extracts the invoking user, handling both guild (Member)
// and DM (User) contexts.
func interactionUser(i *discordgo.InteractionCreate) (id, name string) {
	var u *discordgo.User
	nick := ""
	switch {
	case i.Member != nil && i.Member.User != nil:
		u, nick = i.Member.User, i.Member.Nick
	case i.User != nil:
		u = i.User
	default:
		return "", ""
	}
	switch {
	case nick != "":
		name = nick
	case u.GlobalName != "":
		name = u.GlobalName
	default:
		name = u.Username
	}
	return u.ID, name
}

func timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}
