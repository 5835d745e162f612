package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/glyphchat/internal/chat"
	"github.com/MrWong99/glyphchat/internal/discord"
	"github.com/MrWong99/glyphchat/internal/mood"
)

// Embed sidebar colours.
const (
	embedColor         = 0x5865F2
	embedColorPositive = 0x2ECC71
	embedColorNegative = 0xE74C3C
	embedColorNeutral  = 0x95A5A6
)

// MoodCommands handles /mood, which shows the channel's current mood.
type MoodCommands struct {
	moods chat.MoodReader
}

// NewMoodCommands creates a MoodCommands handler.
func NewMoodCommands(moods chat.MoodReader) *MoodCommands {
	return &MoodCommands{moods: moods}
}

// Register registers /mood with the router.
func (mc *MoodCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("mood", mc.Definition(), mc.handle)
}

// Definition returns the /mood ApplicationCommand for Discord registration.
func (mc *MoodCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "mood",
		Description: "Show how this channel's conversation feels lately",
	}
}

func (mc *MoodCommands) handle(s discord.Session, i *discordgo.InteractionCreate) {
	r := mc.moods.Current(i.ChannelID)
	if r.Samples == 0 {
		discord.RespondEphemeral(s, i, "I have not read enough of this channel to tell its mood yet.")
		return
	}
	discord.RespondEmbed(s, i, MoodEmbed(r))
}

// MoodEmbed renders a reading as an embed.
func MoodEmbed(r mood.Reading) *discordgo.MessageEmbed {
	color := embedColorNeutral
	switch r.Category {
	case mood.Positive:
		color = embedColorPositive
	case mood.Negative:
		color = embedColorNegative
	}
	return &discordgo.MessageEmbed{
		Title: "Channel mood",
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Mood", Value: r.Category.String(), Inline: true},
			{Name: "Average", Value: fmt.Sprintf("%+.2f", r.Average), Inline: true},
			{Name: "Messages", Value: fmt.Sprintf("%d", r.Samples), Inline: true},
		},
	}
}
