package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/glyphchat/internal/chat"
)

// ConvertMessage maps a gateway message to the pipeline's message type.
// Guild nicknames are used for the author when the gateway includes them.
func ConvertMessage(m *discordgo.Message) chat.Message {
	msg := chat.Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		nick := ""
		if m.Member != nil {
			nick = m.Member.Nick
		}
		msg.Author = toUser(m.Author, nick)
	}
	for _, u := range m.Mentions {
		if u == nil {
			continue
		}
		msg.Mentions = append(msg.Mentions, toUser(u, ""))
	}
	return msg
}
