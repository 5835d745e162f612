package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/glyphchat/internal/chat"
)

// typingInterval refreshes the typing indicator before Discord's ten second
// expiry.
const typingInterval = 8 * time.Second

// Transport implements [chat.Transport] on top of a Discord session.
type Transport struct {
	session  Session
	interval time.Duration
}

var _ chat.Transport = (*Transport)(nil)

// NewTransport returns a Transport that posts through s.
func NewTransport(s Session) *Transport {
	return &Transport{session: s, interval: typingInterval}
}

// Send posts text to channelID, split at the message length limit. Only user
// mentions are resolved so replies cannot ping @everyone or roles.
func (t *Transport) Send(ctx context.Context, channelID, text string) error {
	chunks := SplitMessage(text, MaxMessageLength)
	if len(chunks) == 0 {
		return fmt.Errorf("discord: send to %s: empty message", channelID)
	}
	for n, chunk := range chunks {
		_, err := t.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Content: chunk,
			AllowedMentions: &discordgo.MessageAllowedMentions{
				Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
			},
		}, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("discord: send chunk %d/%d to %s: %w", n+1, len(chunks), channelID, err)
		}
	}
	return nil
}

// Typing shows the typing indicator in channelID and refreshes it until stop
// is called or ctx ends. stop is idempotent and waits for the refresher.
func (t *Transport) Typing(ctx context.Context, channelID string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			if err := t.session.ChannelTyping(channelID, discordgo.WithContext(ctx)); err != nil && ctx.Err() == nil {
				slog.Debug("discord: typing indicator failed", "channel", channelID, "err", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
