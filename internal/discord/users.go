package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/patrickmn/go-cache"

	"github.com/MrWong99/glyphchat/internal/chat"
)

// ErrUserNotFound is returned when Discord knows no user with the given ID.
var ErrUserNotFound = errors.New("discord: user not found")

// Lookup results are cached briefly; display names rarely change mid-conversation.
const (
	userCacheTTL     = 10 * time.Minute
	userCacheCleanup = 20 * time.Minute
)

// Directory implements [chat.UserDirectory]. Guild members are preferred so
// server nicknames are used; users who left the guild fall back to their
// global profile.
type Directory struct {
	session Session
	cache   *cache.Cache
}

var _ chat.UserDirectory = (*Directory)(nil)

// NewDirectory returns a Directory backed by s.
func NewDirectory(s Session) *Directory {
	return &Directory{session: s, cache: cache.New(userCacheTTL, userCacheCleanup)}
}

// LookupUser resolves userID to a display name.
func (d *Directory) LookupUser(ctx context.Context, guildID, userID string) (chat.User, error) {
	if userID == "" {
		return chat.User{}, ErrUserNotFound
	}
	key := guildID + "/" + userID
	if v, ok := d.cache.Get(key); ok {
		return v.(chat.User), nil
	}

	u, err := d.lookup(ctx, guildID, userID)
	if err != nil {
		return chat.User{}, err
	}
	d.cache.SetDefault(key, u)
	return u, nil
}

func (d *Directory) lookup(ctx context.Context, guildID, userID string) (chat.User, error) {
	if guildID != "" {
		m, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if err == nil && m.User != nil {
			return memberUser(m), nil
		}
		if err != nil && !isNotFound(err) {
			return chat.User{}, fmt.Errorf("discord: lookup member %s: %w", userID, err)
		}
	}

	u, err := d.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return chat.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return chat.User{}, fmt.Errorf("discord: lookup user %s: %w", userID, err)
	}
	return toUser(u, ""), nil
}

func isNotFound(err error) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}

func memberUser(m *discordgo.Member) chat.User {
	return toUser(m.User, m.Nick)
}

// toUser picks the most specific display name: guild nickname, then global
// display name, then username.
func toUser(u *discordgo.User, nick string) chat.User {
	name := nick
	if name == "" {
		name = u.GlobalName
	}
	if name == "" {
		name = u.Username
	}
	return chat.User{ID: u.ID, Name: name, Bot: u.Bot}
}
