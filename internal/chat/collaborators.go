package chat

import (
	"context"

	"github.com/MrWong99/glyphchat/internal/facts"
	"github.com/MrWong99/glyphchat/internal/mood"
	"github.com/MrWong99/glyphchat/internal/persona"
	"github.com/MrWong99/glyphchat/pkg/memory"
)

// Transport delivers replies and the typing indicator.
type Transport interface {
	// Send posts text to a channel. Implementations split text that
	// exceeds the platform's message limit.
	Send(ctx context.Context, channelID, text string) error

	// Typing shows the typing indicator in channelID until the returned
	// function is called or ctx ends.
	Typing(ctx context.Context, channelID string) (stop func())
}

// UserDirectory resolves user IDs named by the meta-decision.
type UserDirectory interface {
	LookupUser(ctx context.Context, guildID, userID string) (User, error)
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder computes query vectors for fact ranking.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Recall searches and feeds the long-term message log.
type Recall interface {
	Channel(ctx context.Context, query, guildID, channelID, authorID string) ([]memory.Hit, error)
	Server(ctx context.Context, query, guildID, excludeChannelID string) ([]memory.Hit, error)
	Record(ctx context.Context, msg memory.Message) error
}

// PersonaSource resolves the persona the server currently speaks as.
type PersonaSource interface {
	Current(ctx context.Context) (*persona.Profile, error)
}

// NoteSource returns the stored notes of a scope.
type NoteSource interface {
	Notes(ctx context.Context, scope facts.Scope) ([]facts.Note, error)
}

// MoodReader returns a channel's current mood.
type MoodReader interface {
	Current(channelID string) mood.Reading
}

// MoodAnalyzer scores a message and records it in the channel's mood.
type MoodAnalyzer interface {
	Track(ctx context.Context, channelID, text string) (mood.Reading, error)
}
