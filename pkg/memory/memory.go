// Package memory defines the long-term message log used by glyphchat to
// recall past conversation.
//
// Every channel message the bot observes is appended to a [MessageLog]. When
// composing a reply, the chat pipeline searches the log either within the
// current channel (optionally restricted to one author) or across every
// channel of the server. Searches are semantic when the query carries an
// embedding and fall back to keyword matching otherwise.
//
// All interfaces are public so that external packages can supply alternative
// storage backends without depending on glyphchat internals.
//
// Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a log that has been closed.
var ErrClosed = errors.New("memory: message log closed")

// Message is one chat message as stored in the log.
type Message struct {
	// ID is the platform message identifier. Appending a message whose ID
	// already exists replaces the stored copy.
	ID string

	// GuildID is the server the message was posted in.
	GuildID string

	// ChannelID is the channel the message was posted in.
	ChannelID string

	// AuthorID identifies the author.
	AuthorID string

	// AuthorName is the author's display name at the time of posting.
	AuthorName string

	// Content is the message text.
	Content string

	// Embedding is the optional vector representation of Content. Messages
	// without an embedding are still found by keyword search.
	Embedding []float32

	// Timestamp is when the message was posted.
	Timestamp time.Time
}

// Query narrows a search. All non-zero filter fields are applied as AND
// conditions.
type Query struct {
	// Text is the keyword query. It is used when Embedding is nil.
	Text string

	// Embedding is the query vector. When set, results are ordered by
	// cosine similarity.
	Embedding []float32

	// GuildID restricts results to one server.
	GuildID string

	// ChannelID restricts results to one channel.
	ChannelID string

	// ExcludeChannelID drops results from one channel. Cross-channel
	// searches use it to skip the channel already covered by the local search.
	ExcludeChannelID string

	// AuthorID restricts results to one author.
	AuthorID string

	// Limit caps the number of results. Zero lets the implementation pick.
	Limit int
}

// Hit pairs a stored message with its relevance score. Higher scores are
// more relevant. For semantic searches Score is the cosine similarity.
type Hit struct {
	Message Message
	Score   float64
}

// MessageLog is the long-term message store.
type MessageLog interface {
	// Append stores msg.
	Append(ctx context.Context, msg Message) error

	// Search returns the messages matching q, most relevant first.
	// An empty result is not an error.
	Search(ctx context.Context, q Query) ([]Hit, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases held resources.
	Close() error
}

// DefaultLimit is applied by implementations when [Query.Limit] is zero.
const DefaultLimit = 5
