// Package recall searches the long-term message log on behalf of the chat
// pipeline and keeps the log fed with every observed message.
//
// Queries are embedded when an embedding provider is configured and fall back
// to keyword search when embedding fails or is unavailable. A service built
// without a log answers every search with no hits, so a deployment without
// long-term memory degrades to the none placeholder instead of failing.
package recall

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/glyphchat/internal/observe"
	"github.com/MrWong99/glyphchat/pkg/memory"
	"github.com/MrWong99/glyphchat/pkg/provider/embeddings"
)

// Service wraps a [memory.MessageLog] with query embedding and formatting.
// It is safe for concurrent use.
type Service struct {
	log      memory.MessageLog
	embedder embeddings.Provider
	limit    int
	metrics  *observe.Metrics
}

// Option configures a [Service].
type Option func(*Service)

// WithEmbedder embeds stored messages and queries with p.
func WithEmbedder(p embeddings.Provider) Option {
	return func(s *Service) { s.embedder = p }
}

// WithLimit caps results per search. Non-positive values keep
// [memory.DefaultLimit].
func WithLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithMetrics records embedding calls on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New returns a Service over log. log may be nil.
func New(log memory.MessageLog, opts ...Option) *Service {
	s := &Service{log: log, limit: memory.DefaultLimit}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enabled reports whether a message log is attached.
func (s *Service) Enabled() bool { return s.log != nil }

// Record stores msg, embedding its content first when possible. An embedding
// failure is logged and the message stored without a vector so keyword
// search still finds it. Blank messages are skipped.
func (s *Service) Record(ctx context.Context, msg memory.Message) error {
	if s.log == nil || strings.TrimSpace(msg.Content) == "" {
		return nil
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if len(msg.Embedding) == 0 {
		vec, err := s.embed(ctx, msg.Content)
		if err != nil {
			observe.Logger(ctx).Debug("recall: storing message without embedding", "message_id", msg.ID, "err", err)
		}
		msg.Embedding = vec
	}
	if err := s.log.Append(ctx, msg); err != nil {
		return fmt.Errorf("recall: record %s: %w", msg.ID, err)
	}
	return nil
}

// Channel searches one channel for messages relevant to query. A non-empty
// authorID restricts the search to that author's messages.
func (s *Service) Channel(ctx context.Context, query, guildID, channelID, authorID string) ([]memory.Hit, error) {
	return s.search(ctx, memory.Query{
		Text:      query,
		GuildID:   guildID,
		ChannelID: channelID,
		AuthorID:  authorID,
	})
}

// Server searches every channel of a guild except excludeChannelID.
func (s *Service) Server(ctx context.Context, query, guildID, excludeChannelID string) ([]memory.Hit, error) {
	return s.search(ctx, memory.Query{
		Text:             query,
		GuildID:          guildID,
		ExcludeChannelID: excludeChannelID,
	})
}

func (s *Service) search(ctx context.Context, q memory.Query) ([]memory.Hit, error) {
	if s.log == nil || strings.TrimSpace(q.Text) == "" {
		return nil, nil
	}
	q.Limit = s.limit

	vec, err := s.embed(ctx, q.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("recall: embed query: %w", err)
		}
		observe.Logger(ctx).Debug("recall: falling back to keyword search", "err", err)
	}
	q.Embedding = vec

	hits, err := s.log.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("recall: search: %w", err)
	}
	return hits, nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, nil
	}
	start := time.Now()
	vec, err := s.embedder.Embed(ctx, text)
	if s.metrics != nil {
		s.metrics.RecordProviderCall(ctx, s.embedder.ModelID(), "embeddings", time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return vec, nil
}
