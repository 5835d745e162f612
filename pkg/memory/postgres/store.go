package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/glyphchat/pkg/memory"
)

var _ memory.MessageLog = (*Store)(nil)

// Store is the PostgreSQL-backed message log. It holds a single
// [pgxpool.Pool] and is safe for concurrent use.
type Store struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewStore creates a new Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the embedding model
// used to produce [memory.Message.Embedding] values.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool, dimensions: embeddingDimensions}, nil
}

// Append implements [memory.MessageLog]. A message whose ID already exists is
// replaced. An embedding of the wrong dimension is dropped so the message
// remains reachable through keyword search.
func (s *Store) Append(ctx context.Context, msg memory.Message) error {
	const q = `
		INSERT INTO chat_messages
		    (id, guild_id, channel_id, author_id, author_name, content, embedding, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
		    content     = EXCLUDED.content,
		    author_name = EXCLUDED.author_name,
		    embedding   = COALESCE(EXCLUDED.embedding, chat_messages.embedding)`

	var vec *pgvector.Vector
	if len(msg.Embedding) == s.dimensions {
		v := pgvector.NewVector(msg.Embedding)
		vec = &v
	}

	_, err := s.pool.Exec(ctx, q,
		msg.ID,
		msg.GuildID,
		msg.ChannelID,
		msg.AuthorID,
		msg.AuthorName,
		msg.Content,
		vec,
		msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres store: append: %w", err)
	}
	return nil
}

// Search implements [memory.MessageLog]. With an embedding it orders by
// ascending cosine distance and reports 1-distance as the score. Without one
// it runs a full-text query through plainto_tsquery and ranks by ts_rank.
func (s *Store) Search(ctx context.Context, q memory.Query) ([]memory.Hit, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var scoreExpr string
	var conditions []string
	switch {
	case len(q.Embedding) > 0:
		if len(q.Embedding) != s.dimensions {
			return nil, fmt.Errorf("postgres store: search: query has %d dimensions, index has %d", len(q.Embedding), s.dimensions)
		}
		p := next(pgvector.NewVector(q.Embedding))
		scoreExpr = "1 - (embedding <=> " + p + ")"
		conditions = append(conditions, "embedding IS NOT NULL")
	case strings.TrimSpace(q.Text) != "":
		p := next(q.Text)
		scoreExpr = "ts_rank(to_tsvector('simple', content), plainto_tsquery('simple', " + p + "))"
		conditions = append(conditions, "to_tsvector('simple', content) @@ plainto_tsquery('simple', "+p+")")
	default:
		return []memory.Hit{}, nil
	}

	if q.GuildID != "" {
		conditions = append(conditions, "guild_id = "+next(q.GuildID))
	}
	if q.ChannelID != "" {
		conditions = append(conditions, "channel_id = "+next(q.ChannelID))
	}
	if q.ExcludeChannelID != "" {
		conditions = append(conditions, "channel_id <> "+next(q.ExcludeChannelID))
	}
	if q.AuthorID != "" {
		conditions = append(conditions, "author_id = "+next(q.AuthorID))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = memory.DefaultLimit
	}
	limitArg := next(limit)

	sql := fmt.Sprintf(`
		SELECT id, guild_id, channel_id, author_id, author_name, content, posted_at,
		       %s AS score
		FROM   chat_messages
		WHERE  %s
		ORDER  BY score DESC, posted_at DESC
		LIMIT  %s`, scoreExpr, strings.Join(conditions, "\n  AND  "), limitArg)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: search: %w", err)
	}

	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Hit, error) {
		var h memory.Hit
		err := row.Scan(
			&h.Message.ID,
			&h.Message.GuildID,
			&h.Message.ChannelID,
			&h.Message.AuthorID,
			&h.Message.AuthorName,
			&h.Message.Content,
			&h.Message.Timestamp,
			&h.Score,
		)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if hits == nil {
		hits = []memory.Hit{}
	}
	return hits, nil
}

// Ping implements [memory.MessageLog].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Close implements [memory.MessageLog]. It releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
