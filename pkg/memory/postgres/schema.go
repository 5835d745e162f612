// Package postgres provides a PostgreSQL-backed [memory.MessageLog].
//
// Messages live in a single table with a pgvector HNSW index for cosine
// similarity search and a GIN index for full-text keyword search. The
// pgvector extension must be available in the target database; [Migrate]
// installs it automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Append(ctx, msg)
//	hits, _ := store.Search(ctx, memory.Query{Embedding: vec, ChannelID: ch})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlMessages returns the DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddlMessages(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chat_messages (
    id           TEXT         PRIMARY KEY,
    guild_id     TEXT         NOT NULL DEFAULT '',
    channel_id   TEXT         NOT NULL,
    author_id    TEXT         NOT NULL DEFAULT '',
    author_name  TEXT         NOT NULL DEFAULT '',
    content      TEXT         NOT NULL,
    embedding    vector(%d),
    posted_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_channel
    ON chat_messages (channel_id, posted_at);

CREATE INDEX IF NOT EXISTS idx_chat_messages_guild
    ON chat_messages (guild_id);

CREATE INDEX IF NOT EXISTS idx_chat_messages_author
    ON chat_messages (author_id);

CREATE INDEX IF NOT EXISTS idx_chat_messages_fts
    ON chat_messages USING GIN (to_tsvector('simple', content));

CREATE INDEX IF NOT EXISTS idx_chat_messages_embedding
    ON chat_messages USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for your deployment
// (e.g., 1536 for OpenAI text-embedding-3-small, 768 for nomic-embed-text).
// Changing this value after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if embeddingDimensions <= 0 {
		return fmt.Errorf("postgres migrate: embedding dimensions must be positive, got %d", embeddingDimensions)
	}
	if _, err := pool.Exec(ctx, ddlMessages(embeddingDimensions)); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
