// Package sqlite provides an embedded [memory.MessageLog] backed by a single
// SQLite file through the pure-Go modernc.org/sqlite driver.
//
// Embeddings are stored as JSON arrays. Semantic search loads the candidate
// rows matching the query filters and ranks them by cosine similarity in
// process, which is adequate for the message volume of a single community
// server.
package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/glyphchat/internal/facts"
	"github.com/MrWong99/glyphchat/pkg/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_messages (
    id           TEXT    PRIMARY KEY,
    guild_id     TEXT    NOT NULL DEFAULT '',
    channel_id   TEXT    NOT NULL,
    author_id    TEXT    NOT NULL DEFAULT '',
    author_name  TEXT    NOT NULL DEFAULT '',
    content      TEXT    NOT NULL,
    embedding    TEXT,
    posted_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_channel ON chat_messages (channel_id, posted_at);
CREATE INDEX IF NOT EXISTS idx_chat_messages_guild   ON chat_messages (guild_id);
CREATE INDEX IF NOT EXISTS idx_chat_messages_author  ON chat_messages (author_id);
`

var _ memory.MessageLog = (*Store)(nil)

// Store is the SQLite-backed message log. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite store: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %q: %w", path, err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Append implements [memory.MessageLog]. A message whose ID already exists is
// replaced; an existing embedding survives when the new copy carries none.
func (s *Store) Append(ctx context.Context, msg memory.Message) error {
	const q = `
		INSERT INTO chat_messages
		    (id, guild_id, channel_id, author_id, author_name, content, embedding, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		    content     = excluded.content,
		    author_name = excluded.author_name,
		    embedding   = COALESCE(excluded.embedding, chat_messages.embedding)`

	var emb sql.NullString
	if len(msg.Embedding) > 0 {
		raw, err := json.Marshal(msg.Embedding)
		if err != nil {
			return fmt.Errorf("sqlite store: encode embedding: %w", err)
		}
		emb = sql.NullString{String: string(raw), Valid: true}
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, q,
		msg.ID, msg.GuildID, msg.ChannelID, msg.AuthorID, msg.AuthorName,
		msg.Content, emb, ts.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite store: append: %w", err)
	}
	return nil
}

// Search implements [memory.MessageLog]. Semantic queries score every
// candidate with an embedding of matching length by cosine similarity.
// Keyword queries match any whitespace-separated term case-insensitively and
// score by the fraction of terms present. Ties favour newer messages.
func (s *Store) Search(ctx context.Context, q memory.Query) ([]memory.Hit, error) {
	var (
		conditions []string
		args       []any
		terms      []string
	)
	switch {
	case len(q.Embedding) > 0:
		conditions = append(conditions, "embedding IS NOT NULL")
	case strings.TrimSpace(q.Text) != "":
		terms = strings.Fields(strings.ToLower(q.Text))
		likes := make([]string, len(terms))
		for i, term := range terms {
			likes[i] = `lower(content) LIKE ? ESCAPE '\'`
			args = append(args, "%"+escapeLike(term)+"%")
		}
		conditions = append(conditions, "("+strings.Join(likes, " OR ")+")")
	default:
		return []memory.Hit{}, nil
	}

	if q.GuildID != "" {
		conditions = append(conditions, "guild_id = ?")
		args = append(args, q.GuildID)
	}
	if q.ChannelID != "" {
		conditions = append(conditions, "channel_id = ?")
		args = append(args, q.ChannelID)
	}
	if q.ExcludeChannelID != "" {
		conditions = append(conditions, "channel_id <> ?")
		args = append(args, q.ExcludeChannelID)
	}
	if q.AuthorID != "" {
		conditions = append(conditions, "author_id = ?")
		args = append(args, q.AuthorID)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, guild_id, channel_id, author_id, author_name, content, embedding, posted_at\n"+
			"FROM chat_messages\nWHERE "+strings.Join(conditions, " AND "), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: search: %w", err)
	}
	defer rows.Close()

	hits := []memory.Hit{}
	for rows.Next() {
		var (
			h      memory.Hit
			emb    sql.NullString
			millis int64
		)
		if err := rows.Scan(&h.Message.ID, &h.Message.GuildID, &h.Message.ChannelID,
			&h.Message.AuthorID, &h.Message.AuthorName, &h.Message.Content, &emb, &millis); err != nil {
			return nil, fmt.Errorf("sqlite store: scan row: %w", err)
		}
		h.Message.Timestamp = time.UnixMilli(millis)

		if len(q.Embedding) > 0 {
			if err := json.Unmarshal([]byte(emb.String), &h.Message.Embedding); err != nil {
				continue
			}
			if len(h.Message.Embedding) != len(q.Embedding) {
				continue
			}
			h.Score = facts.Cosine(q.Embedding, h.Message.Embedding)
		} else {
			h.Score = termScore(h.Message.Content, terms)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: iterate rows: %w", err)
	}

	slices.SortStableFunc(hits, func(a, b memory.Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return b.Message.Timestamp.Compare(a.Message.Timestamp)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = memory.DefaultLimit
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Ping implements [memory.MessageLog].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite store: ping: %w", err)
	}
	return nil
}

// Close implements [memory.MessageLog].
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite store: close: %w", err)
	}
	return nil
}

func termScore(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	n := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			n++
		}
	}
	return float64(n) / float64(len(terms))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
