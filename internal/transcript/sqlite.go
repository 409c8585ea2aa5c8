// ABOUTME: SQLite-backed conversation transcript using modernc.org/sqlite
// ABOUTME: Keeps a durable message log with bounded recent-history reads per conversation

package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Message authors.
const (
	AuthorCustomer = "customer"
	AuthorAgent    = "agent"
	AuthorOperator = "operator"
)

// DefaultRecentLimit bounds how much history is replayed to the agent.
const DefaultRecentLimit = 20

// Message is one transcript entry.
type Message struct {
	ID           string
	Conversation string
	Author       string
	Text         string
	CreatedAt    time.Time
}

// Store persists conversation transcripts in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the transcript database at path. Parent
// directories are created if needed.
func NewStore(path string) (*Store, error) {
	logger := slog.Default().With("component", "transcript")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps reads from blocking the webhook's writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("transcript store initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transcript_messages (
			id TEXT PRIMARY KEY,
			conversation TEXT NOT NULL,
			author TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_transcript_conversation_created
			ON transcript_messages(conversation, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Save appends a message to the conversation's transcript.
func (s *Store) Save(ctx context.Context, conversation, author, text string) error {
	query := `
		INSERT INTO transcript_messages (id, conversation, author, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(), conversation, author, text, time.Now())
	if err != nil {
		return fmt.Errorf("saving transcript message: %w", err)
	}
	return nil
}

// Recent returns the newest limit messages for the conversation in
// chronological order. A limit <= 0 falls back to DefaultRecentLimit.
func (s *Store) Recent(ctx context.Context, conversation string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := `
		SELECT id, conversation, author, text, created_at
		FROM transcript_messages
		WHERE conversation = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, conversation, limit)
	if err != nil {
		return nil, fmt.Errorf("querying transcript: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Conversation, &m.Author, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transcript row: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transcript rows: %w", err)
	}

	// Rows came newest-first; callers want oldest-first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
