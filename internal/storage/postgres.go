package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresConversationStore keeps conversation history in Postgres.
type PostgresConversationStore struct {
	db *sql.DB
}

// NewPostgresConversationStore opens the database and ensures the
// schema exists.
func NewPostgresConversationStore(connString string) (*PostgresConversationStore, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	// Pool limits for cloud stability
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresConversationStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgresConversationStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversation_messages (
		id VARCHAR(36) PRIMARY KEY,
		conversation_id VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_conversation_id ON conversation_messages(conversation_id);
	`

	_, err := s.db.Exec(query)
	return err
}

// AppendMessage stores one turn. A missing message ID is generated.
func (s *PostgresConversationStore) AppendMessage(message Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO conversation_messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.Exec(query, message.ID, message.ConversationID, message.Role, message.Content, message.CreatedAt)
	return err
}

// History returns all turns of a conversation in insertion order.
func (s *PostgresConversationStore) History(conversationID string) ([]Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at, id
	`

	rows, err := s.db.Query(query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var message Message
		if err := rows.Scan(&message.ID, &message.ConversationID, &message.Role, &message.Content, &message.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

// DeleteConversation removes all turns of a conversation.
func (s *PostgresConversationStore) DeleteConversation(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_messages WHERE conversation_id = $1`, conversationID)
	return err
}

// Ping tests the database connection.
func (s *PostgresConversationStore) Ping() error {
	return s.db.Ping()
}

// Close closes the database connection.
func (s *PostgresConversationStore) Close() error {
	return s.db.Close()
}
