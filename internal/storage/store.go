package storage

import (
	"fmt"
	"os"
	"time"
)

// Message is one persisted turn of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationStore persists chat history across requests.
type ConversationStore interface {
	AppendMessage(message Message) error
	History(conversationID string) ([]Message, error)
	DeleteConversation(conversationID string) error
	Ping() error
	Close() error
}

// NewConversationStoreFromEnv picks the store implementation from the
// environment: DATABASE_URL selects Postgres, otherwise a JSON file at
// CONVERSATIONS_FILE_PATH (default ./data/conversations.json) is used.
func NewConversationStoreFromEnv() (ConversationStore, error) {
	if connString := os.Getenv("DATABASE_URL"); connString != "" {
		store, err := NewPostgresConversationStore(connString)
		if err != nil {
			return nil, fmt.Errorf("postgres conversation store: %w", err)
		}
		return store, nil
	}

	path := os.Getenv("CONVERSATIONS_FILE_PATH")
	if path == "" {
		path = "./data/conversations.json"
	}
	return NewFileConversationStore(path)
}

var ErrNotFound = &NotFoundError{}

type NotFoundError struct{}

func (e *NotFoundError) Error() string {
	return "conversation not found"
}
