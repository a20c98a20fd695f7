package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileConversationStore keeps conversation history in one JSON file.
// Intended for local development; the Postgres store serves deployments.
type FileConversationStore struct {
	mu       sync.RWMutex
	filePath string
	messages map[string][]Message
}

// NewFileConversationStore loads (or creates) the store file at path.
func NewFileConversationStore(path string) (*FileConversationStore, error) {
	store := &FileConversationStore{
		filePath: path,
		messages: make(map[string][]Message),
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *FileConversationStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var all []Message
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, message := range all {
		s.messages[message.ConversationID] = append(s.messages[message.ConversationID], message)
	}
	return nil
}

func (s *FileConversationStore) saveToFile() error {
	var all []Message
	for _, list := range s.messages {
		all = append(all, list...)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(s.filePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(absPath, data, 0644)
}

// AppendMessage stores one turn and flushes to disk.
func (s *FileConversationStore) AppendMessage(message Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.messages[message.ConversationID] = append(s.messages[message.ConversationID], message)
	s.mu.Unlock()

	return s.saveToFile()
}

// History returns all turns of one conversation in insertion order.
func (s *FileConversationStore) History(conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.messages[conversationID]
	out := make([]Message, len(messages))
	copy(out, messages)
	return out, nil
}

// DeleteConversation removes all turns of one conversation.
func (s *FileConversationStore) DeleteConversation(conversationID string) error {
	s.mu.Lock()
	if _, exists := s.messages[conversationID]; !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.messages, conversationID)
	s.mu.Unlock()

	return s.saveToFile()
}

// Ping is a no-op for file-based storage.
func (s *FileConversationStore) Ping() error {
	return nil
}

// Close is a no-op for file-based storage.
func (s *FileConversationStore) Close() error {
	return nil
}
