package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileConversationStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.json")

	store, err := NewFileConversationStore(path)
	require.NoError(t, err)

	require.NoError(t, store.AppendMessage(Message{
		ConversationID: "c1",
		Role:           "user",
		Content:        "How many orgs?",
		CreatedAt:      time.Now().Add(-time.Minute),
	}))
	require.NoError(t, store.AppendMessage(Message{
		ConversationID: "c1",
		Role:           "assistant",
		Content:        "There are 3 organizations.",
	}))
	require.NoError(t, store.AppendMessage(Message{
		ConversationID: "c2",
		Role:           "user",
		Content:        "unrelated",
	}))

	history, err := store.History("c1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	assert.NotEmpty(t, history[0].ID)

	// A new store over the same file sees persisted history.
	reloaded, err := NewFileConversationStore(path)
	require.NoError(t, err)
	history, err = reloaded.History("c1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestFileConversationStoreDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.json")

	store, err := NewFileConversationStore(path)
	require.NoError(t, err)

	require.NoError(t, store.AppendMessage(Message{ConversationID: "c1", Role: "user", Content: "hi"}))
	require.NoError(t, store.DeleteConversation("c1"))

	history, err := store.History("c1")
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, store.DeleteConversation("missing"), ErrNotFound)
}

func TestFileConversationStoreEmptyHistory(t *testing.T) {
	store, err := NewFileConversationStore(filepath.Join(t.TempDir(), "c.json"))
	require.NoError(t, err)

	history, err := store.History("nope")
	require.NoError(t, err)
	assert.Empty(t, history)
}
