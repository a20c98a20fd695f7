package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cf-toolsuite/cf-kaizen/internal/chat"
	"github.com/cf-toolsuite/cf-kaizen/internal/llm"
	"github.com/cf-toolsuite/cf-kaizen/internal/storage"
)

// ChatHandler serves the chat API: streaming turns, the greeting, the
// tool catalog, and conversation history.
type ChatHandler struct {
	service *chat.Service
	store   storage.ConversationStore
}

// NewChatHandler creates the handler. The store may be nil, in which
// case conversations are not persisted.
func NewChatHandler(service *chat.Service, store storage.ConversationStore) *ChatHandler {
	return &ChatHandler{service: service, store: store}
}

type chatRequest struct {
	Question       string   `json:"question"`
	Tools          []string `json:"tools,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
}

// HandleStreamChat runs one chat turn and streams the response as it
// arrives: raw content first, then a single JSON metadata frame on its
// own line.
func (h *ChatHandler) HandleStreamChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	history := h.loadHistory(conversationID)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Conversation-Id", conversationID)

	started := false
	var response string
	emit := func(chunk chat.Chunk) error {
		if chunk.IsMetadata() {
			frame, ok := chunk.Metadata.Frame()
			if !ok {
				return nil
			}
			if started {
				fmt.Fprint(w, "\n")
			}
			w.Write(frame)
			fmt.Fprint(w, "\n")
			flusher.Flush()
			return nil
		}

		started = true
		response += chunk.Content
		if _, err := fmt.Fprint(w, chunk.Content); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.service.Chat(r.Context(), chat.Inquiry{Question: req.Question, Tools: req.Tools}, history, emit)
	if err != nil {
		if !started {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		} else {
			log.Printf("chat stream aborted: %v", err)
		}
		return
	}

	h.saveTurn(conversationID, req.Question, response)
}

// HandleGreeting returns the fixed greeting message.
func (h *ChatHandler) HandleGreeting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"greeting": h.service.Greeting()})
}

// HandleTools returns the catalog of resolvable tool names and
// descriptions.
func (h *ChatHandler) HandleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.service.ToolDescriptions())
}

// HandleConversation serves GET (history) and DELETE on
// /api/conversations/{id}.
func (h *ChatHandler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Conversation persistence not configured", http.StatusNotFound)
		return
	}

	conversationID := r.PathValue("id")
	if conversationID == "" {
		http.Error(w, "conversation id is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		messages, err := h.store.History(conversationID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if messages == nil {
			messages = []storage.Message{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messages)
	case http.MethodDelete:
		err := h.store.DeleteConversation(conversationID)
		if err != nil {
			var notFound *storage.NotFoundError
			if errors.As(err, &notFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ChatHandler) loadHistory(conversationID string) []llm.Message {
	if h.store == nil {
		return nil
	}

	messages, err := h.store.History(conversationID)
	if err != nil {
		log.Printf("Failed to load history for conversation %s: %v", conversationID, err)
		return nil
	}

	history := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

func (h *ChatHandler) saveTurn(conversationID, question, response string) {
	if h.store == nil || response == "" {
		return
	}

	now := time.Now().UTC()
	turn := []storage.Message{
		{ConversationID: conversationID, Role: "user", Content: question, CreatedAt: now},
		{ConversationID: conversationID, Role: "assistant", Content: response, CreatedAt: now.Add(time.Millisecond)},
	}
	for _, message := range turn {
		if err := h.store.AppendMessage(message); err != nil {
			log.Printf("Failed to persist conversation %s: %v", conversationID, err)
			return
		}
	}
}
