package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cf-toolsuite/cf-kaizen/internal/llm"
)

const defaultRefusalMessage = "I'm not able to help with that request. Please rephrase your question."

const defaultGreeting = "Hello! I can answer questions about your Cloud Foundry foundations. Ask me about organizations, spaces, applications, service instances, or accounting reports."

// Completer drives one streaming completion exchange.
type Completer interface {
	StreamCompletion(ctx context.Context, req llm.CompletionRequest, onContent func(string)) (llm.Usage, error)
}

// Gate is a pre-call moderation predicate.
type Gate interface {
	Check(ctx context.Context, text string) bool
}

// Service orchestrates one chat turn: moderation gate, tool selection,
// streaming completion, and the trailing metadata record.
type Service struct {
	completer    Completer
	registry     *Registry
	gate         Gate
	model        string
	systemPrompt string
	refusal      string
	greeting     string
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithModerationGate enables the content gate.
func WithModerationGate(gate Gate) ServiceOption {
	return func(s *Service) { s.gate = gate }
}

// WithSystemPrompt sets the system prompt for every turn.
func WithSystemPrompt(prompt string) ServiceOption {
	return func(s *Service) { s.systemPrompt = prompt }
}

// WithRefusalMessage overrides the fixed response used when the gate trips.
func WithRefusalMessage(message string) ServiceOption {
	return func(s *Service) { s.refusal = message }
}

// WithGreeting overrides the greeting returned by Greeting.
func WithGreeting(greeting string) ServiceOption {
	return func(s *Service) { s.greeting = greeting }
}

// NewService creates a chat service over the given completer and tool
// registry. model is the identifier reported in turn metadata.
func NewService(completer Completer, registry *Registry, model string, opts ...ServiceOption) *Service {
	s := &Service{
		completer: completer,
		registry:  registry,
		model:     model,
		refusal:   defaultRefusalMessage,
		greeting:  defaultGreeting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Greeting returns the configured greeting message.
func (s *Service) Greeting() string {
	return s.greeting
}

// ToolDescriptions returns the name to description catalog of every
// resolvable tool.
func (s *Service) ToolDescriptions() map[string]string {
	return s.registry.Descriptions()
}

// Chat runs one turn, emitting content chunks in arrival order followed
// by exactly one metadata chunk. When the gate trips, a single fixed
// refusal chunk is emitted and the turn ends with no metadata chunk and
// no model call. Errors after content has been flushed end the stream
// without a metadata chunk instead of failing the turn.
func (s *Service) Chat(ctx context.Context, inquiry Inquiry, history []llm.Message, emit func(Chunk) error) error {
	if inquiry.Question == "" {
		return fmt.Errorf("question is required")
	}

	if s.gate != nil && s.gate.Check(ctx, inquiry.Question) {
		return emit(Chunk{Content: s.refusal})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var emitErr error
	contentSent := false
	onContent := func(delta string) {
		if emitErr != nil {
			return
		}
		contentSent = true
		if err := emit(Chunk{Content: delta}); err != nil {
			emitErr = err
			cancel()
		}
	}

	start := time.Now()
	usage, err := s.completer.StreamCompletion(ctx, llm.CompletionRequest{
		SystemPrompt: s.systemPrompt,
		History:      history,
		Question:     inquiry.Question,
		Tools:        s.registry.Filter(inquiry.Tools),
	}, onContent)
	if emitErr != nil {
		return emitErr
	}
	if err != nil {
		if !contentSent {
			return err
		}
		// Content already flushed stands; the stream just ends.
		log.Printf("chat: stream ended after partial content: %v", err)
		return nil
	}

	elapsed := time.Since(start)
	return emit(Chunk{Metadata: &Metadata{
		Model:            s.model,
		ResponseTime:     FormatDuration(elapsed),
		TokensPerSecond:  TokensPerSecond(usage.TotalTokens, elapsed),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}})
}
