// Package events publishes tool invocation audit events to RabbitMQ.
// Publishing is optional; when AMQP_URL is unset the publisher is a
// no-op so the servers run without a broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultQueue = "ToolInvocations"

// ToolInvocationEvent records one tool call served by an MCP server.
type ToolInvocationEvent struct {
	ID             string    `json:"id"`
	Tool           string    `json:"tool"`
	Connection     string    `json:"connection"`
	DurationMillis int64     `json:"durationMillis"`
	Succeeded      bool      `json:"succeeded"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher sends tool invocation events to a RabbitMQ queue. A nil
// Publisher is valid and drops every event.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewPublisherFromEnv connects to RabbitMQ when AMQP_URL is set.
// Returns nil (disabled publisher) when it is not.
func NewPublisherFromEnv() (*Publisher, error) {
	amqpURL := os.Getenv("AMQP_URL")
	if amqpURL == "" {
		return nil, nil
	}

	queue := os.Getenv("AMQP_EVENTS_QUEUE")
	if queue == "" {
		queue = defaultQueue
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &Publisher{conn: conn, channel: channel, queue: queue}, nil
}

// Publish sends one event. Failures are logged, not returned; audit
// publishing never blocks a tool call from succeeding.
func (p *Publisher) Publish(ctx context.Context, event ToolInvocationEvent) {
	if p == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal tool invocation event: %v", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Body:         body,
	})
	if err != nil {
		log.Printf("Failed to publish tool invocation event: %v", err)
	}
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
