package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Standalone deployments use Go channels; clusters use NATS.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (standalone profile)
	ChannelBufferSize int

	// NATS settings (cluster profile)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Topics for the evaluation pipeline.
const (
	TopicVerdictCreated  = "kestrel.verdict.created"
	TopicVerdictAlert    = "kestrel.verdict.alert"
	TopicPatternDetected = "kestrel.pattern.detected"
)

// VerdictEvent is the envelope published after each evaluation. The
// worker consumes it to persist the verdict and trace off the hot path.
type VerdictEvent struct {
	EvaluationID string       `json:"evaluationId"`
	Verdict      *Verdict     `json:"verdict"`
	Explanation  *Explanation `json:"explanation,omitempty"`
}
