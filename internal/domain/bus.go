package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (single node) or NATS (distributed).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
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
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// Event topics.
const (
	// TopicPricingObserved is published after a pricing observation is
	// persisted; the payload is a PricingObservedEvent.
	TopicPricingObserved = "pricing.observed"

	// TopicAnomalyDetected is published by the anomaly worker when an
	// alert rule matches a flagged observation.
	TopicAnomalyDetected = "anomaly.detected"

	// TopicRiskAssessed is published after an on-demand risk assessment.
	TopicRiskAssessed = "risk.assessed"
)

// PricingObservedEvent is the payload of TopicPricingObserved.
type PricingObservedEvent struct {
	SKUID    string `json:"skuId"`
	VendorID string `json:"vendorId"`
	Region   string `json:"region,omitempty"`
	Category string `json:"category,omitempty"`
}

// AnomalyDetectedEvent is the payload of TopicAnomalyDetected.
type AnomalyDetectedEvent struct {
	RuleID   string         `json:"ruleId"`
	RuleName string         `json:"ruleName"`
	Severity string         `json:"severity"`
	Anomaly  VarianceResult `json:"anomaly"`
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `toml:"type"`

	// Channel settings
	ChannelBufferSize int `toml:"channel_buffer_size"`

	// NATS settings
	NATSUrl           string `toml:"nats_url"`
	NATSToken         string `toml:"nats_token"`
	NATSMaxReconnects int    `toml:"nats_max_reconnects"`
	NATSReconnectWait int    `toml:"nats_reconnect_wait"` // seconds
}
