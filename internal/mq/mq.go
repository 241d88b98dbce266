// Package mq publishes and consumes account events over a pluggable broker.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mentorlink/apiserver/config"
)

// Attribute keys set on every JSON message.
const (
	AttrEventType   = "event_type"
	AttrContentType = "content_type"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// EventType returns the event type attribute, if present.
func (m Message) EventType() string {
	return m.Attributes[AttrEventType]
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open builds the backend selected by cfg.Backend. It returns nil, nil for
// the "none" backend so callers can skip publishing entirely.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.MQBackendNone:
		return nil, nil
	case config.MQBackendRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return New(client), nil
	case config.MQBackendPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		return New(client), nil
	case config.MQBackendMemory:
		return New(NewMemoryBackend()), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON encodes v as JSON and publishes it tagged with eventType.
func (m *MQ) PublishJSON(ctx context.Context, channel, eventType string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return m.backend.Publish(ctx, channel, data, map[string]string{
		AttrEventType:   eventType,
		AttrContentType: "application/json",
	})
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
