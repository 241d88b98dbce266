package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mentorlink/apiserver/config"
)

// RabbitMQClient publishes account events to durable RabbitMQ queues.
type RabbitMQClient struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queueDurable    bool
	queueAutoDelete bool

	mu       sync.Mutex
	declared map[string]struct{}
}

// NewRabbitMQClient dials cfg.URL and opens a channel.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:            conn,
		channel:         ch,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		declared:        make(map[string]struct{}),
	}, nil
}

// Publish sends a message to the named queue. Messages on durable queues
// are persisted.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if err := r.ensureQueue(channel); err != nil {
		return "", err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}
	contentType := attrs[AttrContentType]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	deliveryMode := amqp.Transient
	if r.queueDurable {
		deliveryMode = amqp.Persistent
	}

	messageID := uuid.NewString()
	err := r.channel.PublishWithContext(ctx, "", channel, false, false, amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: deliveryMode,
		MessageId:    messageID,
		Type:         attrs[AttrEventType],
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes messages from the named queue until ctx is done.
// Handler failures are requeued.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if err := r.ensureQueue(channel); err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("mentorlink-%s", uuid.NewString())
	deliveries, err := r.channel.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := handler(ctx, deliveryToMessage(delivery)); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) ensureQueue(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.declared[name]; ok {
		return nil
	}
	if _, err := r.channel.QueueDeclare(name, r.queueDurable, r.queueAutoDelete, false, false, nil); err != nil {
		return err
	}
	r.declared[name] = struct{}{}
	return nil
}

func deliveryToMessage(delivery amqp.Delivery) Message {
	attrs := headersToAttributes(delivery.Headers)
	if delivery.Type != "" {
		if attrs == nil {
			attrs = make(map[string]string, 1)
		}
		attrs[AttrEventType] = delivery.Type
	}
	return Message{ID: delivery.MessageId, Data: delivery.Body, Attributes: attrs}
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
