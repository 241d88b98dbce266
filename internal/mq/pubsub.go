package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/mentorlink/apiserver/config"
)

// PubSubClient publishes account events to Google Cloud Pub/Sub topics.
type PubSubClient struct {
	client             *pubsub.Client
	subscriptionSuffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	return &PubSubClient{
		client:             client,
		subscriptionSuffix: cfg.SubscriptionSuffix,
		topics:             make(map[string]*pubsub.Topic),
	}, nil
}

// Publish sends a message to the named topic and waits for the server id.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	result := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return result.Get(ctx)
}

// Subscribe consumes messages from the channel's subscription, creating it
// on first use.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}

	sub, err := p.ensureSubscription(ctx, channel+p.subscriptionSuffix, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		message := Message{
			ID:         msg.ID,
			Data:       msg.Data,
			Attributes: msg.Attributes,
		}
		if err := handler(ctx, message); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close stops cached topics and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.topics = make(map[string]*pubsub.Topic)
	p.mu.Unlock()
	return p.client.Close()
}

func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		topic, err = p.client.CreateTopic(ctx, name)
		if err != nil {
			return nil, err
		}
	}
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubClient) ensureSubscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{Topic: topic})
	}
	return sub, nil
}
