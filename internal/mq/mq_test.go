package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlink/apiserver/config"
)

func TestOpen_SelectsBackend(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{Backend: config.MQBackendNone})
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = Open(context.Background(), config.MQConfig{Backend: "Memory"})
	require.NoError(t, err)
	require.NotNil(t, m)
	require.NoError(t, m.Close())

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.MQConfig{Backend: config.MQBackendRabbitMQ})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.MQConfig{Backend: config.MQBackendPubSub})
	assert.Error(t, err)
}

func TestPublishJSON_MemoryRoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	m := New(backend)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := m.PublishJSON(ctx, "account-events", "user.registered", map[string]any{"userId": 7})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, backend.Pending("account-events"), 1)

	received := make(chan Message, 1)
	go func() {
		_ = m.Subscribe(ctx, "account-events", func(_ context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()

	select {
	case msg := <-received:
		assert.Equal(t, id, msg.ID)
		assert.Equal(t, "user.registered", msg.EventType())
		assert.Equal(t, "application/json", msg.Attributes[AttrContentType])
		var payload map[string]int
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
		assert.Equal(t, 7, payload["userId"])
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestMemoryBackend_FailedHandlerRequeues(t *testing.T) {
	backend := NewMemoryBackend()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := backend.Publish(ctx, "ch", []byte("x"), nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- backend.Subscribe(ctx, "ch", func(context.Context, Message) error {
			cancel()
			return errors.New("boom")
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
	assert.Len(t, backend.Pending("ch"), 1)
}

func TestMemoryBackend_Validation(t *testing.T) {
	backend := NewMemoryBackend()
	_, err := backend.Publish(context.Background(), " ", nil, nil)
	assert.Error(t, err)

	require.NoError(t, backend.Close())
	_, err = backend.Publish(context.Background(), "ch", nil, nil)
	assert.Error(t, err)
}

func TestDeliveryToMessage(t *testing.T) {
	msg := deliveryToMessage(amqp.Delivery{
		MessageId: "m-1",
		Type:      "user.promoted",
		Headers:   amqp.Table{"source": []byte("apiserver"), "attempt": int32(2)},
		Body:      []byte(`{}`),
	})

	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, "user.promoted", msg.EventType())
	assert.Equal(t, "apiserver", msg.Attributes["source"])
	assert.Equal(t, "2", msg.Attributes["attempt"])
}
