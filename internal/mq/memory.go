package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend delivers messages in process. Messages published while a
// channel has no subscriber are buffered until one subscribes.
type MemoryBackend struct {
	mu      sync.Mutex
	pending map[string][]Message
	subs    map[string][]chan Message
	closed  bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		pending: make(map[string][]Message),
		subs:    make(map[string][]chan Message),
	}
}

func (b *MemoryBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}

	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: copyAttrs(attrs)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", errors.New("memory backend closed")
	}
	subs := b.subs[channel]
	if len(subs) == 0 {
		b.pending[channel] = append(b.pending[channel], msg)
		return msg.ID, nil
	}
	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
			// Slow subscriber; keep the message for the next Subscribe.
			b.pending[channel] = append(b.pending[channel], msg)
		}
	}
	return msg.ID, nil
}

func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}

	ch := make(chan Message, 64)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("memory backend closed")
	}
	backlog := b.pending[channel]
	delete(b.pending, channel)
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	defer b.unsubscribe(channel, ch)

	for _, msg := range backlog {
		if err := handler(ctx, msg); err != nil {
			b.requeue(channel, msg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			if err := handler(ctx, msg); err != nil {
				b.requeue(channel, msg)
			}
		}
	}
}

// Pending returns the buffered messages of channel.
func (b *MemoryBackend) Pending(channel string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.pending[channel]...)
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *MemoryBackend) requeue(channel string, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[channel] = append(b.pending[channel], msg)
}

func (b *MemoryBackend) unsubscribe(channel string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[channel]
	for i, sub := range subs {
		if sub == ch {
			b.subs[channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	for {
		select {
		case msg := <-ch:
			b.pending[channel] = append(b.pending[channel], msg)
		default:
			return
		}
	}
}

func copyAttrs(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
