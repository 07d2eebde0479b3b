package events

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryBus fans events out to subscribers of the same process.
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string]map[chan Event]struct{}
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{topics: make(map[string]map[chan Event]struct{})}
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (<-chan Event, error) {
	ch := make(chan Event, streamBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[chan Event]struct{})
		b.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unregister(topic, ch)
	}()
	return ch, nil
}

func (b *MemoryBus) unregister(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
	close(ch)
}

// Publish never blocks. A subscriber whose buffer is full misses the event.
func (b *MemoryBus) Publish(_ context.Context, evt Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.topics[evt.Topic] {
		select {
		case ch <- evt:
		default:
			slog.Warn("event dropped for slow subscriber", "topic", evt.Topic, "type", evt.Type)
		}
	}
	return nil
}

// Close ends every open stream.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.topics {
		for ch := range subs {
			close(ch)
		}
		delete(b.topics, topic)
	}
	return nil
}
