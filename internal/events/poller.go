package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FetchFunc returns the events of key that happened after since, oldest
// first.
type FetchFunc func(ctx context.Context, key string, since time.Time) ([]Event, error)

// Poller is the default transport. It does not push anything: subscribers
// get whatever the registered fetchers find in the store on every tick,
// the same contract as a client polling the REST endpoints.
type Poller struct {
	interval time.Duration

	mu       sync.RWMutex
	fetchers map[string]FetchFunc
}

func NewPoller(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{interval: interval, fetchers: make(map[string]FetchFunc)}
}

// Handle registers the fetcher of a topic kind such as "chat".
func (p *Poller) Handle(kind string, fn FetchFunc) {
	p.mu.Lock()
	p.fetchers[kind] = fn
	p.mu.Unlock()
}

// Publish is a no-op: the store is the source of every polled event.
func (p *Poller) Publish(context.Context, Event) error { return nil }

func (p *Poller) Subscribe(ctx context.Context, topic string) (<-chan Event, error) {
	kind, key, ok := SplitTopic(topic)
	if !ok {
		return nil, fmt.Errorf("malformed topic %q", topic)
	}
	p.mu.RLock()
	fetch, ok := p.fetchers[kind]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no poller registered for %q", kind)
	}

	out := make(chan Event, streamBuffer)
	go func() {
		defer close(out)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		since := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			evts, err := fetch(ctx, key, since)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("poll failed", "topic", topic, "error", err)
				continue
			}
			for _, evt := range evts {
				if evt.At.After(since) {
					since = evt.At
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (p *Poller) Close() error { return nil }
