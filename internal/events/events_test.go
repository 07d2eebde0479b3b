package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if !ok {
			t.Fatalf("stream closed before event arrived")
		}
		return evt
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func waitClosed(t *testing.T, ch <-chan Event) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("stream not closed after cancel")
		}
	}
}

func TestSplitTopic(t *testing.T) {
	tests := []struct {
		topic    string
		kind     string
		key      string
		expected bool
	}{
		{"chat:42", "chat", "42", true},
		{"user:a:b", "user", "a:b", true},
		{"chat:", "", "", false},
		{"chat", "", "", false},
		{":42", "", "", false},
	}
	for _, tt := range tests {
		kind, key, ok := SplitTopic(tt.topic)
		if ok != tt.expected || kind != tt.kind || key != tt.key {
			t.Fatalf("SplitTopic(%q) = %q, %q, %v", tt.topic, kind, key, ok)
		}
	}
}

func TestMemoryBusDeliversToTopicSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chat, err := bus.Subscribe(ctx, ChatTopic("c1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	other, err := bus.Subscribe(ctx, ChatTopic("c2"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	evt, err := New(ChatTopic("c1"), MessageNew, map[string]string{"id": "m1"}, time.Now())
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if err := bus.Publish(ctx, evt); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := receive(t, chat)
	if got.Type != MessageNew || string(got.Data) != `{"id":"m1"}` {
		t.Fatalf("unexpected event: %+v", got)
	}
	select {
	case evt := <-other:
		t.Fatalf("unrelated topic received %+v", evt)
	default:
	}
}

func TestMemoryBusClosesStreamOnCancel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, UserTopic("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	waitClosed(t, ch)

	// publishing after the subscriber left must not panic
	if err := bus.Publish(context.Background(), Event{Topic: UserTopic("u1"), Type: NotificationNew}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRedisBusRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	bus := NewRedisBusFromClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, UserTopic("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	evt, err := New(UserTopic("u1"), NotificationNew, map[string]string{"title": "hi"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if err := bus.Publish(ctx, evt); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := receive(t, ch)
	if got.Topic != evt.Topic || got.Type != NotificationNew || string(got.Data) != `{"title":"hi"}` {
		t.Fatalf("unexpected event: %+v", got)
	}

	cancel()
	waitClosed(t, ch)
}

func TestNewRedisBusRejectsBadURL(t *testing.T) {
	if _, err := NewRedisBus("://nope"); err == nil {
		t.Fatalf("expected error for malformed url")
	}
}

func TestPollerEmitsFetchedEvents(t *testing.T) {
	p := NewPoller(10 * time.Millisecond)

	var calls atomic.Int32
	p.Handle("chat", func(_ context.Context, key string, since time.Time) ([]Event, error) {
		if key != "c1" {
			t.Errorf("unexpected key %q", key)
		}
		if calls.Add(1) != 2 {
			return nil, nil
		}
		return []Event{{Topic: ChatTopic(key), Type: MessageNew, At: since.Add(time.Millisecond)}}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Subscribe(ctx, ChatTopic("c1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	got := receive(t, ch)
	if got.Type != MessageNew {
		t.Fatalf("unexpected event: %+v", got)
	}

	cancel()
	waitClosed(t, ch)
}

func TestPollerRejectsUnknownTopic(t *testing.T) {
	p := NewPoller(time.Second)
	if _, err := p.Subscribe(context.Background(), "order:1"); err == nil {
		t.Fatalf("expected error for topic without fetcher")
	}
	if _, err := p.Subscribe(context.Background(), "garbage"); err == nil {
		t.Fatalf("expected error for malformed topic")
	}
}
