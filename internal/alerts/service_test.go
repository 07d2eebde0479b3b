package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/events"
	"github.com/sudo-init-do/mardikor/internal/store/memory"
)

func seedUser(t *testing.T, st *memory.Store, id string) {
	t.Helper()
	now := time.Now().UTC()
	if err := st.CreateUser(context.Background(), domain.User{ID: id, Name: id, Email: id + "@example.com", Role: domain.RoleWorker, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestNotificationLifecycle(t *testing.T) {
	st := memory.New()
	bus := events.NewMemoryBus()
	defer bus.Close()
	svc := NewService(st, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	owner := domain.User{ID: "u1", Role: domain.RoleWorker}
	stranger := domain.User{ID: "u2", Role: domain.RoleCustomer}
	seedUser(t, st, owner.ID)

	stream, err := bus.Subscribe(ctx, events.UserTopic(owner.ID))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	first, err := svc.Create(ctx, CreateInput{UserID: owner.ID, Type: domain.NotificationOrder, Title: "Order accepted", RelatedID: "o1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.now = func() time.Time { return first.CreatedAt.Add(time.Second) }
	if _, err := svc.Create(ctx, CreateInput{UserID: owner.ID, Type: domain.NotificationSystem, Title: "Welcome"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	select {
	case evt := <-stream:
		if evt.Type != events.NotificationNew {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("no notification event published")
	}

	items, err := svc.ListForUser(ctx, owner, "", time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Title != "Welcome" {
		t.Fatalf("expected newest first, got %+v", items)
	}
	if _, err := svc.ListForUser(ctx, stranger, owner.ID, time.Time{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if _, err := svc.MarkRead(ctx, stranger, first.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
	n, err := svc.MarkRead(ctx, owner, first.ID)
	if err != nil || !n.IsRead {
		t.Fatalf("mark read: %+v %v", n, err)
	}

	updated, err := svc.MarkAllRead(ctx, owner, "")
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 newly read, got %d", updated)
	}

	if err := svc.Delete(ctx, owner, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.MarkRead(ctx, owner, first.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected deleted notification to be gone, got %v", err)
	}
}

func TestCreateValidates(t *testing.T) {
	st := memory.New()
	seedUser(t, st, "u1")
	svc := NewService(st, events.NewMemoryBus())
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{UserID: "u1", Type: "SPAM", Title: "x"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if _, err := svc.Create(ctx, CreateInput{UserID: "u1", Type: domain.NotificationSystem, Title: "  "}); err == nil {
		t.Fatalf("expected error for blank title")
	}
	if _, err := svc.Create(ctx, CreateInput{UserID: "ghost", Type: domain.NotificationSystem, Title: "hello"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown recipient, got %v", err)
	}
	if items, _ := st.ListNotifications(ctx, "ghost", time.Time{}); len(items) != 0 {
		t.Fatalf("no notification may be stored for an unknown recipient, got %d", len(items))
	}
}

func TestPollUserReturnsOldestFirst(t *testing.T) {
	st := memory.New()
	seedUser(t, st, "u1")
	svc := NewService(st, events.NewPoller(time.Second))
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, title := range []string{"one", "two", "three"} {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		if _, err := svc.Create(ctx, CreateInput{UserID: "u1", Type: domain.NotificationSystem, Title: title}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	evts, err := svc.PollUser(ctx, "u1", base)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("expected 2 events after cursor, got %d", len(evts))
	}
	if !evts[0].At.Before(evts[1].At) {
		t.Fatalf("events not in ascending order")
	}
}
