package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/store/storetest"
)

func seed(t *testing.T, s *Store, id string, role domain.Role) {
	t.Helper()
	now := time.Now().UTC()
	if err := s.CreateUser(context.Background(), domain.User{ID: id, Name: id, Email: id + "@example.com", Role: role, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := New()
	seed(t, s, "u1", domain.RoleCustomer)
	err := s.CreateUser(context.Background(), domain.User{ID: "u2", Email: "u1@example.com", Role: domain.RoleWorker})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestTransitionIsCompareAndSwap(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "c", domain.RoleCustomer)
	seed(t, s, "w", domain.RoleWorker)
	now := time.Now().UTC()
	if err := s.CreateOrder(ctx, domain.Order{ID: "o1", CustomerID: "c", Title: "fix sink", Price: 1000, Status: domain.OrderPending, CreatedAt: now}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	o, err := s.TransitionOrder(ctx, domain.Transition{OrderID: "o1", From: domain.OrderPending, To: domain.OrderAccepted, WorkerID: "w", At: now})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if o.WorkerID != "w" || o.AcceptedAt == nil {
		t.Fatalf("accept did not record worker: %+v", o)
	}
	if _, err := s.TransitionOrder(ctx, domain.Transition{OrderID: "o1", From: domain.OrderPending, To: domain.OrderAccepted, WorkerID: "w", At: now}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("stale from should conflict, got %v", err)
	}
	if _, err := s.TransitionOrder(ctx, domain.Transition{OrderID: "missing", From: domain.OrderPending, To: domain.OrderAccepted, At: now}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing order should be not found, got %v", err)
	}
}

func TestSettlementAppliesWithCompletion(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "c", domain.RoleCustomer)
	seed(t, s, "w", domain.RoleWorker)
	now := time.Now().UTC()
	if err := s.CreateOrder(ctx, domain.Order{ID: "o1", CustomerID: "c", WorkerID: "w", Title: "paint", Price: 1000, Status: domain.OrderInProgress, CreatedAt: now}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	done := domain.Transition{
		OrderID: "o1", From: domain.OrderInProgress, To: domain.OrderCompleted, At: now,
		Settlement: &domain.Settlement{WorkerID: "w", Payout: 900, Commission: 100},
	}
	if _, err := s.TransitionOrder(ctx, done); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := s.TransitionOrder(ctx, done); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second completion should conflict, got %v", err)
	}

	w, _ := s.GetUser(ctx, "w")
	if w.Balance != 900 || w.CompletedJobs != 1 {
		t.Fatalf("settlement applied twice or not at all: balance=%d jobs=%d", w.Balance, w.CompletedJobs)
	}
	platform, _ := s.ListLedger(ctx, domain.PlatformAccount)
	if len(platform) != 1 || platform[0].Amount != 100 {
		t.Fatalf("unexpected platform ledger: %+v", platform)
	}
}

func TestChatPairIsUnordered(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	first, created, err := s.GetOrCreateChat(ctx, domain.Chat{ID: "c1", Participants: [2]string{"b", "a"}, CreatedAt: now})
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}
	again, created, err := s.GetOrCreateChat(ctx, domain.Chat{ID: "c2", Participants: [2]string{"a", "b"}, CreatedAt: now})
	if err != nil || created {
		t.Fatalf("second create: created=%v err=%v", created, err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected the same chat, got %s and %s", first.ID, again.ID)
	}
}

func TestAppendKeepsTimestampsMonotonic(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	if _, _, err := s.GetOrCreateChat(ctx, domain.Chat{ID: "c1", Participants: [2]string{"a", "b"}, CreatedAt: now}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	text := domain.MessageContent{Kind: domain.ContentText, Text: "hi"}
	if _, err := s.AppendMessage(ctx, domain.Message{ID: "m1", ChatID: "c1", SenderID: "a", Content: text, Timestamp: now, Status: domain.MessageSent}); err != nil {
		t.Fatalf("append m1: %v", err)
	}
	m2, err := s.AppendMessage(ctx, domain.Message{ID: "m2", ChatID: "c1", SenderID: "b", Content: text, Timestamp: now.Add(-time.Second), Status: domain.MessageSent})
	if err != nil {
		t.Fatalf("append m2: %v", err)
	}
	if m2.Timestamp.Before(now) {
		t.Fatalf("timestamp went backwards: %v < %v", m2.Timestamp, now)
	}

	n, err := s.AdvanceStatus(ctx, "c1", "b", domain.MessageRead)
	if err != nil || n != 1 {
		t.Fatalf("advance: n=%d err=%v", n, err)
	}
	if unread, _ := s.CountUnread(ctx, "c1", "a"); unread != 1 {
		t.Fatalf("a should still have one unread, got %d", unread)
	}
	if _, err := s.AppendMessage(ctx, domain.Message{ID: "m3", ChatID: "nope", SenderID: "a", Content: text, Timestamp: now}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("append to missing chat: %v", err)
	}
}

func TestReadsDoNotAliasStoredValues(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	if err := s.CreateOrder(ctx, domain.Order{ID: "o1", CustomerID: "c", Title: "t", Price: 10, Status: domain.OrderPending,
		Coordinates: &domain.Location{Lat: 1, Lng: 2}, CreatedAt: now}); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := s.TransitionOrder(ctx, domain.Transition{OrderID: "o1", From: domain.OrderPending, To: domain.OrderAccepted, WorkerID: "w", At: now}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	o, _ := s.GetOrder(ctx, "o1")
	o.Coordinates.Lat = 89
	*o.AcceptedAt = now.Add(time.Hour)
	again, _ := s.GetOrder(ctx, "o1")
	if again.Coordinates.Lat != 1 || !again.AcceptedAt.Equal(now) {
		t.Fatalf("order mutated through a read: %+v", again)
	}

	if _, _, err := s.GetOrCreateChat(ctx, domain.Chat{ID: "c1", Participants: [2]string{"a", "b"}, CreatedAt: now}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	sent := domain.Message{ID: "m1", ChatID: "c1", SenderID: "a", Timestamp: now, Status: domain.MessageSent,
		Content:     domain.MessageContent{Kind: domain.ContentAttachment},
		Attachments: []domain.Attachment{{Name: "a.png", URL: "/uploads/a.png"}}}
	if _, err := s.AppendMessage(ctx, sent); err != nil {
		t.Fatalf("append: %v", err)
	}
	sent.Attachments[0].URL = "changed"

	c, _ := s.GetChat(ctx, "c1")
	c.LastMessage.Status = domain.MessageRead
	c.LastMessage.Attachments[0].Name = "changed"
	c, _ = s.GetChat(ctx, "c1")
	if c.LastMessage.Status != domain.MessageSent || c.LastMessage.Attachments[0].Name != "a.png" {
		t.Fatalf("chat mutated through a read: %+v", c.LastMessage)
	}
	msgs, _ := s.ListMessages(ctx, "c1", time.Time{})
	if msgs[0].Attachments[0].URL != "/uploads/a.png" {
		t.Fatalf("stored attachment aliases the caller's slice: %+v", msgs[0].Attachments)
	}
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, New())
}
