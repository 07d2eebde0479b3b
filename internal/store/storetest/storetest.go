// Package storetest holds the behaviour every store.Store backend must share.
// Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/store"
)

// Run exercises st. Every case uses fresh ids, so one store may serve all
// of them.
func Run(t *testing.T, st store.Store) {
	t.Run("TransitionIsCompareAndSwap", func(t *testing.T) { transitionCAS(t, st) })
	t.Run("ConcurrentAcceptHasOneWinner", func(t *testing.T) { concurrentAccept(t, st) })
	t.Run("SettlementAppliesOnce", func(t *testing.T) { settlementOnce(t, st) })
	t.Run("UpdateOnlyWhilePending", func(t *testing.T) { updatePending(t, st) })
	t.Run("ReviewOnce", func(t *testing.T) { reviewOnce(t, st) })
	t.Run("ChatPairIsUnique", func(t *testing.T) { chatPair(t, st) })
	t.Run("MessagesStayOrdered", func(t *testing.T) { messageOrder(t, st) })
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func user(t *testing.T, st store.Store, role domain.Role) domain.User {
	t.Helper()
	id := uuid.NewString()
	at := now()
	u := domain.User{ID: id, Name: "user-" + id[:8], Email: id + "@example.com", PasswordHash: "x", Role: role, CreatedAt: at, UpdatedAt: at}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func order(t *testing.T, st store.Store, customerID string, price int64) domain.Order {
	t.Helper()
	o := domain.Order{ID: uuid.NewString(), CustomerID: customerID, Title: "Fix the sink", Price: price, Status: domain.OrderPending, CreatedAt: now()}
	if err := st.CreateOrder(context.Background(), o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func accept(o domain.Order, workerID string) domain.Transition {
	return domain.Transition{OrderID: o.ID, From: domain.OrderPending, To: domain.OrderAccepted, WorkerID: workerID, At: now()}
}

func transitionCAS(t *testing.T, st store.Store) {
	ctx := context.Background()
	c := user(t, st, domain.RoleCustomer)
	w := user(t, st, domain.RoleWorker)
	o := order(t, st, c.ID, 1000)

	got, err := st.TransitionOrder(ctx, accept(o, w.ID))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != domain.OrderAccepted || got.WorkerID != w.ID || got.AcceptedAt == nil {
		t.Fatalf("accept not recorded: %+v", got)
	}
	if _, err := st.TransitionOrder(ctx, accept(o, w.ID)); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("stale from status: expected conflict, got %v", err)
	}
	missing := domain.Order{ID: uuid.NewString()}
	if _, err := st.TransitionOrder(ctx, accept(missing, w.ID)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing order: expected not found, got %v", err)
	}

	stored, err := st.GetOrder(ctx, o.ID)
	if err != nil || stored.Status != domain.OrderAccepted {
		t.Fatalf("stored order: %+v (%v)", stored, err)
	}
}

func concurrentAccept(t *testing.T, st store.Store) {
	ctx := context.Background()
	c := user(t, st, domain.RoleCustomer)
	o := order(t, st, c.ID, 1000)

	const n = 12
	workers := make([]domain.User, n)
	for i := range workers {
		workers[i] = user(t, st, domain.RoleWorker)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	for _, w := range workers {
		wg.Add(1)
		go func(w domain.User) {
			defer wg.Done()
			_, err := st.TransitionOrder(ctx, accept(o, w.ID))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, w.ID)
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("accept: %v", err)
			}
		}(w)
	}
	wg.Wait()

	if len(winners) != 1 || conflicts != n-1 {
		t.Fatalf("expected one winner and %d conflicts, got %d winners and %d conflicts", n-1, len(winners), conflicts)
	}
	stored, _ := st.GetOrder(ctx, o.ID)
	if stored.WorkerID != winners[0] {
		t.Fatalf("stored worker %q is not the winner %q", stored.WorkerID, winners[0])
	}
}

func settlementOnce(t *testing.T, st store.Store) {
	ctx := context.Background()
	c := user(t, st, domain.RoleCustomer)
	w := user(t, st, domain.RoleWorker)
	o := order(t, st, c.ID, 50000)

	if _, err := st.TransitionOrder(ctx, accept(o, w.ID)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := st.TransitionOrder(ctx, domain.Transition{OrderID: o.ID, From: domain.OrderAccepted, To: domain.OrderInProgress, At: now()}); err != nil {
		t.Fatalf("start: %v", err)
	}

	commission, payout := domain.Split(o.Price)
	complete := domain.Transition{
		OrderID: o.ID, From: domain.OrderInProgress, To: domain.OrderCompleted, At: now(),
		Settlement: &domain.Settlement{WorkerID: w.ID, Payout: payout, Commission: commission},
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = st.TransitionOrder(ctx, complete)
		}(i)
	}
	wg.Wait()
	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, domain.ErrConflict):
			t.Fatalf("complete: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one completion, got %d", ok)
	}

	got, err := st.GetUser(ctx, w.ID)
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	if got.Balance != payout || got.CompletedJobs != 1 {
		t.Fatalf("worker credited %d for %d jobs, want %d for 1", got.Balance, got.CompletedJobs, payout)
	}
	entries, err := st.ListLedger(ctx, w.ID)
	if err != nil || len(entries) != 1 || entries[0].Amount != payout || entries[0].Kind != domain.LedgerSettlementCredit {
		t.Fatalf("worker ledger: %+v (%v)", entries, err)
	}
	platform, err := st.ListLedger(ctx, domain.PlatformAccount)
	if err != nil {
		t.Fatalf("platform ledger: %v", err)
	}
	var forOrder []domain.LedgerEntry
	for _, e := range platform {
		if e.OrderID == o.ID {
			forOrder = append(forOrder, e)
		}
	}
	if len(forOrder) != 1 || forOrder[0].Amount != commission {
		t.Fatalf("platform commission for order: %+v", forOrder)
	}
}

func updatePending(t *testing.T, st store.Store) {
	ctx := context.Background()
	c := user(t, st, domain.RoleCustomer)
	w := user(t, st, domain.RoleWorker)
	o := order(t, st, c.ID, 1000)

	title := "Fix the kitchen sink"
	updated, err := st.UpdateOrder(ctx, o.ID, domain.OrderPatch{Title: &title, Coordinates: &domain.Location{Lat: 41.3, Lng: 69.2}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || updated.Price != o.Price || updated.Coordinates == nil {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := st.TransitionOrder(ctx, accept(o, w.ID)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := st.UpdateOrder(ctx, o.ID, domain.OrderPatch{Title: &title}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("update after accept: expected conflict, got %v", err)
	}
	if _, err := st.UpdateOrder(ctx, uuid.NewString(), domain.OrderPatch{Title: &title}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update missing: expected not found, got %v", err)
	}
}

func reviewOnce(t *testing.T, st store.Store) {
	ctx := context.Background()
	c := user(t, st, domain.RoleCustomer)
	w := user(t, st, domain.RoleWorker)
	o := order(t, st, c.ID, 1000)

	review := domain.Review{Rating: 4, Comment: "tidy work", CreatedAt: now()}
	if _, err := st.SetReview(ctx, o.ID, review); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("review before completion: expected conflict, got %v", err)
	}
	steps := []domain.Transition{
		accept(o, w.ID),
		{OrderID: o.ID, From: domain.OrderAccepted, To: domain.OrderInProgress, At: now()},
		{OrderID: o.ID, From: domain.OrderInProgress, To: domain.OrderCompleted, At: now()},
	}
	for _, step := range steps {
		if _, err := st.TransitionOrder(ctx, step); err != nil {
			t.Fatalf("%s: %v", step.To, err)
		}
	}

	got, err := st.SetReview(ctx, o.ID, review)
	if err != nil || got.Review == nil || got.Review.Rating != 4 {
		t.Fatalf("review: %+v (%v)", got.Review, err)
	}
	if _, err := st.SetReview(ctx, o.ID, review); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second review: expected conflict, got %v", err)
	}
	rated, _ := st.GetUser(ctx, w.ID)
	if rated.Rating != 4 || rated.RatingCount != 1 {
		t.Fatalf("worker rating %v over %d reviews", rated.Rating, rated.RatingCount)
	}
}

func chatPair(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := user(t, st, domain.RoleCustomer)
	b := user(t, st, domain.RoleWorker)

	const n = 8
	var wg sync.WaitGroup
	ids := make([]string, n)
	created := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pair := [2]string{a.ID, b.ID}
			if i%2 == 1 {
				pair = [2]string{b.ID, a.ID}
			}
			c, ok, err := st.GetOrCreateChat(ctx, domain.Chat{ID: uuid.NewString(), Participants: pair, CreatedAt: now()})
			if err != nil {
				t.Errorf("get or create: %v", err)
				return
			}
			ids[i], created[i] = c.ID, ok
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := range ids {
		if ids[i] != ids[0] {
			t.Fatalf("pair produced two chats: %s and %s", ids[0], ids[i])
		}
		if created[i] {
			fresh++
		}
	}
	if fresh != 1 {
		t.Fatalf("expected one creation, got %d", fresh)
	}
	chats, err := st.ListChats(ctx, a.ID)
	if err != nil || len(chats) != 1 {
		t.Fatalf("list chats: %d (%v)", len(chats), err)
	}
}

func messageOrder(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := user(t, st, domain.RoleCustomer)
	b := user(t, st, domain.RoleWorker)
	c, _, err := st.GetOrCreateChat(ctx, domain.Chat{ID: uuid.NewString(), Participants: [2]string{a.ID, b.ID}, CreatedAt: now()})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	base := now()
	text := domain.MessageContent{Kind: domain.ContentText, Text: "salom"}
	first, err := st.AppendMessage(ctx, domain.Message{ID: uuid.NewString(), ChatID: c.ID, SenderID: a.ID, Content: text, Timestamp: base, Status: domain.MessageSent})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	late, err := st.AppendMessage(ctx, domain.Message{ID: uuid.NewString(), ChatID: c.ID, SenderID: b.ID, Content: text, Timestamp: base.Add(-time.Minute), Status: domain.MessageSent})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if late.Timestamp.Before(first.Timestamp) {
		t.Fatalf("timestamp went backwards: %v before %v", late.Timestamp, first.Timestamp)
	}
	if _, err := st.AppendMessage(ctx, domain.Message{ID: uuid.NewString(), ChatID: uuid.NewString(), SenderID: a.ID, Content: text, Timestamp: base}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("append to missing chat: expected not found, got %v", err)
	}

	msgs, err := st.ListMessages(ctx, c.ID, time.Time{})
	if err != nil || len(msgs) != 2 || msgs[0].ID != first.ID || msgs[1].ID != late.ID {
		t.Fatalf("history out of order: %+v (%v)", msgs, err)
	}
	stored, err := st.GetChat(ctx, c.ID)
	if err != nil || stored.LastMessage == nil || stored.LastMessage.ID != late.ID {
		t.Fatalf("last message: %+v (%v)", stored.LastMessage, err)
	}

	n, err := st.AdvanceStatus(ctx, c.ID, b.ID, domain.MessageRead)
	if err != nil || n != 1 {
		t.Fatalf("advance: %d (%v)", n, err)
	}
	if unread, _ := st.CountUnread(ctx, c.ID, b.ID); unread != 0 {
		t.Fatalf("reader still has %d unread", unread)
	}
	if unread, _ := st.CountUnread(ctx, c.ID, a.ID); unread != 1 {
		t.Fatalf("sender should have 1 unread, got %d", unread)
	}
}
