package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/store/memory"
)

func seed(t *testing.T) (*memory.Store, domain.User) {
	t.Helper()
	st := memory.New()
	ctx := context.Background()
	users := []domain.User{
		{ID: "a1", Name: "root", Email: "root@example.com", Role: domain.RoleAdmin},
		{ID: "w1", Name: "w", Email: "w1@example.com", Role: domain.RoleWorker},
		{ID: "w2", Name: "w", Email: "w2@example.com", Role: domain.RoleWorker},
		{ID: "c1", Name: "c", Email: "c1@example.com", Role: domain.RoleCustomer},
	}
	for _, u := range users {
		if err := st.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	o := domain.Order{ID: "o1", CustomerID: "c1", Title: "t", Price: 500, Status: domain.OrderPending, CreatedAt: time.Now().UTC()}
	if err := st.CreateOrder(ctx, o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return st, users[0]
}

func TestListUsersByRole(t *testing.T) {
	st, _ := seed(t)
	svc := NewService(st)

	workers, err := svc.ListUsers(context.Background(), "worker")
	if err != nil || len(workers) != 2 {
		t.Fatalf("expected 2 workers, got %d (%v)", len(workers), err)
	}
	all, err := svc.ListUsers(context.Background(), "")
	if err != nil || len(all) != 4 {
		t.Fatalf("expected 4 users, got %d (%v)", len(all), err)
	}
	if _, err := svc.ListUsers(context.Background(), "fan"); err == nil {
		t.Fatalf("expected validation error for unknown role")
	}
}

func TestBanAndUnban(t *testing.T) {
	st, admin := seed(t)
	svc := NewService(st)
	ctx := context.Background()

	u, err := svc.SetBanned(ctx, admin, "w1", true)
	if err != nil || !u.IsBanned {
		t.Fatalf("ban: %+v %v", u, err)
	}
	u, err = svc.SetBanned(ctx, admin, "w1", false)
	if err != nil || u.IsBanned {
		t.Fatalf("unban: %+v %v", u, err)
	}
	if _, err := svc.SetBanned(ctx, admin, admin.ID, true); err == nil {
		t.Fatalf("expected admins to be unable to ban themselves")
	}
	if _, err := svc.SetBanned(ctx, admin, "ghost", true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetRoleAndStats(t *testing.T) {
	st, admin := seed(t)
	svc := NewService(st)
	ctx := context.Background()

	u, err := svc.SetRole(ctx, admin, "c1", "admin")
	if err != nil || u.Role != domain.RoleAdmin {
		t.Fatalf("promote: %+v %v", u, err)
	}
	if _, err := svc.SetRole(ctx, admin, admin.ID, "worker"); err == nil {
		t.Fatalf("expected self demotion to fail")
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.UsersByRole[domain.RoleAdmin] != 2 || stats.UsersByRole[domain.RoleWorker] != 2 {
		t.Fatalf("unexpected users by role %+v", stats.UsersByRole)
	}
	if stats.OrdersByStatus[domain.OrderPending] != 1 {
		t.Fatalf("unexpected orders by status %+v", stats.OrdersByStatus)
	}
}
