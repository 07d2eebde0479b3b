package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	return NewService(st, NewTokens("test-secret", time.Hour)), st
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, token, err := svc.Register(ctx, RegisterInput{
		Name:     "Aziz",
		Email:    " Aziz@Example.com ",
		Password: "secret1",
		Role:     "worker",
		Skills:   []string{"plumbing"},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != domain.RoleWorker || u.Email != "aziz@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.PasswordHash == "secret1" || u.PasswordHash == "" {
		t.Fatalf("password must be stored hashed")
	}
	if token == "" {
		t.Fatalf("expected token")
	}

	got, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("token resolved to %q, want %q", got.ID, u.ID)
	}

	if _, _, err := svc.Login(ctx, "AZIZ@example.com", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := svc.Login(ctx, "aziz@example.com", "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmailAndAdminRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := RegisterInput{Name: "Dilnoza", Email: "d@example.com", Password: "secret1", Role: "CUSTOMER"}
	if _, _, err := svc.Register(ctx, in); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Register(ctx, in); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	in.Email = "root@example.com"
	in.Role = "ADMIN"
	var vErr *domain.ValidationError
	if _, _, err := svc.Register(ctx, in); !errors.As(err, &vErr) || vErr.Field != "role" {
		t.Fatalf("expected role validation error, got %v", err)
	}
}

func TestLoginRejectsBannedUser(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	u, _, err := svc.Register(ctx, RegisterInput{Name: "B", Email: "b@example.com", Password: "secret1", Role: "WORKER"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := st.SetBanned(ctx, u.ID, true); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if _, _, err := svc.Login(ctx, "b@example.com", "secret1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Authenticate(ctx, "not-a-jwt"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	other := NewTokens("other-secret", time.Hour)
	forged, err := other.Issue(domain.User{ID: "u1", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Authenticate(ctx, forged); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for foreign signature, got %v", err)
	}

	// valid signature but the user no longer exists
	ghost, err := svc.tokens.Issue(domain.User{ID: "ghost", Role: domain.RoleWorker})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Authenticate(ctx, ghost); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	tokens := NewTokens("s", time.Minute)
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }

	tok, err := tokens.Issue(domain.User{ID: "u1", Role: domain.RoleCustomer})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tokens.Parse(tok); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	tokens.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := tokens.Parse(tok); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, _, err := svc.Register(ctx, RegisterInput{Name: "C", Email: "c@example.com", Password: "secret1", Role: "CUSTOMER"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "wrong", "secret2"); err == nil {
		t.Fatalf("expected mismatch error")
	}
	if err := svc.ChangePassword(ctx, u.ID, "secret1", "secret2"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "c@example.com", "secret2"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.EnsureAdmin(ctx, "root@example.com", "rootpass")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if admin.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", admin.Role)
	}
	again, err := svc.EnsureAdmin(ctx, "root@example.com", "rootpass")
	if err != nil || again.ID != admin.ID {
		t.Fatalf("ensure admin must be idempotent: %v", err)
	}

	u, _, err := svc.Register(ctx, RegisterInput{Name: "W", Email: "w@example.com", Password: "secret1", Role: "WORKER"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	promoted, err := svc.EnsureAdmin(ctx, "w@example.com", "ignored")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.ID != u.ID || promoted.Role != domain.RoleAdmin {
		t.Fatalf("expected existing user promoted, got %+v", promoted)
	}
}

func TestBootstrapAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, _, err := svc.Register(ctx, RegisterInput{Name: "Nodira", Email: "nodira@example.com", Password: "secret1", Role: "CUSTOMER"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.BootstrapAdmin(ctx, "anything", u.Email); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("disabled bootstrap: expected forbidden, got %v", err)
	}

	svc.EnableBootstrap("let-me-in")
	if _, err := svc.BootstrapAdmin(ctx, "wrong", u.Email); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("wrong secret: expected forbidden, got %v", err)
	}
	if _, err := svc.BootstrapAdmin(ctx, "let-me-in", "ghost@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown email: expected not found, got %v", err)
	}
	promoted, err := svc.BootstrapAdmin(ctx, "let-me-in", "NODIRA@example.com")
	if err != nil || promoted.Role != domain.RoleAdmin {
		t.Fatalf("bootstrap: %+v %v", promoted, err)
	}
}
