package user

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/store/memory"
)

func seedUser(t *testing.T, st *memory.Store, id, email string, role domain.Role) domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := domain.User{ID: id, Name: id, Email: email, PasswordHash: "x", Role: role, CreatedAt: now, UpdatedAt: now}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func ptr[T any](v T) *T { return &v }

func TestUpdateRoundTrip(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	ctx := context.Background()
	w := seedUser(t, st, "w1", "w1@example.com", domain.RoleWorker)

	skills := []string{"Plumbing", "tiling"}
	patch := domain.UserPatch{
		Name:       ptr("Bekzod"),
		Surname:    ptr("Karimov"),
		Phone:      ptr("+998 90 123 45 67"),
		Email:      ptr("bekzod.k@example.com"),
		Skills:     &skills,
		HourlyRate: ptr(int64(50000)),
		Location:   &domain.Location{Lat: 41.31, Lng: 69.24},
		AvatarURL:  ptr("/uploads/a.png"),
		Bio:        ptr("  Ten years of pipes.  "),
	}
	if _, err := svc.Update(ctx, w, w.ID, patch); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := svc.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	checks := []struct {
		field     string
		got, want any
	}{
		{"name", got.Name, *patch.Name},
		{"surname", got.Surname, *patch.Surname},
		{"phone", got.Phone, *patch.Phone},
		{"email", got.Email, *patch.Email},
		{"hourlyRate", got.HourlyRate, *patch.HourlyRate},
		{"avatarUrl", got.AvatarURL, *patch.AvatarURL},
		{"bio", got.Bio, *patch.Bio},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.field, c.got, c.want)
		}
	}
	if !reflect.DeepEqual(got.Skills, skills) {
		t.Errorf("skills: got %q, want %q", got.Skills, skills)
	}
	if got.Location == nil || *got.Location != *patch.Location {
		t.Errorf("location: got %+v, want %+v", got.Location, patch.Location)
	}
	if got.PasswordHash != "x" {
		t.Fatalf("profile update must keep the password hash")
	}
	if byEmail, err := st.GetUserByEmail(ctx, "bekzod.k@example.com"); err != nil || byEmail.ID != w.ID {
		t.Fatalf("new email not indexed: %+v (%v)", byEmail, err)
	}
}

func TestUpdateRejectsNonCanonicalValues(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	ctx := context.Background()
	w := seedUser(t, st, "w1", "w1@example.com", domain.RoleWorker)

	tests := []struct {
		name  string
		patch domain.UserPatch
		field string
	}{
		{"display name form", domain.UserPatch{Email: ptr("Bob <bob@example.com>")}, "email"},
		{"mixed case email", domain.UserPatch{Email: ptr("New@Example.com")}, "email"},
		{"padded email", domain.UserPatch{Email: ptr(" new@example.com")}, "email"},
		{"not an email", domain.UserPatch{Email: ptr("nobody")}, "email"},
		{"padded skill", domain.UserPatch{Skills: &[]string{" plumbing "}}, "skills"},
		{"empty skill", domain.UserPatch{Skills: &[]string{"tiling", ""}}, "skills"},
		{"duplicate skill", domain.UserPatch{Skills: &[]string{"Plumbing", "plumbing"}}, "skills"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, w, w.ID, tt.patch)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}

	got, _ := svc.Get(ctx, w.ID)
	if got.Email != "w1@example.com" || len(got.Skills) != 0 {
		t.Fatalf("rejected patches must not change the user: %+v", got)
	}
}

func TestUpdateAuthorization(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	ctx := context.Background()
	a := seedUser(t, st, "a", "a@example.com", domain.RoleCustomer)
	b := seedUser(t, st, "b", "b@example.com", domain.RoleWorker)
	admin := seedUser(t, st, "root", "root@example.com", domain.RoleAdmin)

	if _, err := svc.Update(ctx, a, b.ID, domain.UserPatch{Bio: ptr("hi")}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Update(ctx, admin, b.ID, domain.UserPatch{Bio: ptr("hi")}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if _, err := svc.Update(ctx, a, a.ID, domain.UserPatch{Email: ptr("b@example.com")}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on taken email, got %v", err)
	}
	if _, err := svc.Update(ctx, a, a.ID, domain.UserPatch{Name: ptr("  ")}); err == nil {
		t.Fatalf("expected validation error for blank name")
	}
}

func TestListFiltersByRole(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	ctx := context.Background()
	seedUser(t, st, "c1", "c1@example.com", domain.RoleCustomer)
	seedUser(t, st, "w1", "w1@example.com", domain.RoleWorker)
	seedUser(t, st, "w2", "w2@example.com", domain.RoleWorker)

	workers, err := svc.List(ctx, "worker")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(workers) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(workers))
	}
	all, err := svc.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 users, got %d (%v)", len(all), err)
	}
	if _, err := svc.List(ctx, "pilot"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestToggleOnline(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	ctx := context.Background()
	w := seedUser(t, st, "w1", "w1@example.com", domain.RoleWorker)

	u, err := svc.ToggleOnline(ctx, w, w.ID)
	if err != nil || !u.IsOnline {
		t.Fatalf("expected online, got %+v (%v)", u, err)
	}
	u, err = svc.ToggleOnline(ctx, w, w.ID)
	if err != nil || u.IsOnline {
		t.Fatalf("expected offline, got %+v (%v)", u, err)
	}
}
