package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/httpx"
	"github.com/sudo-init-do/mardikor/internal/store"
)

// Service reads and edits user profiles.
type Service struct {
	users store.UserStore
	now   func() time.Time
}

func NewService(users store.UserStore) *Service {
	return &Service{users: users, now: time.Now}
}

// List returns every user, or only those of role when it is set.
func (s *Service) List(ctx context.Context, role string) ([]domain.User, error) {
	var r domain.Role
	if role != "" {
		parsed, ok := domain.ParseRole(role)
		if !ok {
			return nil, domain.NewValidationError("role", "unknown role")
		}
		r = parsed
	}
	users, err := s.users.ListUsers(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Update applies patch to the profile of id. Only the owner or an admin
// may do so; role, balance and rating are not part of a patch.
func (s *Service) Update(ctx context.Context, actor domain.User, id string, patch domain.UserPatch) (domain.User, error) {
	if !actor.CanManage(id) {
		return domain.User{}, domain.ErrForbidden
	}
	if err := validatePatch(patch); err != nil {
		return domain.User{}, err
	}

	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if patch.Empty() {
		return u, nil
	}
	patch.Apply(&u)
	u.PasswordHash = ""
	u.UpdatedAt = s.now().UTC()

	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

// validatePatch rejects values the store would not keep verbatim, so a
// successful update reads back exactly as sent.
func validatePatch(p domain.UserPatch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return domain.NewValidationError("name", "must not be empty")
	}
	if p.Email != nil {
		if *p.Email != domain.NormalizeEmail(*p.Email) {
			return domain.NewValidationError("email", "must be lowercase without surrounding spaces")
		}
		if err := httpx.ValidateVar("email", *p.Email, "required,email"); err != nil {
			return err
		}
	}
	if p.HourlyRate != nil && *p.HourlyRate < 0 {
		return domain.NewValidationError("hourlyRate", "must not be negative")
	}
	if p.Location != nil && !p.Location.Valid() {
		return domain.NewValidationError("location", "coordinates out of range")
	}
	if p.Skills != nil {
		seen := make(map[string]bool, len(*p.Skills))
		for _, sk := range *p.Skills {
			if sk == "" || strings.TrimSpace(sk) != sk {
				return domain.NewValidationError("skills", "entries must be non-empty and trimmed")
			}
			key := strings.ToLower(sk)
			if seen[key] {
				return domain.NewValidationError("skills", fmt.Sprintf("duplicate skill %q", sk))
			}
			seen[key] = true
		}
	}
	return nil
}

// ToggleOnline flips the availability flag of id.
func (s *Service) ToggleOnline(ctx context.Context, actor domain.User, id string) (domain.User, error) {
	if !actor.CanManage(id) {
		return domain.User{}, domain.ErrForbidden
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	updated, err := s.users.SetOnline(ctx, id, !u.IsOnline)
	if err != nil {
		return domain.User{}, fmt.Errorf("toggle online: %w", err)
	}
	return updated, nil
}
