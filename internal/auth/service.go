package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/store"
)

// Service registers accounts, checks credentials and resolves bearer tokens
// back to users.
type Service struct {
	users           store.UserStore
	tokens          *Tokens
	bootstrapSecret string
	now             func() time.Time
}

func NewService(users store.UserStore, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens, now: time.Now}
}

// EnableBootstrap turns on BootstrapAdmin for callers presenting secret.
func (s *Service) EnableBootstrap(secret string) {
	s.bootstrapSecret = secret
}

// RegisterInput is the profile submitted at sign up.
type RegisterInput struct {
	Name       string           `json:"name" validate:"required,max=100"`
	Surname    string           `json:"surname" validate:"max=100"`
	Phone      string           `json:"phone" validate:"max=32"`
	Email      string           `json:"email" validate:"required,email"`
	Password   string           `json:"password" validate:"required,min=6,max=72"`
	Role       string           `json:"role" validate:"required"`
	Skills     []string         `json:"skills"`
	HourlyRate int64            `json:"hourlyRate" validate:"min=0"`
	Location   *domain.Location `json:"location"`
	Bio        string           `json:"bio" validate:"max=2000"`
}

// Register creates a WORKER or CUSTOMER account. ADMIN accounts only come
// from the seed or the promote tool.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, string, error) {
	role, ok := domain.ParseRole(in.Role)
	if !ok || role == domain.RoleAdmin {
		return domain.User{}, "", domain.NewValidationError("role", "must be WORKER or CUSTOMER")
	}
	if in.Location != nil && !in.Location.Valid() {
		return domain.User{}, "", domain.NewValidationError("location", "coordinates out of range")
	}

	u, err := s.newUser(in, role)
	if err != nil {
		return domain.User{}, "", err
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.User{}, "", fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		return domain.User{}, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return domain.User{}, "", err
	}
	slog.Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, token, nil
}

func (s *Service) newUser(in RegisterInput, role domain.Role) (domain.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Surname:      strings.TrimSpace(in.Surname),
		Phone:        strings.TrimSpace(in.Phone),
		Email:        domain.NormalizeEmail(in.Email),
		PasswordHash: string(hashed),
		Role:         role,
		Bio:          in.Bio,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if role == domain.RoleWorker {
		u.Skills = in.Skills
		u.HourlyRate = in.HourlyRate
	}
	if in.Location != nil {
		loc := *in.Location
		u.Location = &loc
	}
	return u, nil
}

// Login checks the credentials. Unknown email and wrong password fail the
// same way so accounts can't be enumerated.
func (s *Service) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	u, err := s.users.GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return domain.User{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, "", fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if u.IsBanned {
		return domain.User{}, "", fmt.Errorf("account suspended: %w", domain.ErrForbidden)
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return domain.User{}, "", err
	}
	return u, token, nil
}

// Authenticate resolves a bearer token to the current state of its user.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, fmt.Errorf("load principal: %w", err)
	}
	return u, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return domain.NewValidationError("currentPassword", "does not match")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hashed)
	u.UpdatedAt = s.now().UTC()
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}

// EnsureAdmin creates the seed admin account if the email is free, or
// promotes the existing account otherwise.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == domain.RoleAdmin {
			return existing, nil
		}
		slog.Info("promoting seed admin", "user_id", existing.ID)
		return s.users.SetRole(ctx, existing.ID, domain.RoleAdmin)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, fmt.Errorf("lookup seed admin: %w", err)
	}

	u, err := s.newUser(RegisterInput{Name: "Administrator", Email: email, Password: password}, domain.RoleAdmin)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("create seed admin: %w", err)
	}
	slog.Info("seed admin created", "user_id", u.ID)
	return u, nil
}
