package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/httpx"
)

type BootstrapAdminRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Secret string `json:"secret" validate:"required"`
}

// BootstrapAdmin promotes an existing account when the caller knows the
// bootstrap secret. An empty secret disables the operation.
func (s *Service) BootstrapAdmin(ctx context.Context, secret, email string) (domain.User, error) {
	if s.bootstrapSecret == "" {
		return domain.User{}, fmt.Errorf("bootstrap disabled: %w", domain.ErrForbidden)
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.bootstrapSecret)) != 1 {
		return domain.User{}, fmt.Errorf("invalid bootstrap secret: %w", domain.ErrForbidden)
	}
	u, err := s.users.GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	promoted, err := s.users.SetRole(ctx, u.ID, domain.RoleAdmin)
	if err != nil {
		return domain.User{}, fmt.Errorf("promote user: %w", err)
	}
	slog.Warn("admin bootstrapped", "user_id", promoted.ID)
	return promoted, nil
}

// POST /auth/bootstrap-admin
func (h *Handler) BootstrapAdmin(c echo.Context) error {
	req := new(BootstrapAdminRequest)
	if err := httpx.BindAndValidate(c, req); err != nil {
		return err
	}
	u, err := h.svc.BootstrapAdmin(c.Request().Context(), req.Secret, req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
