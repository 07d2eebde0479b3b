package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/httpx"
	"github.com/sudo-init-do/mardikor/internal/middleware"
	"github.com/sudo-init-do/mardikor/internal/store"
)

// Store is the persistence the admin console reads and moderates.
type Store interface {
	store.UserStore
	Stats(ctx context.Context) (store.Stats, error)
}

// Service backs the admin dashboard. Callers are expected to have passed
// middleware.RequireAdmin.
type Service struct {
	store Store
}

func NewService(st Store) *Service {
	return &Service{store: st}
}

func (s *Service) ListUsers(ctx context.Context, role string) ([]domain.User, error) {
	var r domain.Role
	if role != "" {
		var ok bool
		if r, ok = domain.ParseRole(role); !ok {
			return nil, domain.NewValidationError("role", "unknown role")
		}
	}
	users, err := s.store.ListUsers(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SetBanned suspends or restores an account. Banned users cannot log in,
// post or accept orders, or send messages.
func (s *Service) SetBanned(ctx context.Context, actor domain.User, id string, banned bool) (domain.User, error) {
	if id == actor.ID {
		return domain.User{}, domain.NewValidationError("id", "admins cannot ban themselves")
	}
	u, err := s.store.SetBanned(ctx, id, banned)
	if err != nil {
		return domain.User{}, fmt.Errorf("set banned: %w", err)
	}
	slog.Info("user moderation", "user_id", id, "banned", banned, "admin_id", actor.ID)
	return u, nil
}

func (s *Service) SetRole(ctx context.Context, actor domain.User, id string, role string) (domain.User, error) {
	r, ok := domain.ParseRole(role)
	if !ok {
		return domain.User{}, domain.NewValidationError("role", "unknown role")
	}
	if id == actor.ID && r != domain.RoleAdmin {
		return domain.User{}, domain.NewValidationError("role", "admins cannot demote themselves")
	}
	u, err := s.store.SetRole(ctx, id, r)
	if err != nil {
		return domain.User{}, fmt.Errorf("set role: %w", err)
	}
	slog.Info("user role changed", "user_id", id, "role", r, "admin_id", actor.ID)
	return u, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type RoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// GET /admin/users?role=
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.svc.ListUsers(c.Request().Context(), c.QueryParam("role"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// POST /admin/users/:id/ban
func (h *Handler) BanUser(c echo.Context) error {
	return h.moderate(c, true)
}

// POST /admin/users/:id/unban
func (h *Handler) UnbanUser(c echo.Context) error {
	return h.moderate(c, false)
}

func (h *Handler) moderate(c echo.Context, banned bool) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	u, err := h.svc.SetBanned(c.Request().Context(), actor, c.Param("id"), banned)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// PUT /admin/users/:id/role
func (h *Handler) SetRole(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var req RoleRequest
	if err := httpx.BindAndValidate(c, &req); err != nil {
		return err
	}
	u, err := h.svc.SetRole(c.Request().Context(), actor, c.Param("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
