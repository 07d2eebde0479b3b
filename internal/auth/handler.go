package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/httpx"
	"github.com/sudo-init-do/mardikor/internal/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

// SessionResponse is the user plus the bearer token for later calls.
type SessionResponse struct {
	domain.User
	Token string `json:"token"`
}

// ===== Register =====
func (h *Handler) Register(c echo.Context) error {
	req := new(RegisterInput)
	if err := httpx.BindAndValidate(c, req); err != nil {
		return err
	}
	u, token, err := h.svc.Register(c.Request().Context(), *req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, SessionResponse{User: u, Token: token})
}

// ===== Login =====
func (h *Handler) Login(c echo.Context) error {
	req := new(LoginRequest)
	if err := httpx.BindAndValidate(c, req); err != nil {
		return err
	}
	u, token, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SessionResponse{User: u, Token: token})
}

// Me returns the currently authenticated user's profile
func (h *Handler) Me(c echo.Context) error {
	u, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// ===== Change password =====
func (h *Handler) ChangePassword(c echo.Context) error {
	u, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	req := new(ChangePasswordRequest)
	if err := httpx.BindAndValidate(c, req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), u.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
