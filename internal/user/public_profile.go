package user

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/middleware"
)

type Handler struct {
	svc     *Service
	avatars *AvatarStore
}

func NewHandler(svc *Service, avatars *AvatarStore) *Handler {
	return &Handler{svc: svc, avatars: avatars}
}

// view hides private fields unless the caller owns the profile or is an admin.
func view(c echo.Context, u domain.User) domain.User {
	if actor, ok := middleware.OptionalPrincipal(c); ok && actor.CanManage(u.ID) {
		return u
	}
	return u.Public()
}

// GET /users?role=WORKER
func (h *Handler) List(c echo.Context) error {
	users, err := h.svc.List(c.Request().Context(), c.QueryParam("role"))
	if err != nil {
		return err
	}
	out := make([]domain.User, len(users))
	for i, u := range users {
		out[i] = view(c, u)
	}
	return c.JSON(http.StatusOK, out)
}

// GET /users/:id
func (h *Handler) Get(c echo.Context) error {
	u, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view(c, u))
}

// PUT /users/:id/online
func (h *Handler) ToggleOnline(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	u, err := h.svc.ToggleOnline(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
