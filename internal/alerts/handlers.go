package alerts

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/httpx"
	"github.com/sudo-init-do/mardikor/internal/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListNotifications returns a user's notifications, newest first.
// GET /notifications?userId=&since=
func (h *Handler) ListNotifications(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	since, err := httpx.ParseSince(c.QueryParam("since"))
	if err != nil {
		return err
	}
	items, err := h.svc.ListForUser(c.Request().Context(), actor, c.QueryParam("userId"), since)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// CreateNotification lets an admin post a SYSTEM or other notice to a user.
func (h *Handler) CreateNotification(c echo.Context) error {
	req := new(CreateInput)
	if err := httpx.BindAndValidate(c, req); err != nil {
		return err
	}
	n, err := h.svc.Create(c.Request().Context(), *req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

// MarkNotificationRead marks specific notification as read
func (h *Handler) MarkNotificationRead(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkRead(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// PUT /notifications/read-all?userId=
func (h *Handler) MarkAllRead(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	updated, err := h.svc.MarkAllRead(c.Request().Context(), actor, c.QueryParam("userId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": updated})
}

func (h *Handler) DeleteNotification(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
