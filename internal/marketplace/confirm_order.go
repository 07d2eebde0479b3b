package marketplace

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/middleware"
)

type transitionFunc func(ctx context.Context, actor domain.User, id string) (domain.Order, error)

func (h *Handler) lifecycle(fn transitionFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := middleware.Principal(c)
		if err != nil {
			return err
		}
		o, err := fn(c.Request().Context(), actor, c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, o)
	}
}

// AcceptOrder - POST /orders/:id/accept
func (h *Handler) AcceptOrder(c echo.Context) error { return h.lifecycle(h.svc.Accept)(c) }

// StartOrder - POST /orders/:id/start
func (h *Handler) StartOrder(c echo.Context) error { return h.lifecycle(h.svc.Start)(c) }

// CompleteOrder - POST /orders/:id/complete
func (h *Handler) CompleteOrder(c echo.Context) error { return h.lifecycle(h.svc.Complete)(c) }

// CancelOrder - POST /orders/:id/cancel
func (h *Handler) CancelOrder(c echo.Context) error { return h.lifecycle(h.svc.Cancel)(c) }
