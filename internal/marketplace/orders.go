package marketplace

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/events"
	"github.com/sudo-init-do/mardikor/internal/httpx"
	"github.com/sudo-init-do/mardikor/internal/middleware"
)

// Streamer relays a topic to a websocket client.
type Streamer interface {
	Serve(c echo.Context, topic, userID string) error
}

type Handler struct {
	svc    *Service
	stream Streamer
}

func NewHandler(svc *Service, stream Streamer) *Handler {
	return &Handler{svc: svc, stream: stream}
}

// =========================
// CreateOrder - POST /orders
// =========================
func (h *Handler) CreateOrder(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var req CreateOrderInput
	if err := httpx.BindAndValidate(c, &req); err != nil {
		return err
	}
	o, err := h.svc.CreateOrder(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

// =========================
// ListOrders - GET /orders?status=&category=&customerId=&workerId=&mine=true
// =========================
func (h *Handler) ListOrders(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	f := domain.OrderFilter{
		CustomerID: c.QueryParam("customerId"),
		WorkerID:   c.QueryParam("workerId"),
		Status:     domain.OrderStatus(c.QueryParam("status")),
		Category:   c.QueryParam("category"),
	}
	if v := c.QueryParam("mine"); v != "" {
		mine, err := strconv.ParseBool(v)
		if err != nil {
			return domain.NewValidationError("mine", "must be a boolean")
		}
		if mine {
			f.Participant = actor.ID
		}
	}
	orders, err := h.svc.ListOrders(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orders)
}

// GET /orders/:id
func (h *Handler) GetOrder(c echo.Context) error {
	o, err := h.svc.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

// OrderStream - GET /ws/orders/:id
// Participants and admins follow live status changes of one order.
func (h *Handler) OrderStream(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	o, err := h.svc.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if actor.ID != o.CustomerID && actor.ID != o.WorkerID && actor.Role != domain.RoleAdmin {
		return fmt.Errorf("not a participant in this order: %w", domain.ErrForbidden)
	}
	return h.stream.Serve(c, events.OrderTopic(o.ID), actor.ID)
}

// =========================
// UpdateOrder - PUT /orders/:id
// =========================
func (h *Handler) UpdateOrder(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var req UpdateOrderRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}
	if req.Price != nil {
		return domain.NewValidationError("price", "cannot be changed after creation")
	}

	id := c.Param("id")
	ctx := c.Request().Context()
	if req.Status != nil {
		if !req.OrderPatch.Empty() {
			return domain.NewValidationError("status", "cannot be combined with field edits")
		}
		o, err := h.svc.Transition(ctx, actor, id, *req.Status)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, o)
	}

	o, err := h.svc.UpdateOrder(ctx, actor, id, req.OrderPatch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}
