package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/alerts"
	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/httpx"
	"github.com/sudo-init-do/mardikor/internal/middleware"
)

// Review lets the owning customer rate a completed order once. The rating
// is folded into the worker's average.
func (s *Service) Review(ctx context.Context, actor domain.User, id string, rating int, comment string) (domain.Order, error) {
	if rating < 1 || rating > 5 {
		return domain.Order{}, domain.NewValidationError("rating", "must be between 1 and 5")
	}
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.CustomerID != actor.ID {
		return domain.Order{}, fmt.Errorf("only the customer reviews an order: %w", domain.ErrForbidden)
	}
	if o.Status != domain.OrderCompleted {
		return domain.Order{}, fmt.Errorf("only completed orders can be reviewed: %w", domain.ErrConflict)
	}
	if o.Review != nil {
		return domain.Order{}, fmt.Errorf("order already reviewed: %w", domain.ErrConflict)
	}

	reviewed, err := s.orders.SetReview(ctx, id, domain.Review{
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("store review: %w", err)
	}
	s.notify.Notify(ctx, reviewed.WorkerID, alerts.ReviewNotice(reviewed, rating), reviewed.ID)
	s.publish(ctx, reviewed)
	return reviewed, nil
}

// ListWorkerReviews returns the reviewed orders of a worker, newest first.
func (s *Service) ListWorkerReviews(ctx context.Context, workerID string) ([]domain.Order, error) {
	orders, err := s.ListOrders(ctx, domain.OrderFilter{WorkerID: workerID, Status: domain.OrderCompleted})
	if err != nil {
		return nil, err
	}
	reviewed := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Review != nil {
			reviewed = append(reviewed, o)
		}
	}
	return reviewed, nil
}

// CreateReview allows a customer to rate and review a completed order
// POST /orders/:id/review
func (h *Handler) CreateReview(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var req CreateReviewRequest
	if err := httpx.BindAndValidate(c, &req); err != nil {
		return err
	}
	o, err := h.svc.Review(c.Request().Context(), actor, c.Param("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

// GetWorkerReviews lists a worker's reviewed orders
// GET /users/:id/reviews
func (h *Handler) GetWorkerReviews(c echo.Context) error {
	orders, err := h.svc.ListWorkerReviews(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orders)
}
