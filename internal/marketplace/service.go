package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/mardikor/internal/alerts"
	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/events"
	"github.com/sudo-init-do/mardikor/internal/store"
)

// Notifier addresses a notice to a user. Delivery problems stay inside the
// notifier.
type Notifier interface {
	Notify(ctx context.Context, userID string, notice alerts.Notice, relatedID string)
}

// Service runs the order lifecycle: posting, editing, the status machine,
// settlement on completion and reviews.
type Service struct {
	orders store.OrderStore
	users  store.UserStore
	notify Notifier
	pub    events.Publisher
	now    func() time.Time
}

func NewService(orders store.OrderStore, users store.UserStore, notify Notifier, pub events.Publisher) *Service {
	return &Service{orders: orders, users: users, notify: notify, pub: pub, now: time.Now}
}

// =========================
// CreateOrder - customer posts an order
// =========================
func (s *Service) CreateOrder(ctx context.Context, actor domain.User, in CreateOrderInput) (domain.Order, error) {
	if actor.Role != domain.RoleCustomer && actor.Role != domain.RoleAdmin {
		return domain.Order{}, fmt.Errorf("only customers post orders: %w", domain.ErrForbidden)
	}
	if actor.IsBanned {
		return domain.Order{}, fmt.Errorf("account suspended: %w", domain.ErrForbidden)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Order{}, domain.NewValidationError("title", "is required")
	}
	if !domain.ValidPrice(in.Price) {
		return domain.Order{}, domain.NewValidationError("price", fmt.Sprintf("must be between 1 and %d", domain.MaxOrderPrice))
	}
	if in.Coordinates != nil && !in.Coordinates.Valid() {
		return domain.Order{}, domain.NewValidationError("coordinates", "coordinates out of range")
	}

	o := domain.Order{
		ID:          uuid.NewString(),
		CustomerID:  actor.ID,
		Title:       title,
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		Location:    in.Location,
		Status:      domain.OrderPending,
		CreatedAt:   s.now().UTC(),
	}
	if in.Coordinates != nil {
		c := *in.Coordinates
		o.Coordinates = &c
	}
	if err := s.orders.CreateOrder(ctx, o); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	slog.Info("order created", "order_id", o.ID, "customer_id", o.CustomerID, "price", o.Price)
	s.publish(ctx, o)
	return o, nil
}

// ListOrders returns orders matching f, newest first.
func (s *Service) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.NewValidationError("status", "unknown status")
	}
	orders, err := s.orders.ListOrders(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// UpdateOrder edits the descriptive fields of a pending order. Only the
// owning customer or an admin may edit; the price never changes.
func (s *Service) UpdateOrder(ctx context.Context, actor domain.User, id string, p domain.OrderPatch) (domain.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.CustomerID != actor.ID && actor.Role != domain.RoleAdmin {
		return domain.Order{}, domain.ErrForbidden
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return domain.Order{}, domain.NewValidationError("title", "must not be empty")
	}
	if p.Coordinates != nil && !p.Coordinates.Valid() {
		return domain.Order{}, domain.NewValidationError("coordinates", "coordinates out of range")
	}
	if o.Status != domain.OrderPending {
		return domain.Order{}, fmt.Errorf("order is %s, only pending orders can be edited: %w", o.Status, domain.ErrConflict)
	}
	if p.Empty() {
		return o, nil
	}

	updated, err := s.orders.UpdateOrder(ctx, id, p)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}
	s.publish(ctx, updated)
	return updated, nil
}

// publish announces the current state of o to its topic and participants.
func (s *Service) publish(ctx context.Context, o domain.Order) {
	at := s.now().UTC()
	topics := []string{events.OrderTopic(o.ID), events.UserTopic(o.CustomerID)}
	if o.WorkerID != "" {
		topics = append(topics, events.UserTopic(o.WorkerID))
	}
	for _, topic := range topics {
		evt, err := events.New(topic, events.OrderUpdated, o, at)
		if err == nil {
			err = s.pub.Publish(ctx, evt)
		}
		if err != nil {
			slog.Warn("order event not published", "order_id", o.ID, "topic", topic, "error", err)
		}
	}
}

// PollOrder feeds the "order" topics of an events.Poller. It emits the
// order once whenever its latest transition is newer than since.
func (s *Service) PollOrder(ctx context.Context, orderID string, since time.Time) ([]events.Event, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	changed := lastChange(o)
	if !changed.After(since) {
		return nil, nil
	}
	evt, err := events.New(events.OrderTopic(o.ID), events.OrderUpdated, o, changed)
	if err != nil {
		return nil, err
	}
	return []events.Event{evt}, nil
}

func lastChange(o domain.Order) time.Time {
	latest := o.CreatedAt
	for _, t := range []*time.Time{o.AcceptedAt, o.StartedAt, o.CompletedAt, o.CancelledAt} {
		if t != nil && t.After(latest) {
			latest = *t
		}
	}
	if o.Review != nil && o.Review.CreatedAt.After(latest) {
		latest = o.Review.CreatedAt
	}
	return latest
}
