package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sudo-init-do/mardikor/internal/alerts"
	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/metrics"
)

// =========================
// Accept - a worker takes a pending order
// =========================
func (s *Service) Accept(ctx context.Context, actor domain.User, id string) (domain.Order, error) {
	if actor.Role != domain.RoleWorker {
		return domain.Order{}, fmt.Errorf("only workers accept orders: %w", domain.ErrForbidden)
	}
	if actor.IsBanned {
		return domain.Order{}, fmt.Errorf("account suspended: %w", domain.ErrForbidden)
	}
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.CustomerID == actor.ID {
		return domain.Order{}, fmt.Errorf("cannot accept your own order: %w", domain.ErrForbidden)
	}
	return s.transition(ctx, actor, o, domain.OrderAccepted, nil)
}

// =========================
// Start - the assigned worker begins work
// =========================
func (s *Service) Start(ctx context.Context, actor domain.User, id string) (domain.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.WorkerID != actor.ID && actor.Role != domain.RoleAdmin {
		return domain.Order{}, fmt.Errorf("only the assigned worker starts an order: %w", domain.ErrForbidden)
	}
	return s.transition(ctx, actor, o, domain.OrderInProgress, nil)
}

// =========================
// Complete - finish the work and settle payment in one step
// =========================
func (s *Service) Complete(ctx context.Context, actor domain.User, id string) (domain.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.WorkerID != actor.ID && o.CustomerID != actor.ID && actor.Role != domain.RoleAdmin {
		return domain.Order{}, fmt.Errorf("only order participants complete an order: %w", domain.ErrForbidden)
	}
	st := settlementFor(o)
	done, err := s.transition(ctx, actor, o, domain.OrderCompleted, &st)
	if err != nil {
		return domain.Order{}, err
	}
	s.announceSettlement(ctx, done, st)
	return done, nil
}

// =========================
// Cancel - the owner withdraws a pending order
// =========================
func (s *Service) Cancel(ctx context.Context, actor domain.User, id string) (domain.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.CustomerID != actor.ID && actor.Role != domain.RoleAdmin {
		return domain.Order{}, fmt.Errorf("only the owner cancels an order: %w", domain.ErrForbidden)
	}
	return s.transition(ctx, actor, o, domain.OrderCancelled, nil)
}

// Transition dispatches a requested target status to its operation.
func (s *Service) Transition(ctx context.Context, actor domain.User, id string, to domain.OrderStatus) (domain.Order, error) {
	switch to {
	case domain.OrderAccepted:
		return s.Accept(ctx, actor, id)
	case domain.OrderInProgress:
		return s.Start(ctx, actor, id)
	case domain.OrderCompleted:
		return s.Complete(ctx, actor, id)
	case domain.OrderCancelled:
		return s.Cancel(ctx, actor, id)
	}
	if !to.Valid() {
		return domain.Order{}, domain.NewValidationError("status", fmt.Sprintf("unknown order status %q", to))
	}
	// A known status with no inbound edge, i.e. PENDING.
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	metrics.ObserveTransition(string(to), "rejected")
	return domain.Order{}, fmt.Errorf("invalid transition from %s to %s: %w", o.Status, to, domain.ErrConflict)
}

// transition performs the compare-and-swap from the status o was read in.
// A concurrent writer that got there first makes the swap fail with
// ErrConflict, so at most one of them wins.
func (s *Service) transition(ctx context.Context, actor domain.User, o domain.Order, to domain.OrderStatus, st *domain.Settlement) (domain.Order, error) {
	from, _ := domain.PriorStatus(to)
	if o.Status != from {
		metrics.ObserveTransition(string(to), "rejected")
		return domain.Order{}, fmt.Errorf("invalid transition from %s to %s: %w", o.Status, to, domain.ErrConflict)
	}

	t := domain.Transition{
		OrderID:    o.ID,
		From:       from,
		To:         to,
		At:         s.now().UTC(),
		Settlement: st,
	}
	if to == domain.OrderAccepted {
		t.WorkerID = actor.ID
	}

	updated, err := s.orders.TransitionOrder(ctx, t)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.ObserveTransition(string(to), "conflict")
			return domain.Order{}, fmt.Errorf("order %s changed concurrently: %w", o.ID, err)
		}
		metrics.ObserveTransition(string(to), "error")
		return domain.Order{}, fmt.Errorf("transition order: %w", err)
	}
	metrics.ObserveTransition(string(to), "ok")
	slog.Info("order transitioned", "order_id", updated.ID, "from", from, "to", to, "actor_id", actor.ID)

	s.notifyCounterpart(ctx, actor, updated)
	s.publish(ctx, updated)
	return updated, nil
}

// notifyCounterpart tells the other side of the order about the change. An
// admin acting on an order notifies both participants.
func (s *Service) notifyCounterpart(ctx context.Context, actor domain.User, o domain.Order) {
	notice := alerts.OrderNotice(o)
	for _, id := range []string{o.CustomerID, o.WorkerID} {
		if id != "" && id != actor.ID {
			s.notify.Notify(ctx, id, notice, o.ID)
		}
	}
}
