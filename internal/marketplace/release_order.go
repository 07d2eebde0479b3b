package marketplace

import (
	"context"
	"log/slog"

	"github.com/sudo-init-do/mardikor/internal/alerts"
	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/metrics"
)

// settlementFor computes the worker payout of o. A stored price outside the
// accepted range settles to zero instead of inflating a balance.
func settlementFor(o domain.Order) domain.Settlement {
	commission, payout := domain.Split(o.Price)
	if !domain.ValidPrice(o.Price) {
		slog.Warn("order price out of range, settling zero", "order_id", o.ID, "price", o.Price)
	}
	return domain.Settlement{WorkerID: o.WorkerID, Payout: payout, Commission: commission}
}

func (s *Service) announceSettlement(ctx context.Context, o domain.Order, st domain.Settlement) {
	metrics.ObserveSettlement(st.Payout, st.Commission)
	slog.Info("order settled",
		"order_id", o.ID,
		"worker_id", st.WorkerID,
		"payout", st.Payout,
		"commission", st.Commission,
	)
	s.notify.Notify(ctx, st.WorkerID, alerts.PaymentNotice(o, st.Payout, st.Commission), o.ID)
}
