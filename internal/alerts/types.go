package alerts

import (
	"fmt"

	"github.com/sudo-init-do/mardikor/internal/domain"
)

// Notice is the text of a notification before it is addressed to a user.
type Notice struct {
	Type    domain.NotificationType
	Title   string
	Message string
}

// OrderNotice describes a status change of o to the counterpart.
func OrderNotice(o domain.Order) Notice {
	n := Notice{Type: domain.NotificationOrder}
	switch o.Status {
	case domain.OrderPending:
		n.Title = "New order available"
		n.Message = fmt.Sprintf("%q was posted for %d", o.Title, o.Price)
	case domain.OrderAccepted:
		n.Title = "Order accepted"
		n.Message = fmt.Sprintf("A worker accepted %q", o.Title)
	case domain.OrderInProgress:
		n.Title = "Work started"
		n.Message = fmt.Sprintf("Work on %q has started", o.Title)
	case domain.OrderCompleted:
		n.Title = "Order completed"
		n.Message = fmt.Sprintf("%q was marked as completed", o.Title)
	case domain.OrderCancelled:
		n.Title = "Order cancelled"
		n.Message = fmt.Sprintf("%q was cancelled", o.Title)
	}
	return n
}

// PaymentNotice tells the worker about a settlement credit.
func PaymentNotice(o domain.Order, payout, commission int64) Notice {
	return Notice{
		Type:    domain.NotificationPayment,
		Title:   "Payment received",
		Message: fmt.Sprintf("%d credited for %q (%d platform commission)", payout, o.Title, commission),
	}
}

// ReviewNotice tells the worker about a new review.
func ReviewNotice(o domain.Order, rating int) Notice {
	return Notice{
		Type:    domain.NotificationOrder,
		Title:   "New review",
		Message: fmt.Sprintf("You received %d/5 for %q", rating, o.Title),
	}
}

// MessageNotice tells the recipient about a chat message.
func MessageNotice(sender domain.User, m domain.Message) Notice {
	return Notice{
		Type:    domain.NotificationMessage,
		Title:   "New message from " + sender.Name,
		Message: m.Content.Preview(),
	}
}
