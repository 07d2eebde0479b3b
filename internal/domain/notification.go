package domain

import "time"

// NotificationType represents the kind of notification.
type NotificationType string

const (
	NotificationOrder   NotificationType = "ORDER"
	NotificationPayment NotificationType = "PAYMENT"
	NotificationMessage NotificationType = "MESSAGE"
	NotificationSystem  NotificationType = "SYSTEM"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationOrder, NotificationPayment, NotificationMessage, NotificationSystem:
		return true
	}
	return false
}

// Notification represents an in-app notification for a user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"isRead"`
	RelatedID string           `json:"relatedId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// LedgerKind classifies a ledger entry.
type LedgerKind string

const (
	LedgerSettlementCredit LedgerKind = "SETTLEMENT_CREDIT"
	LedgerCommission       LedgerKind = "COMMISSION"
)

// PlatformAccount is the ledger owner of withheld commission.
const PlatformAccount = "platform"

// LedgerEntry records one balance movement caused by settlement.
type LedgerEntry struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	OrderID   string     `json:"orderId"`
	Kind      LedgerKind `json:"kind"`
	Amount    int64      `json:"amount"`
	CreatedAt time.Time  `json:"createdAt"`
}
