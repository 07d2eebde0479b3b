package store

import (
	"context"
	"time"

	"github.com/sudo-init-do/mardikor/internal/domain"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error)
	// UpdateUser replaces the profile fields of u. Balance, rating and
	// completedJobs are owned by settlement and review and are not written.
	UpdateUser(ctx context.Context, u domain.User) (domain.User, error)
	SetOnline(ctx context.Context, id string, online bool) (domain.User, error)
	SetBanned(ctx context.Context, id string, banned bool) (domain.User, error)
	SetRole(ctx context.Context, id string, role domain.Role) (domain.User, error)
}

// OrderStore persists orders and applies lifecycle transitions atomically.
type OrderStore interface {
	CreateOrder(ctx context.Context, o domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, id string, p domain.OrderPatch) (domain.Order, error)
	// TransitionOrder succeeds iff the stored status equals t.From, otherwise
	// it fails with domain.ErrConflict. A non-nil t.Settlement is applied in
	// the same atomic unit.
	TransitionOrder(ctx context.Context, t domain.Transition) (domain.Order, error)
	// SetReview stores a review once and folds its rating into the worker.
	SetReview(ctx context.Context, orderID string, r domain.Review) (domain.Order, error)
}

// ChatStore persists chats and their ordered histories.
type ChatStore interface {
	// GetOrCreateChat returns the single chat of the unordered pair.
	GetOrCreateChat(ctx context.Context, c domain.Chat) (domain.Chat, bool, error)
	GetChat(ctx context.Context, id string) (domain.Chat, error)
	ListChats(ctx context.Context, userID string) ([]domain.Chat, error)
	// AppendMessage stores m and updates the chat's lastMessage together. The
	// stored timestamp is never earlier than the chat's previous message.
	AppendMessage(ctx context.Context, m domain.Message) (domain.Message, error)
	GetMessage(ctx context.Context, chatID, id string) (domain.Message, error)
	ListMessages(ctx context.Context, chatID string, since time.Time) ([]domain.Message, error)
	// AdvanceStatus raises messages not sent by readerID to status.
	AdvanceStatus(ctx context.Context, chatID, readerID string, status domain.MessageStatus) (int, error)
	CountUnread(ctx context.Context, chatID, readerID string) (int, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n domain.Notification) error
	GetNotification(ctx context.Context, id string) (domain.Notification, error)
	ListNotifications(ctx context.Context, userID string, since time.Time) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
	DeleteNotification(ctx context.Context, id string) error
}

// LedgerStore exposes settlement records.
type LedgerStore interface {
	ListLedger(ctx context.Context, userID string) ([]domain.LedgerEntry, error)
}

// Stats aggregates counts for the admin dashboard.
type Stats struct {
	UsersByRole     map[domain.Role]int        `json:"usersByRole"`
	OrdersByStatus  map[domain.OrderStatus]int `json:"ordersByStatus"`
	TotalCommission int64                      `json:"totalCommission"`
	Messages        int                        `json:"messages"`
}

// Store is the full persistence surface used by the services.
type Store interface {
	UserStore
	OrderStore
	ChatStore
	NotificationStore
	LedgerStore
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
	Close()
}
