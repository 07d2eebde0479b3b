// Package memory keeps every entity in-process. It backs tests and the
// database-less boot mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/store"
)

// Store implements store.Store with maps guarded by a single lock, which
// makes every multi-entity update atomic.
type Store struct {
	mu sync.RWMutex

	users     map[string]domain.User
	userOrder []string
	emails    map[string]string // email -> user ID

	orders     map[string]domain.Order
	orderOrder []string

	chats     map[string]domain.Chat
	chatOrder []string
	pairs     map[string]string // pair key -> chat ID
	messages  map[string][]domain.Message

	notifications map[string]domain.Notification
	notifOrder    []string

	ledger []domain.LedgerEntry
}

var _ store.Store = (*Store)(nil)

// New initializes an empty in-memory store.
func New() *Store {
	return &Store{
		users:         make(map[string]domain.User),
		emails:        make(map[string]string),
		orders:        make(map[string]domain.Order),
		chats:         make(map[string]domain.Chat),
		pairs:         make(map[string]string),
		messages:      make(map[string][]domain.Message),
		notifications: make(map[string]domain.Notification),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

// ===== users =====

func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return domain.ErrConflict
	}
	if _, ok := s.emails[u.Email]; ok {
		return domain.ErrConflict
	}
	s.users[u.ID] = cloneUser(u)
	s.userOrder = append(s.userOrder, u.ID)
	s.emails[u.Email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) ListUsers(_ context.Context, role domain.Role) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		u := s.users[id]
		if role != "" && u.Role != role {
			continue
		}
		res = append(res, cloneUser(u))
	}
	return res, nil
}

func (s *Store) UpdateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	if u.Email != cur.Email {
		if _, taken := s.emails[u.Email]; taken {
			return domain.User{}, domain.ErrConflict
		}
		delete(s.emails, cur.Email)
		s.emails[u.Email] = u.ID
	}
	cur.Name = u.Name
	cur.Surname = u.Surname
	cur.Phone = u.Phone
	cur.Email = u.Email
	cur.Skills = append([]string(nil), u.Skills...)
	cur.HourlyRate = u.HourlyRate
	cur.Location = cloneLocation(u.Location)
	cur.AvatarURL = u.AvatarURL
	cur.Bio = u.Bio
	if u.PasswordHash != "" {
		cur.PasswordHash = u.PasswordHash
	}
	cur.UpdatedAt = u.UpdatedAt
	s.users[u.ID] = cur
	return cloneUser(cur), nil
}

func (s *Store) mutateUser(id string, fn func(*domain.User)) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return cloneUser(u), nil
}

func (s *Store) SetOnline(_ context.Context, id string, online bool) (domain.User, error) {
	return s.mutateUser(id, func(u *domain.User) { u.IsOnline = online })
}

func (s *Store) SetBanned(_ context.Context, id string, banned bool) (domain.User, error) {
	return s.mutateUser(id, func(u *domain.User) { u.IsBanned = banned })
}

func (s *Store) SetRole(_ context.Context, id string, role domain.Role) (domain.User, error) {
	return s.mutateUser(id, func(u *domain.User) { u.Role = role })
}

// ===== orders =====

func (s *Store) CreateOrder(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return domain.ErrConflict
	}
	s.orders[o.ID] = cloneOrder(o)
	s.orderOrder = append(s.orderOrder, o.ID)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return cloneOrder(o), nil
}

// ListOrders returns matching orders newest first.
func (s *Store) ListOrders(_ context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Order, 0)
	for i := len(s.orderOrder) - 1; i >= 0; i-- {
		o := s.orders[s.orderOrder[i]]
		if f.Match(o) {
			res = append(res, cloneOrder(o))
		}
	}
	return res, nil
}

func (s *Store) UpdateOrder(_ context.Context, id string, p domain.OrderPatch) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if o.Status != domain.OrderPending {
		return domain.Order{}, domain.ErrConflict
	}
	p.Apply(&o)
	s.orders[id] = o
	return cloneOrder(o), nil
}

func (s *Store) TransitionOrder(_ context.Context, t domain.Transition) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[t.OrderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if o.Status != t.From {
		return domain.Order{}, domain.ErrConflict
	}

	var worker domain.User
	if t.Settlement != nil {
		worker, ok = s.users[t.Settlement.WorkerID]
		if !ok {
			return domain.Order{}, domain.ErrNotFound
		}
	}

	at := t.At
	o.Status = t.To
	switch t.To {
	case domain.OrderAccepted:
		o.WorkerID = t.WorkerID
		o.AcceptedAt = &at
	case domain.OrderInProgress:
		o.StartedAt = &at
	case domain.OrderCompleted:
		o.CompletedAt = &at
	case domain.OrderCancelled:
		o.CancelledAt = &at
	}
	s.orders[o.ID] = o

	if st := t.Settlement; st != nil {
		worker.Balance += st.Payout
		worker.CompletedJobs++
		worker.UpdatedAt = at
		s.users[worker.ID] = worker
		s.ledger = append(s.ledger,
			domain.LedgerEntry{ID: uuid.NewString(), UserID: worker.ID, OrderID: o.ID, Kind: domain.LedgerSettlementCredit, Amount: st.Payout, CreatedAt: at},
			domain.LedgerEntry{ID: uuid.NewString(), UserID: domain.PlatformAccount, OrderID: o.ID, Kind: domain.LedgerCommission, Amount: st.Commission, CreatedAt: at},
		)
	}
	return cloneOrder(o), nil
}

func (s *Store) SetReview(_ context.Context, orderID string, r domain.Review) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if o.Status != domain.OrderCompleted || o.Review != nil {
		return domain.Order{}, domain.ErrConflict
	}
	o.Review = &r
	s.orders[orderID] = o
	res := cloneOrder(o)

	if w, ok := s.users[o.WorkerID]; ok {
		total := w.Rating*float64(w.RatingCount) + float64(r.Rating)
		w.RatingCount++
		w.Rating = total / float64(w.RatingCount)
		s.users[w.ID] = w
	}
	return res, nil
}

// ===== chats =====

func (s *Store) GetOrCreateChat(_ context.Context, c domain.Chat) (domain.Chat, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.PairKey(c.Participants[0], c.Participants[1])
	if id, ok := s.pairs[key]; ok {
		return cloneChat(s.chats[id]), false, nil
	}
	c.Participants = domain.Pair(c.Participants[0], c.Participants[1])
	c = cloneChat(c)
	s.chats[c.ID] = c
	s.chatOrder = append(s.chatOrder, c.ID)
	s.pairs[key] = c.ID
	return cloneChat(c), true, nil
}

func (s *Store) GetChat(_ context.Context, id string) (domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok {
		return domain.Chat{}, domain.ErrNotFound
	}
	return cloneChat(c), nil
}

// ListChats returns the user's chats with the most recently active first.
func (s *Store) ListChats(_ context.Context, userID string) ([]domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Chat, 0)
	for _, id := range s.chatOrder {
		if c := s.chats[id]; c.HasParticipant(userID) {
			res = append(res, cloneChat(c))
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return activity(res[i]).After(activity(res[j]))
	})
	return res, nil
}

func activity(c domain.Chat) time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.Timestamp
	}
	return c.CreatedAt
}

func (s *Store) AppendMessage(_ context.Context, m domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[m.ChatID]
	if !ok {
		return domain.Message{}, domain.ErrNotFound
	}
	if c.LastMessage != nil && m.Timestamp.Before(c.LastMessage.Timestamp) {
		m.Timestamp = c.LastMessage.Timestamp
	}
	m.Attachments = append([]domain.Attachment(nil), m.Attachments...)
	m = cloneMessage(m)
	s.messages[m.ChatID] = append(s.messages[m.ChatID], m)
	last := cloneMessage(m)
	c.LastMessage = &last
	s.chats[c.ID] = c
	return cloneMessage(m), nil
}

func (s *Store) GetMessage(_ context.Context, chatID, id string) (domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages[chatID] {
		if m.ID == id {
			return cloneMessage(m), nil
		}
	}
	return domain.Message{}, domain.ErrNotFound
}

// ListMessages returns messages newer than since (zero means all) in
// ascending timestamp order.
func (s *Store) ListMessages(_ context.Context, chatID string, since time.Time) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Message, 0)
	for _, m := range s.messages[chatID] {
		if !since.IsZero() && !m.Timestamp.After(since) {
			continue
		}
		res = append(res, cloneMessage(m))
	}
	return res, nil
}

func (s *Store) AdvanceStatus(_ context.Context, chatID, readerID string, status domain.MessageStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	msgs := s.messages[chatID]
	n := 0
	for i := range msgs {
		if msgs[i].SenderID != readerID && msgs[i].Status.Before(status) {
			msgs[i].Status = status
			n++
		}
	}
	if n > 0 && c.LastMessage != nil && c.LastMessage.SenderID != readerID && c.LastMessage.Status.Before(status) {
		last := *c.LastMessage
		last.Status = status
		c.LastMessage = &last
		s.chats[chatID] = c
	}
	return n, nil
}

func (s *Store) CountUnread(_ context.Context, chatID, readerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.messages[chatID] {
		if m.SenderID != readerID && m.Status != domain.MessageRead {
			n++
		}
	}
	return n, nil
}

// ===== notifications =====

func (s *Store) CreateNotification(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return domain.ErrConflict
	}
	s.notifications[n.ID] = n
	s.notifOrder = append(s.notifOrder, n.ID)
	return nil
}

func (s *Store) GetNotification(_ context.Context, id string) (domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return domain.Notification{}, domain.ErrNotFound
	}
	return n, nil
}

// ListNotifications returns the user's notifications newest first.
func (s *Store) ListNotifications(_ context.Context, userID string, since time.Time) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Notification, 0)
	for i := len(s.notifOrder) - 1; i >= 0; i-- {
		n, ok := s.notifications[s.notifOrder[i]]
		if !ok || n.UserID != userID {
			continue
		}
		if !since.IsZero() && !n.CreatedAt.After(since) {
			continue
		}
		res = append(res, n)
	}
	return res, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (s *Store) DeleteNotification(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.notifications, id)
	filtered := s.notifOrder[:0]
	for _, item := range s.notifOrder {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	s.notifOrder = filtered
	return nil
}

// ===== ledger & stats =====

// ListLedger returns the user's entries newest first.
func (s *Store) ListLedger(_ context.Context, userID string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.LedgerEntry, 0)
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].UserID == userID {
			res = append(res, s.ledger[i])
		}
	}
	return res, nil
}

func (s *Store) Stats(context.Context) (store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := store.Stats{
		UsersByRole:    make(map[domain.Role]int),
		OrdersByStatus: make(map[domain.OrderStatus]int),
	}
	for _, u := range s.users {
		st.UsersByRole[u.Role]++
	}
	for _, o := range s.orders {
		st.OrdersByStatus[o.Status]++
	}
	for _, e := range s.ledger {
		if e.Kind == domain.LedgerCommission {
			st.TotalCommission += e.Amount
		}
	}
	for _, msgs := range s.messages {
		st.Messages += len(msgs)
	}
	return st, nil
}

func cloneUser(u domain.User) domain.User {
	u.Skills = append([]string(nil), u.Skills...)
	u.Location = cloneLocation(u.Location)
	return u
}

func cloneLocation(l *domain.Location) *domain.Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneOrder(o domain.Order) domain.Order {
	o.Coordinates = cloneLocation(o.Coordinates)
	o.AcceptedAt = cloneTime(o.AcceptedAt)
	o.StartedAt = cloneTime(o.StartedAt)
	o.CompletedAt = cloneTime(o.CompletedAt)
	o.CancelledAt = cloneTime(o.CancelledAt)
	if o.Review != nil {
		r := *o.Review
		o.Review = &r
	}
	return o
}

func cloneMessage(m domain.Message) domain.Message {
	m.Content.Location = cloneLocation(m.Content.Location)
	if m.Attachments != nil {
		m.Attachments = append([]domain.Attachment(nil), m.Attachments...)
	}
	return m
}

func cloneChat(c domain.Chat) domain.Chat {
	if c.LastMessage != nil {
		m := cloneMessage(*c.LastMessage)
		c.LastMessage = &m
	}
	return c
}
