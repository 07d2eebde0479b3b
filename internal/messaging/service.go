package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/mardikor/internal/alerts"
	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/events"
	"github.com/sudo-init-do/mardikor/internal/metrics"
	"github.com/sudo-init-do/mardikor/internal/store"
)

const maxAttachments = 10

// Notifier addresses a notice to a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, notice alerts.Notice, relatedID string)
}

// Service owns two-party chats and their message histories.
type Service struct {
	chats  store.ChatStore
	users  store.UserStore
	notify Notifier
	pub    events.Publisher
	now    func() time.Time
}

func NewService(chats store.ChatStore, users store.UserStore, notify Notifier, pub events.Publisher) *Service {
	return &Service{chats: chats, users: users, notify: notify, pub: pub, now: time.Now}
}

// SendInput is one outgoing message.
type SendInput struct {
	ChatID      string
	Content     domain.MessageContent
	Attachments []domain.Attachment
}

// ReadReceipt is the payload of a message.read event.
type ReadReceipt struct {
	ChatID   string    `json:"chatId"`
	ReaderID string    `json:"readerId"`
	Updated  int       `json:"updated"`
	ReadAt   time.Time `json:"readAt"`
}

// =========================
// GetOrCreateChat - one chat per unordered pair
// =========================
func (s *Service) GetOrCreateChat(ctx context.Context, actor domain.User, participantIDs []string) (domain.Chat, error) {
	if len(participantIDs) != 2 {
		return domain.Chat{}, domain.NewValidationError("participantIds", "exactly two participants are required")
	}
	a, b := participantIDs[0], participantIDs[1]
	if a == "" || b == "" {
		return domain.Chat{}, domain.NewValidationError("participantIds", "participant ids must not be empty")
	}
	if a == b {
		return domain.Chat{}, domain.NewValidationError("participantIds", "cannot open a chat with yourself")
	}
	if actor.ID != a && actor.ID != b && actor.Role != domain.RoleAdmin {
		return domain.Chat{}, fmt.Errorf("only a participant opens a chat: %w", domain.ErrForbidden)
	}
	for _, id := range participantIDs {
		if _, err := s.users.GetUser(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Chat{}, fmt.Errorf("participant %s: %w", id, domain.ErrNotFound)
			}
			return domain.Chat{}, fmt.Errorf("load participant: %w", err)
		}
	}

	c, created, err := s.chats.GetOrCreateChat(ctx, domain.Chat{
		ID:           uuid.NewString(),
		Participants: domain.Pair(a, b),
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return domain.Chat{}, fmt.Errorf("get or create chat: %w", err)
	}
	if created {
		slog.Info("chat created", "chat_id", c.ID, "participants", c.Participants)
	}
	return s.withUnread(ctx, c, actor.ID)
}

// GetChat returns a chat the actor takes part in.
func (s *Service) GetChat(ctx context.Context, actor domain.User, chatID string) (domain.Chat, error) {
	c, err := s.member(ctx, actor, chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	return s.withUnread(ctx, c, actor.ID)
}

// member loads the chat and hides it from non-participants. Admins may read
// any chat.
func (s *Service) member(ctx context.Context, actor domain.User, chatID string) (domain.Chat, error) {
	c, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Chat{}, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
		}
		return domain.Chat{}, fmt.Errorf("load chat: %w", err)
	}
	if !c.HasParticipant(actor.ID) && actor.Role != domain.RoleAdmin {
		return domain.Chat{}, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	return c, nil
}

func (s *Service) withUnread(ctx context.Context, c domain.Chat, readerID string) (domain.Chat, error) {
	c.UnreadCount = 0
	if !c.HasParticipant(readerID) {
		return c, nil
	}
	n, err := s.chats.CountUnread(ctx, c.ID, readerID)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("count unread: %w", err)
	}
	c.UnreadCount = n
	return c, nil
}

// =========================
// SendMessage - append to a chat and fan out
// =========================
func (s *Service) SendMessage(ctx context.Context, actor domain.User, in SendInput) (domain.Message, error) {
	if actor.IsBanned {
		return domain.Message{}, fmt.Errorf("account suspended: %w", domain.ErrForbidden)
	}
	c, err := s.chats.GetChat(ctx, in.ChatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Message{}, fmt.Errorf("chat %s: %w", in.ChatID, domain.ErrNotFound)
		}
		return domain.Message{}, fmt.Errorf("load chat: %w", err)
	}
	if !c.HasParticipant(actor.ID) {
		return domain.Message{}, fmt.Errorf("sender is not in chat %s: %w", in.ChatID, domain.ErrNotFound)
	}
	if len(in.Attachments) > maxAttachments {
		return domain.Message{}, domain.NewValidationError("attachments", fmt.Sprintf("at most %d attachments", maxAttachments))
	}
	for _, a := range in.Attachments {
		if a.URL == "" {
			return domain.Message{}, domain.NewValidationError("attachments", "attachment url is required")
		}
	}
	if err := in.Content.Validate(len(in.Attachments)); err != nil {
		return domain.Message{}, err
	}
	if in.Content.Kind == domain.ContentReply {
		if _, err := s.chats.GetMessage(ctx, c.ID, in.Content.ReplyTo); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Message{}, domain.NewValidationError("content.replyTo", "quoted message is not in this chat")
			}
			return domain.Message{}, fmt.Errorf("load quoted message: %w", err)
		}
	}

	m, err := s.chats.AppendMessage(ctx, domain.Message{
		ID:          uuid.NewString(),
		ChatID:      c.ID,
		SenderID:    actor.ID,
		Content:     in.Content,
		Attachments: in.Attachments,
		Timestamp:   s.now().UTC(),
		Status:      domain.MessageSent,
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	metrics.ObserveMessage(string(m.Content.Kind))

	s.publish(ctx, events.ChatTopic(c.ID), events.MessageNew, m, m.Timestamp)
	s.notify.Notify(ctx, c.Counterpart(actor.ID), alerts.MessageNotice(actor, m), c.ID)
	return m, nil
}

// =========================
// GetChatMessages - ascending history, optionally after since
// =========================
// A participant fetching the history has received everything the other side
// sent, so those messages advance to DELIVERED.
func (s *Service) GetChatMessages(ctx context.Context, actor domain.User, chatID string, since time.Time) ([]domain.Message, error) {
	c, err := s.member(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	if c.HasParticipant(actor.ID) {
		if _, err := s.chats.AdvanceStatus(ctx, c.ID, actor.ID, domain.MessageDelivered); err != nil {
			return nil, fmt.Errorf("mark delivered: %w", err)
		}
	}
	msgs, err := s.chats.ListMessages(ctx, c.ID, since)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// =========================
// GetUserChats - most recently active first
// =========================
func (s *Service) GetUserChats(ctx context.Context, actor domain.User, userID string) ([]domain.Chat, error) {
	if userID == "" {
		userID = actor.ID
	}
	if !actor.CanManage(userID) {
		return nil, fmt.Errorf("cannot list another user's chats: %w", domain.ErrForbidden)
	}
	chats, err := s.chats.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	for i := range chats {
		if chats[i], err = s.withUnread(ctx, chats[i], userID); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

// =========================
// MarkAsRead - read receipt for everything the other side sent
// =========================
func (s *Service) MarkAsRead(ctx context.Context, actor domain.User, chatID string) (ReadReceipt, error) {
	c, err := s.member(ctx, actor, chatID)
	if err != nil {
		return ReadReceipt{}, err
	}
	if !c.HasParticipant(actor.ID) {
		return ReadReceipt{}, fmt.Errorf("only participants mark a chat read: %w", domain.ErrForbidden)
	}
	n, err := s.chats.AdvanceStatus(ctx, c.ID, actor.ID, domain.MessageRead)
	if err != nil {
		return ReadReceipt{}, fmt.Errorf("mark read: %w", err)
	}
	r := ReadReceipt{ChatID: c.ID, ReaderID: actor.ID, Updated: n, ReadAt: s.now().UTC()}
	if n > 0 {
		s.publish(ctx, events.ChatTopic(c.ID), events.MessageRead, r, r.ReadAt)
	}
	return r, nil
}

// PollChat feeds the "chat" topics of an events.Poller with the messages
// stored after since.
func (s *Service) PollChat(ctx context.Context, chatID string, since time.Time) ([]events.Event, error) {
	msgs, err := s.chats.ListMessages(ctx, chatID, since)
	if err != nil {
		return nil, err
	}
	out := make([]events.Event, 0, len(msgs))
	for _, m := range msgs {
		evt, err := events.New(events.ChatTopic(chatID), events.MessageNew, m, m.Timestamp)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, topic, typ string, payload any, at time.Time) {
	evt, err := events.New(topic, typ, payload, at)
	if err == nil {
		err = s.pub.Publish(ctx, evt)
	}
	if err != nil {
		slog.Warn("chat event not published", "topic", topic, "type", typ, "error", err)
	}
}
