package domain

import (
	"strings"
	"time"
)

// MessageStatus tracks delivery of a message to its recipient.
type MessageStatus string

const (
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageRead      MessageStatus = "READ"
)

func (s MessageStatus) rank() int {
	switch s {
	case MessageDelivered:
		return 1
	case MessageRead:
		return 2
	}
	return 0
}

// Before reports whether s is an earlier delivery state than other.
func (s MessageStatus) Before(other MessageStatus) bool {
	return s.rank() < other.rank()
}

// ContentKind tags the variant carried by MessageContent.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentReply      ContentKind = "reply"
	ContentLocation   ContentKind = "location"
	ContentAttachment ContentKind = "attachment"
)

// MessageContent is a tagged variant. Only the fields of Kind are meaningful.
type MessageContent struct {
	Kind     ContentKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	ReplyTo  string      `json:"replyTo,omitempty"`
	Location *Location   `json:"location,omitempty"`
}

// Validate checks the variant invariants. Attachment-only content is valid
// only when the message carries attachments.
func (c MessageContent) Validate(attachments int) error {
	text := strings.TrimSpace(c.Text)
	switch c.Kind {
	case ContentText:
		if text == "" {
			return NewValidationError("content.text", "text is required")
		}
	case ContentReply:
		if c.ReplyTo == "" {
			return NewValidationError("content.replyTo", "quoted message id is required")
		}
		if text == "" {
			return NewValidationError("content.text", "reply body is required")
		}
	case ContentLocation:
		if c.Location == nil || !c.Location.Valid() {
			return NewValidationError("content.location", "valid coordinates are required")
		}
	case ContentAttachment:
		if attachments == 0 {
			return NewValidationError("attachments", "at least one attachment is required")
		}
	default:
		return NewValidationError("content.kind", "unknown content kind")
	}
	return nil
}

// Preview renders a short plain-text summary for notifications.
func (c MessageContent) Preview() string {
	switch c.Kind {
	case ContentLocation:
		return "Shared a location"
	case ContentAttachment:
		return "Sent an attachment"
	}
	const max = 120
	r := []rune(strings.TrimSpace(c.Text))
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return string(r)
}

// Attachment is a file linked from a message.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// Message is one entry of a chat history.
type Message struct {
	ID          string         `json:"id"`
	ChatID      string         `json:"chatId"`
	SenderID    string         `json:"senderId"`
	Content     MessageContent `json:"content"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Status      MessageStatus  `json:"status"`
}

// Chat is a two-party conversation.
type Chat struct {
	ID           string    `json:"id"`
	Participants [2]string `json:"participants"`
	LastMessage  *Message  `json:"lastMessage,omitempty"`
	UnreadCount  int       `json:"unreadCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasParticipant reports whether userID takes part in the chat.
func (c Chat) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Counterpart returns the other participant.
func (c Chat) Counterpart(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// Pair orders two user ids so the same conversation always has one key.
func Pair(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

// PairKey is the unique storage key of an unordered participant pair.
func PairKey(a, b string) string {
	p := Pair(a, b)
	return p[0] + ":" + p[1]
}
