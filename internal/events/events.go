// Package events carries domain events from the services to whoever is
// listening. Producers publish on a topic, consumers subscribe to one and
// receive a stream that closes when their context ends.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event types.
const (
	MessageNew      = "message.new"
	MessageRead     = "message.read"
	NotificationNew = "notification.new"
	OrderUpdated    = "order.updated"
)

// Event is one item of a topic stream.
type Event struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	At    time.Time       `json:"at"`
}

// New encodes payload into an event on topic.
func New(topic, typ string, payload any, at time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return Event{Topic: topic, Type: typ, Data: data, At: at}, nil
}

// Publisher sends events to their topic.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Subscriber opens a stream of events on a topic. The returned channel is
// closed once ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan Event, error)
}

// Bus is both ends of a transport.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// UserTopic is the stream of a user's notifications and order updates.
func UserTopic(userID string) string { return "user:" + userID }

// ChatTopic is the stream of a chat's messages.
func ChatTopic(chatID string) string { return "chat:" + chatID }

// OrderTopic is the stream of an order's status changes.
func OrderTopic(orderID string) string { return "order:" + orderID }

// SplitTopic returns the kind and key of a topic such as "chat:42".
func SplitTopic(topic string) (kind, key string, ok bool) {
	kind, key, ok = strings.Cut(topic, ":")
	if !ok || kind == "" || key == "" {
		return "", "", false
	}
	return kind, key, true
}

const streamBuffer = 32
