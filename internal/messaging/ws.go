package messaging

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/events"
	"github.com/sudo-init-do/mardikor/internal/metrics"
	"github.com/sudo-init-do/mardikor/internal/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	At   string `json:"at"`
}

// Relay forwards topic events to websocket clients. The stream is server
// push only and client frames are read just to notice disconnects.
type Relay struct {
	sub      events.Subscriber
	svc      *Service
	upgrader websocket.Upgrader
}

// NewRelay builds a relay that accepts upgrades from the given origins. An
// empty list or "*" accepts any origin.
func NewRelay(sub events.Subscriber, svc *Service, origins []string) *Relay {
	return &Relay{
		sub: sub,
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigins(origins),
		},
	}
}

func allowOrigins(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		return o == "" || slices.Contains(origins, o)
	}
}

// ChatStream - GET /ws/chats/:id
func (h *Handler) ChatStream(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	chat, err := h.svc.member(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return h.stream.Serve(c, events.ChatTopic(chat.ID), actor.ID)
}

// NotificationStream - GET /ws/notifications
func (h *Handler) NotificationStream(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	return h.stream.Serve(c, events.UserTopic(actor.ID), actor.ID)
}

// Serve upgrades the request and streams topic until either side goes away.
// Authorization is the caller's job.
func (r *Relay) Serve(c echo.Context, topic, userID string) error {
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	stream, err := r.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	ws, err := r.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		slog.Warn("websocket upgrade failed", "topic", topic, "error", err)
		return nil
	}
	defer ws.Close()

	metrics.StreamOpened()
	defer metrics.StreamClosed()
	slog.Info("stream opened", "topic", topic, "user_id", userID)

	go readUntilClosed(ws, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("stream closed", "topic", topic, "user_id", userID)
			return nil
		case evt, ok := <-stream:
			if !ok {
				return nil
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(wsEvent{Type: evt.Type, Data: evt.Data, At: evt.At.UTC().Format(time.RFC3339Nano)}); err != nil {
				slog.Info("stream write failed", "topic", topic, "error", err)
				return nil
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

// readUntilClosed discards client frames and cancels the stream once the
// connection drops or stops answering pings.
func readUntilClosed(ws *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
