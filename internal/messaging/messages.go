package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/httpx"
	"github.com/sudo-init-do/mardikor/internal/middleware"
)

type Handler struct {
	svc    *Service
	stream *Relay
}

func NewHandler(svc *Service, stream *Relay) *Handler {
	return &Handler{svc: svc, stream: stream}
}

type OpenChatRequest struct {
	ParticipantIDs []string `json:"participantIds" validate:"required,len=2,dive,required"`
}

// SendMessageRequest accepts content either as a plain string or as a
// tagged object such as {"kind":"location","location":{...}}.
type SendMessageRequest struct {
	ChatID      string              `json:"chatId" validate:"required"`
	SenderID    string              `json:"senderId"`
	Content     json.RawMessage     `json:"content" validate:"required"`
	Attachments []domain.Attachment `json:"attachments" validate:"max=10,dive"`
}

func decodeContent(raw json.RawMessage) (domain.MessageContent, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return domain.MessageContent{}, domain.NewValidationError("content", "malformed text")
		}
		return domain.MessageContent{Kind: domain.ContentText, Text: text}, nil
	}
	var mc domain.MessageContent
	if err := json.Unmarshal(raw, &mc); err != nil {
		return domain.MessageContent{}, domain.NewValidationError("content", "must be a string or a content object")
	}
	return mc, nil
}

// =========================
// ListChats - GET /chats?userId=
// =========================
func (h *Handler) ListChats(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	chats, err := h.svc.GetUserChats(c.Request().Context(), actor, c.QueryParam("userId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chats)
}

// =========================
// OpenChat - POST /chats
// =========================
func (h *Handler) OpenChat(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var req OpenChatRequest
	if err := httpx.BindAndValidate(c, &req); err != nil {
		return err
	}
	chat, err := h.svc.GetOrCreateChat(c.Request().Context(), actor, req.ParticipantIDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chat)
}

func (h *Handler) GetChat(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	chat, err := h.svc.GetChat(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chat)
}

// PUT /chats/:id/read
func (h *Handler) MarkChatRead(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	r, err := h.svc.MarkAsRead(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// =========================
// ListMessages - GET /messages/:chatId?since=
// =========================
func (h *Handler) ListMessages(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	since, err := httpx.ParseSince(c.QueryParam("since"))
	if err != nil {
		return err
	}
	msgs, err := h.svc.GetChatMessages(c.Request().Context(), actor, c.Param("chatId"), since)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

// =========================
// SendMessage - POST /messages
// =========================
func (h *Handler) SendMessage(c echo.Context) error {
	actor, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var req SendMessageRequest
	if err := httpx.BindAndValidate(c, &req); err != nil {
		return err
	}
	// senderId is kept for older clients and must name the caller.
	if req.SenderID != "" && req.SenderID != actor.ID {
		return fmt.Errorf("cannot send as another user: %w", domain.ErrForbidden)
	}
	content, err := decodeContent(req.Content)
	if err != nil {
		return err
	}
	m, err := h.svc.SendMessage(c.Request().Context(), actor, SendInput{
		ChatID:      req.ChatID,
		Content:     content,
		Attachments: req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}
