package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/httpx"
	"github.com/sudo-init-do/mardikor/internal/middleware"
)

// tokenAuth treats the token as the user id.
type tokenAuth struct{ f *fixture }

func (a tokenAuth) Authenticate(ctx context.Context, token string) (domain.User, error) {
	u, err := a.f.st.GetUser(ctx, token)
	if err != nil {
		return domain.User{}, domain.ErrUnauthorized
	}
	return u, nil
}

func newServer(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	h := NewHandler(f.svc, NewRelay(f.bus, f.svc, nil))

	e := echo.New()
	e.HTTPErrorHandler = httpx.HTTPErrorHandler
	e.Validator = httpx.NewAppValidator()
	auth := middleware.RequireAuth(tokenAuth{f})
	e.POST("/messages", h.SendMessage, auth)
	e.GET("/messages/:chatId", h.ListMessages, auth)
	e.GET("/ws/chats/:id", h.ChatStream, auth)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestDecodeContent(t *testing.T) {
	tests := []struct {
		raw  string
		kind domain.ContentKind
		ok   bool
	}{
		{`"hello"`, domain.ContentText, true},
		{`{"kind":"location","location":{"lat":41.3,"lng":69.2}}`, domain.ContentLocation, true},
		{`{"kind":"reply","replyTo":"m1","text":"ok"}`, domain.ContentReply, true},
		{`42`, "", false},
	}
	for _, tt := range tests {
		mc, err := decodeContent(json.RawMessage(tt.raw))
		if (err == nil) != tt.ok {
			t.Fatalf("%s: unexpected error %v", tt.raw, err)
		}
		if tt.ok && mc.Kind != tt.kind {
			t.Fatalf("%s: expected kind %q, got %q", tt.raw, tt.kind, mc.Kind)
		}
	}
}

func TestSendMessageEndpoint(t *testing.T) {
	f := newFixture(t)
	c := f.chat(t)
	srv := newServer(t, f)

	post := func(sender, body string) *http.Response {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/messages", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+sender)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := post(f.alice.ID, `{"chatId":"`+c.ID+`","senderId":"alice","content":"hello bob"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var m domain.Message
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Content.Kind != domain.ContentText || m.Content.Text != "hello bob" || m.Status != domain.MessageSent {
		t.Fatalf("unexpected message %+v", m)
	}

	if resp := post(f.alice.ID, `{"chatId":"`+c.ID+`","senderId":"bob","content":"spoofed"}`); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for spoofed sender, got %d", resp.StatusCode)
	}
	if resp := post(f.eve.ID, `{"chatId":"`+c.ID+`","content":"hi"}`); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for outsider, got %d", resp.StatusCode)
	}
	if resp := post(f.alice.ID, `{"chatId":"`+c.ID+`"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without content, got %d", resp.StatusCode)
	}
}

func TestChatStreamRelaysNewMessages(t *testing.T) {
	f := newFixture(t)
	c := f.chat(t)
	srv := newServer(t, f)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chats/" + c.ID + "?token=" + f.bob.ID
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer resp.Body.Close()
	defer ws.Close()

	// The subscription is registered before the upgrade completes.
	if _, err := f.svc.SendMessage(context.Background(), f.alice, SendInput{ChatID: c.ID, Content: text("on my way")}); err != nil {
		t.Fatalf("send: %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type string         `json:"type"`
		Data domain.Message `json:"data"`
	}
	if err := ws.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "message.new" || got.Data.Content.Text != "on my way" {
		t.Fatalf("unexpected frame %+v", got)
	}
}

func TestChatStreamRejectsOutsiders(t *testing.T) {
	f := newFixture(t)
	c := f.chat(t)
	srv := newServer(t, f)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chats/" + c.ID + "?token=" + f.eve.ID
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake, got %+v", resp)
	}
}
