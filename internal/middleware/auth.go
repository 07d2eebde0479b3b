package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
)

const (
	contextKeyUser   = "user"
	contextKeyUserID = "user_id"
	contextKeyRole   = "role"
)

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

// RequireAuth rejects requests without a valid bearer token. The resolved
// user is re-read on every request, so bans and role changes apply at once.
func RequireAuth(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := requestToken(c)
			if !ok {
				return domain.ErrUnauthorized
			}
			u, err := a.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}
			setPrincipal(c, u)
			return next(c)
		}
	}
}

// OptionalAuth attaches the user when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token, ok := requestToken(c); ok {
				if u, err := a.Authenticate(c.Request().Context(), token); err == nil {
					setPrincipal(c, u)
				}
			}
			return next(c)
		}
	}
}

func setPrincipal(c echo.Context, u domain.User) {
	c.Set(contextKeyUser, u)
	c.Set(contextKeyUserID, u.ID)
	c.Set(contextKeyRole, string(u.Role))
}

// Principal returns the authenticated user or ErrUnauthorized.
func Principal(c echo.Context) (domain.User, error) {
	u, ok := c.Get(contextKeyUser).(domain.User)
	if !ok || u.ID == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	return u, nil
}

// OptionalPrincipal returns the user if one was attached.
func OptionalPrincipal(c echo.Context) (domain.User, bool) {
	u, ok := c.Get(contextKeyUser).(domain.User)
	return u, ok && u.ID != ""
}

// requestToken reads the Authorization header. Websocket upgrades can't set
// headers from a browser, so GET requests may also pass ?token=.
func requestToken(c echo.Context) (string, bool) {
	if tok, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization)); ok {
		return tok, true
	}
	if c.Request().Method == "GET" {
		if tok := strings.TrimSpace(c.QueryParam("token")); tok != "" {
			return tok, true
		}
	}
	return "", false
}

// BearerToken pulls the token out of an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}
