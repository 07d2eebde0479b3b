package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/domain"
)

// RequireRoles ensures the requester's role is one of the allowed roles.
// Usage: route(..., RequireRoles(domain.RoleCustomer, domain.RoleAdmin))
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := Principal(c)
			if err != nil {
				return err
			}
			for _, r := range roles {
				if u.Role == r {
					return next(c)
				}
			}
			return domain.ErrForbidden
		}
	}
}

// RequireAdmin ensures only admin users can access admin routes
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return RequireRoles(domain.RoleAdmin)(next)
}
