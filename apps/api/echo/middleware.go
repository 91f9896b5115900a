package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// roleMiddleware lets through admins and any of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Role == RoleAdmin || lo.Contains(roles, claims.Role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
