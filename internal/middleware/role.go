package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-admin/internal/model"
)

// RequireRole aborts with 403 unless Authenticate stored one of roles in
// the context.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	msg := forbiddenMessage(roles)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ContextRole).(model.Role)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": msg})
			}
			return next(c)
		}
	}
}

func RequireSuperadmin() echo.MiddlewareFunc { return RequireRole(model.RoleSuperadmin) }

func forbiddenMessage(roles []model.Role) string {
	if len(roles) == 1 && roles[0] == model.RoleSuperadmin {
		return "SuperAdmin access required"
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return "Access requires role " + strings.Join(names, " or ")
}
