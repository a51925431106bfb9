package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-admin/internal/apperr"
	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/model"
)

// Context keys set by Authenticate.
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// TokenResolver turns a raw bearer token into the user it names.
type TokenResolver interface {
	ResolveToken(ctx context.Context, raw string) (*model.User, error)
}

// Authenticate requires a valid Bearer token and loads the caller. The user,
// their id and role are stored in the echo context for later middleware and
// handlers; the id is also attached to the request's log context.
func Authenticate(resolver TokenResolver, log *logger.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, found := strings.Cut(auth, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Not authenticated"})
			}

			ctx := c.Request().Context()
			user, err := resolver.ResolveToken(ctx, strings.TrimSpace(raw))
			if err != nil {
				status := apperr.MetadataFor(apperr.CodeOf(err)).HTTPStatus
				if status >= http.StatusInternalServerError {
					log.Error(ctx, "auth.resolve_failed", err)
				}
				return c.JSON(status, echo.Map{"error": apperr.PublicMessage(err)})
			}

			c.Set(ContextUser, user)
			c.Set(ContextUserID, user.ID)
			c.Set(ContextRole, user.Role)
			c.SetRequest(c.Request().WithContext(log.WithUserID(ctx, user.ID)))
			return next(c)
		}
	}
}
