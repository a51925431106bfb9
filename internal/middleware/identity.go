package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-admin/internal/model"
)

// CurrentUser returns the user stored by Authenticate.
func CurrentUser(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(ContextUser).(*model.User)
	return u, ok && u != nil
}
