// Package handler implements the HTTP endpoints. Handlers bind and validate
// the request, call a service under a bounded context and render either the
// result or a {"error": "..."} body.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-admin/internal/apperr"
	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/middleware"
	"github.com/iliyamo/seat-reservation-admin/internal/model"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// bind decodes the body into dest and runs the registered validator.
func bind(c echo.Context, dest any) error {
	if err := c.Bind(dest); err != nil {
		msg := "invalid request body"
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Internal != nil {
			msg += ": " + he.Internal.Error()
		}
		return apperr.Validation(msg)
	}
	if err := c.Validate(dest); err != nil {
		if apperr.As(err) != nil {
			return err
		}
		return apperr.Wrap(apperr.CodeValidation, err, "validation failed")
	}
	return nil
}

// respondError renders err with the status of its apperr code. Internal
// failures are logged and hidden from the client.
func respondError(c echo.Context, log *logger.Logger, err error) error {
	code := apperr.CodeOf(err)
	meta := apperr.MetadataFor(code)
	if code == apperr.CodeInternal {
		log.Error(c.Request().Context(), "request.failed", err)
	}
	return c.JSON(meta.HTTPStatus, echo.Map{"error": apperr.PublicMessage(err)})
}

func currentUser(c echo.Context) (*model.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, apperr.Unauthorized("Not authenticated")
	}
	return u, nil
}

func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Newf(apperr.CodeValidation, "invalid %s", name)
	}
	return id, nil
}

func message(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}
