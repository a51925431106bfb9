package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness check for load balancers and monitors.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Info identifies the service on GET /.
func Info(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Seat Management API"})
}
