// Package router wires handlers, middleware and route groups onto an echo
// instance.
package router

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/seat-reservation-admin/internal/handler"
	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/metrics"
	"github.com/iliyamo/seat-reservation-admin/internal/middleware"
	"github.com/iliyamo/seat-reservation-admin/internal/service"
)

// Route templates whose cached responses are purged after writes.
const (
	RouteLayout      = "/layout"
	RouteBookedSeats = "/seats/booked"
)

// Deps is everything the HTTP layer needs. Cache, LoginLimit, HTTPMetrics
// and Gatherer are optional.
type Deps struct {
	Log         *logger.Logger
	CORSOrigins []string

	Accounts *service.Accounts
	Layouts  *service.Layouts
	Ledger   *service.Ledger

	Cache       *middleware.ResponseCache
	LoginLimit  echo.MiddlewareFunc
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

// New builds the echo instance with global middleware and every route.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.LoginLimit == nil {
		d.LoginLimit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(middleware.Metrics(d.HTTPMetrics))
	e.Use(echomw.Recover())
	if len(d.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
			AllowCredentials: true,
		}))
	}

	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterUsers(e, d)
	RegisterLayout(e, d)
	RegisterBookings(e, d)
	return e
}

// RegisterRoutes registers the unauthenticated service endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/", handler.Info)
	e.GET("/healthz", handler.Health)
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
}
