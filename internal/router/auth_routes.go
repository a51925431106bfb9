package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-admin/internal/handler"
	"github.com/iliyamo/seat-reservation-admin/internal/middleware"
)

// RegisterAuth registers login and password routes. Login is rate limited
// and open; the reset endpoints need a token.
func RegisterAuth(e *echo.Echo, d Deps) {
	a := handler.NewAuthHandler(d.Accounts, d.Log)

	g := e.Group("/auth")
	g.POST("/login", a.Login, d.LoginLimit)

	authed := g.Group("", middleware.Authenticate(d.Accounts, d.Log))
	authed.POST("/reset-password", a.ResetPassword)
	authed.POST("/admin-reset-password", a.AdminResetPassword, middleware.RequireSuperadmin())
}

// RegisterUsers registers /users. Everything but /users/me is superadmin only.
func RegisterUsers(e *echo.Echo, d Deps) {
	u := handler.NewUserHandler(d.Accounts, d.Log)

	g := e.Group("/users", middleware.Authenticate(d.Accounts, d.Log))
	g.GET("/me", u.Me)

	admin := g.Group("", middleware.RequireSuperadmin())
	admin.POST("", u.Create)
	admin.GET("", u.List)
	// a deleted user's bookings show up as "Unknown" in the booked-seat map
	admin.DELETE("/:id", u.Delete, d.Cache.PurgeOnSuccess(RouteBookedSeats))
}
