package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-admin/internal/handler"
	"github.com/iliyamo/seat-reservation-admin/internal/middleware"
)

// RegisterLayout registers the seat map routes. Reads are anonymous and
// cached; replacing the layout requires a superadmin.
func RegisterLayout(e *echo.Echo, d Deps) {
	l := handler.NewLayoutHandler(d.Layouts, d.Ledger, d.Log)

	e.GET(RouteLayout, l.Get, d.Cache.Middleware())
	e.GET(RouteBookedSeats, l.BookedSeats, d.Cache.Middleware())
	e.POST(RouteLayout, l.Replace,
		middleware.Authenticate(d.Accounts, d.Log),
		middleware.RequireSuperadmin(),
		d.Cache.PurgeOnSuccess(RouteLayout),
	)
}

// RegisterBookings registers the booking ledger routes. Every write purges
// the cached booked-seat map.
func RegisterBookings(e *echo.Echo, d Deps) {
	b := handler.NewBookingHandler(d.Ledger, d.Log)
	purge := d.Cache.PurgeOnSuccess(RouteBookedSeats)

	g := e.Group("/bookings", middleware.Authenticate(d.Accounts, d.Log))
	g.POST("", b.Create, purge)
	g.GET("", b.List)
	g.DELETE("/:id", b.Cancel, purge)

	admin := g.Group("", middleware.RequireSuperadmin())
	admin.PATCH("/:id", b.UpdateStatus, purge)
	admin.PATCH("/:id/approve", b.Approve, purge)
	admin.PATCH("/:id/reject", b.Reject, purge)
}
