package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/model"
	"github.com/iliyamo/seat-reservation-admin/internal/service"
)

// BookingHandler serves the booking ledger.
type BookingHandler struct {
	Ledger *service.Ledger
	Log    *logger.Logger
}

func NewBookingHandler(ledger *service.Ledger, log *logger.Logger) *BookingHandler {
	return &BookingHandler{Ledger: ledger, Log: log}
}

type createBookingReq struct {
	SeatIDs        []string `json:"seat_ids"`
	Weekday        *int     `json:"weekday" validate:"required"`
	BookedForName  *string  `json:"booked_for_name"`
	BookedForEmail *string  `json:"booked_for_email" validate:"omitempty,email"`
	Notes          *string  `json:"notes"`
}

type updateStatusReq struct {
	Status model.BookingStatus `json:"status" validate:"required"`
}

// Create books one or more seats for one weekday, all or nothing.
func (h *BookingHandler) Create(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req createBookingReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	views, err := h.Ledger.Create(ctx, user, service.CreateBookingInput{
		SeatIDs:        req.SeatIDs,
		Weekday:        *req.Weekday,
		BookedForName:  req.BookedForName,
		BookedForEmail: req.BookedForEmail,
		Notes:          req.Notes,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, views)
}

// List returns the caller's bookings, or all of them for a superadmin.
func (h *BookingHandler) List(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	views, err := h.Ledger.List(ctx, user)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, views)
}

// UpdateStatus sets an arbitrary status (superadmin).
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req updateStatusReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.Ledger.UpdateStatus(ctx, id, req.Status, actor)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *BookingHandler) Approve(c echo.Context) error {
	return h.transition(c, h.Ledger.Approve, "Booking approved")
}

func (h *BookingHandler) Reject(c echo.Context) error {
	return h.transition(c, h.Ledger.Reject, "Booking rejected")
}

func (h *BookingHandler) transition(c echo.Context, apply func(ctx context.Context, id uint64, actor *model.User) error, msg string) error {
	actor, err := currentUser(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := apply(ctx, id, actor); err != nil {
		return respondError(c, h.Log, err)
	}
	return message(c, msg)
}

// Cancel deletes a booking; owners and superadmins only.
func (h *BookingHandler) Cancel(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Ledger.Cancel(ctx, id, caller); err != nil {
		return respondError(c, h.Log, err)
	}
	return message(c, "Booking cancelled")
}
