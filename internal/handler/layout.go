package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-admin/internal/apperr"
	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/model"
	"github.com/iliyamo/seat-reservation-admin/internal/service"
)

// LayoutHandler serves the seat map and its occupancy.
type LayoutHandler struct {
	Layouts *service.Layouts
	Ledger  *service.Ledger
	Log     *logger.Logger
}

func NewLayoutHandler(layouts *service.Layouts, ledger *service.Ledger, log *logger.Logger) *LayoutHandler {
	return &LayoutHandler{Layouts: layouts, Ledger: ledger, Log: log}
}

type seatReq struct {
	ID    string  `json:"id" validate:"required"`
	Label string  `json:"label" validate:"required"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type layoutReq struct {
	Seats           []seatReq `json:"seats" validate:"dive"`
	BackgroundImage *string   `json:"background_image"`
}

type layoutResp struct {
	Seats           []model.Seat `json:"seats"`
	BackgroundImage *string      `json:"background_image"`
}

func (h *LayoutHandler) Get(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	layout, err := h.Layouts.Get(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, layoutResp{Seats: layout.Seats, BackgroundImage: layout.BackgroundImage})
}

// Replace swaps the whole seat catalog (superadmin).
func (h *LayoutHandler) Replace(c echo.Context) error {
	var req layoutReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	seats := make([]model.Seat, 0, len(req.Seats))
	for _, s := range req.Seats {
		seats = append(seats, model.Seat{ID: s.ID, Label: s.Label, X: s.X, Y: s.Y})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	layout, err := h.Layouts.Replace(ctx, seats, req.BackgroundImage)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, layoutResp{Seats: layout.Seats, BackgroundImage: layout.BackgroundImage})
}

// BookedSeats answers GET /seats/booked?weekday=N.
func (h *LayoutHandler) BookedSeats(c echo.Context) error {
	weekday, err := strconv.Atoi(strings.TrimSpace(c.QueryParam("weekday")))
	if err != nil {
		return respondError(c, h.Log, apperr.Validation("weekday query parameter must be an integer"))
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	booked, err := h.Ledger.BookedSeats(ctx, weekday)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booked_seats": booked})
}
