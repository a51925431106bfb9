package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/seat-reservation-admin/internal/apperr"
	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/metrics"
	"github.com/iliyamo/seat-reservation-admin/internal/model"
	"github.com/iliyamo/seat-reservation-admin/internal/queue"
	"github.com/iliyamo/seat-reservation-admin/internal/repository"
)

// Ledger owns the booking lifecycle. At most one pending or approved
// booking may exist per (seat, weekday); the application checks give
// readable messages and the store's unique index settles races.
type Ledger struct {
	bookings *repository.BookingRepo
	layouts  *repository.LayoutRepo
	events   queue.Publisher
	metrics  *metrics.BookingMetrics
	log      *logger.Logger
	now      func() time.Time
}

func NewLedger(bookings *repository.BookingRepo, layouts *repository.LayoutRepo, events queue.Publisher, m *metrics.BookingMetrics, log *logger.Logger) *Ledger {
	if events == nil {
		events = queue.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{bookings: bookings, layouts: layouts, events: events, metrics: m, log: log, now: time.Now}
}

// CreateBookingInput is one batch request: several seats, one weekday.
type CreateBookingInput struct {
	SeatIDs        []string
	Weekday        int
	BookedForName  *string
	BookedForEmail *string
	Notes          *string
}

// Create books every requested seat for user or none of them. Seats are
// checked in input order and the first failure names the offending seat.
func (l *Ledger) Create(ctx context.Context, user *model.User, in CreateBookingInput) ([]model.BookingView, error) {
	if !model.ValidWeekday(in.Weekday) {
		l.metrics.Record(metrics.ActionCreate, metrics.OutcomeRejected)
		return nil, apperr.Validation("Weekday must be between 0 (Monday) and 6 (Sunday)")
	}
	if len(in.SeatIDs) == 0 {
		l.metrics.Record(metrics.ActionCreate, metrics.OutcomeRejected)
		return nil, apperr.Validation("At least one seat must be selected")
	}

	views, err := l.createTx(ctx, user, in)
	if err != nil {
		l.metrics.Record(metrics.ActionCreate, outcomeOf(err))
		return nil, err
	}
	l.metrics.Record(metrics.ActionCreate, metrics.OutcomeSuccess)
	l.metrics.AddSeatsBooked(len(views))

	for _, v := range views {
		l.publish(ctx, queue.EventBookingCreated, &v, user.ID)
	}
	return views, nil
}

func (l *Ledger) createTx(ctx context.Context, user *model.User, in CreateBookingInput) ([]model.BookingView, error) {
	tx, err := l.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Internal(err, "begin booking tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	views := make([]model.BookingView, 0, len(in.SeatIDs))
	for _, seatID := range in.SeatIDs {
		seat, err := l.layouts.GetSeatTx(ctx, tx, seatID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, "Seat %s not found", seatID)
		}
		if err != nil {
			return nil, apperr.Internal(err, "load seat")
		}

		mine, err := l.bookings.HasActiveForUserTx(ctx, tx, seatID, in.Weekday, user.ID)
		if err != nil {
			return nil, apperr.Internal(err, "check own booking")
		}
		if mine {
			return nil, apperr.Newf(apperr.CodeConflict, "You already have Seat %s booked for this weekday", seat.Label)
		}
		taken, err := l.bookings.HasActiveTx(ctx, tx, seatID, in.Weekday)
		if err != nil {
			return nil, apperr.Internal(err, "check seat booking")
		}
		if taken {
			return nil, apperr.Newf(apperr.CodeConflict, "Seat %s is already booked for this weekday", seat.Label)
		}

		b := model.Booking{
			SeatID:         seatID,
			UserID:         user.ID,
			Weekday:        in.Weekday,
			BookedForName:  in.BookedForName,
			BookedForEmail: in.BookedForEmail,
			Notes:          in.Notes,
			Status:         model.StatusPending,
		}
		if err := l.bookings.InsertTx(ctx, tx, &b); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, apperr.Newf(apperr.CodeConflict, "Seat %s is already booked for this weekday", seat.Label)
			}
			return nil, apperr.Internal(err, "insert booking")
		}
		email := user.Email
		views = append(views, model.BookingView{
			Booking:   b,
			SeatLabel: seat.Label,
			UserName:  user.Name,
			UserEmail: &email,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal(err, "commit bookings")
	}
	committed = true
	return views, nil
}

// List returns every booking for a superadmin and only the caller's own
// bookings otherwise.
func (l *Ledger) List(ctx context.Context, caller *model.User) ([]model.BookingView, error) {
	var owner *uint64
	if !caller.IsSuperadmin() {
		id := caller.ID
		owner = &id
	}
	views, err := l.bookings.ListViews(ctx, owner)
	if err != nil {
		return nil, apperr.Internal(err, "list bookings")
	}
	return views, nil
}

// UpdateStatus moves booking id to status. Any transition between the
// three states is allowed; reactivating into a slot that is held again
// fails with a conflict.
func (l *Ledger) UpdateStatus(ctx context.Context, id uint64, status model.BookingStatus, actor *model.User) (*model.BookingView, error) {
	if !status.IsValid() {
		l.metrics.Record(metrics.ActionStatus, metrics.OutcomeRejected)
		return nil, apperr.Newf(apperr.CodeValidation, "invalid booking status %q", status)
	}
	if err := l.bookings.UpdateStatus(ctx, id, status); err != nil {
		l.metrics.Record(metrics.ActionStatus, outcomeOfRepo(err))
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.NotFound("Booking not found")
		case errors.Is(err, repository.ErrConflict):
			return nil, apperr.Conflict("Seat is already booked for this weekday")
		}
		return nil, apperr.Internal(err, "update booking status")
	}
	view, err := l.bookings.GetView(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Booking not found")
		}
		return nil, apperr.Internal(err, "load booking")
	}
	l.metrics.Record(metrics.ActionStatus, metrics.OutcomeSuccess)
	l.publish(ctx, queue.EventBookingStatusChanged, view, actorID(actor))
	return view, nil
}

func (l *Ledger) Approve(ctx context.Context, id uint64, actor *model.User) error {
	_, err := l.UpdateStatus(ctx, id, model.StatusApproved, actor)
	return err
}

func (l *Ledger) Reject(ctx context.Context, id uint64, actor *model.User) error {
	_, err := l.UpdateStatus(ctx, id, model.StatusRejected, actor)
	return err
}

// Cancel deletes booking id whatever its status. Only the owner or a
// superadmin may cancel.
func (l *Ledger) Cancel(ctx context.Context, id uint64, caller *model.User) error {
	view, err := l.bookings.GetView(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Booking not found")
		}
		return apperr.Internal(err, "load booking")
	}
	if !caller.IsSuperadmin() && view.UserID != caller.ID {
		l.metrics.Record(metrics.ActionCancel, metrics.OutcomeRejected)
		return apperr.Forbidden("Not authorized")
	}
	if err := l.bookings.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Booking not found")
		}
		l.metrics.Record(metrics.ActionCancel, metrics.OutcomeError)
		return apperr.Internal(err, "delete booking")
	}
	l.metrics.Record(metrics.ActionCancel, metrics.OutcomeSuccess)
	l.publish(ctx, queue.EventBookingCancelled, view, caller.ID)
	return nil
}

// BookedSeats maps seat id to its current holder for weekday.
func (l *Ledger) BookedSeats(ctx context.Context, weekday int) (map[string]model.SeatHolder, error) {
	if !model.ValidWeekday(weekday) {
		return nil, apperr.Validation("Weekday must be between 0 (Monday) and 6 (Sunday)")
	}
	booked, err := l.bookings.ActiveByWeekday(ctx, weekday)
	if err != nil {
		return nil, apperr.Internal(err, "list booked seats")
	}
	return booked, nil
}

func (l *Ledger) publish(ctx context.Context, typ queue.EventType, v *model.BookingView, actor uint64) {
	ev := queue.BookingEvent{
		Type:       typ,
		BookingID:  v.ID,
		SeatID:     v.SeatID,
		SeatLabel:  v.SeatLabel,
		UserID:     v.UserID,
		ActorID:    actor,
		Weekday:    v.Weekday,
		Status:     string(v.Status),
		OccurredAt: l.now().UTC(),
	}
	if err := l.events.Publish(ctx, ev); err != nil {
		l.log.Warn(l.log.WithFields(ctx, map[string]any{"event": string(typ), "booking_id": v.ID}), "events.publish_failed", err)
	}
}

func actorID(u *model.User) uint64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func outcomeOf(err error) string {
	switch apperr.CodeOf(err) {
	case apperr.CodeConflict:
		return metrics.OutcomeConflict
	case apperr.CodeInternal:
		return metrics.OutcomeError
	}
	return metrics.OutcomeRejected
}

func outcomeOfRepo(err error) string {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, repository.ErrNotFound):
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
