package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/seat-reservation-admin/internal/model"
)

// BookingRepo provides access to the bookings table. Writes that can race
// with other requests are exposed as *Tx variants so the ledger can run its
// checks and inserts in one transaction.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB returns the underlying handle for starting transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `b.id, b.seat_id, b.user_id, b.weekday, b.booked_for_name,
	b.booked_for_email, b.notes, b.status, b.created_at`

const viewSelect = `SELECT ` + bookingColumns + `, s.label, u.name, u.email
	FROM bookings b
	LEFT JOIN seats s ON s.id = b.seat_id
	LEFT JOIN users u ON u.id = b.user_id`

// HasActiveTx reports whether any pending or approved booking holds the
// seat on weekday.
func (r *BookingRepo) HasActiveTx(ctx context.Context, tx *sql.Tx, seatID string, weekday int) (bool, error) {
	return exists(ctx, tx,
		`SELECT COUNT(*) FROM bookings WHERE seat_id = ? AND weekday = ? AND status IN ('pending','approved')`,
		seatID, weekday)
}

// HasActiveForUserTx is HasActiveTx restricted to bookings owned by userID.
func (r *BookingRepo) HasActiveForUserTx(ctx context.Context, tx *sql.Tx, seatID string, weekday int, userID uint64) (bool, error) {
	return exists(ctx, tx,
		`SELECT COUNT(*) FROM bookings WHERE seat_id = ? AND weekday = ? AND user_id = ? AND status IN ('pending','approved')`,
		seatID, weekday, userID)
}

// InsertTx stores b and fills in its ID and CreatedAt. A concurrent active
// booking for the same slot surfaces as ErrConflict.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	b.CreatedAt = now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (seat_id, user_id, weekday, booked_for_name, booked_for_email, notes, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.SeatID, b.UserID, b.Weekday, nullString(b.BookedForName), nullString(b.BookedForEmail),
		nullString(b.Notes), string(b.Status), b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetView returns one booking enriched with seat label and owner identity.
func (r *BookingRepo) GetView(ctx context.Context, id uint64) (*model.BookingView, error) {
	row := r.db.QueryRowContext(ctx, viewSelect+` WHERE b.id = ?`, id)
	return scanView(row)
}

// ListViews returns enriched bookings ordered by id. A nil userID lists
// every booking.
func (r *BookingRepo) ListViews(ctx context.Context, userID *uint64) ([]model.BookingView, error) {
	q := viewSelect
	var args []any
	if userID != nil {
		q += ` WHERE b.user_id = ?`
		args = append(args, *userID)
	}
	q += ` ORDER BY b.id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]model.BookingView, 0)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}

// UpdateStatus sets the status of booking id. Reactivating a booking whose
// slot is already held yields ErrConflict.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, status model.BookingStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return requireAffected(res)
}

// Delete removes booking id permanently.
func (r *BookingRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ActiveByWeekday maps seat id to the holder of every active booking on
// weekday.
func (r *BookingRepo) ActiveByWeekday(ctx context.Context, weekday int) (map[string]model.SeatHolder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.seat_id, b.status, u.name, u.email
		 FROM bookings b
		 LEFT JOIN users u ON u.id = b.user_id
		 WHERE b.weekday = ? AND b.status IN ('pending','approved')
		 ORDER BY b.id`, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]model.SeatHolder)
	for rows.Next() {
		var (
			seatID, status string
			name, email    sql.NullString
		)
		if err := rows.Scan(&seatID, &status, &name, &email); err != nil {
			return nil, err
		}
		out[seatID] = model.SeatHolder{
			UserName:  userNameOrUnknown(name),
			UserEmail: stringPtr(email),
			Status:    model.BookingStatus(status),
		}
	}
	return out, rows.Err()
}

func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func bookingDest(b *model.Booking, status *string, forName, forEmail, notes *sql.NullString, created *dbTime) []any {
	return []any{&b.ID, &b.SeatID, &b.UserID, &b.Weekday, forName, forEmail, notes, status, created}
}

func fillBooking(b *model.Booking, status string, forName, forEmail, notes sql.NullString, created dbTime) {
	b.BookedForName = stringPtr(forName)
	b.BookedForEmail = stringPtr(forEmail)
	b.Notes = stringPtr(notes)
	b.Status = model.BookingStatus(status)
	b.CreatedAt = created.Time
}

func scanView(s rowScanner) (*model.BookingView, error) {
	var (
		v                        model.BookingView
		status                   string
		forName, forEmail, notes sql.NullString
		created                  dbTime
		label, name, email       sql.NullString
	)
	dest := append(bookingDest(&v.Booking, &status, &forName, &forEmail, &notes, &created), &label, &name, &email)
	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	fillBooking(&v.Booking, status, forName, forEmail, notes, created)
	v.SeatLabel = v.SeatID
	if label.Valid {
		v.SeatLabel = label.String
	}
	v.UserName = userNameOrUnknown(name)
	v.UserEmail = stringPtr(email)
	return &v, nil
}

func userNameOrUnknown(name sql.NullString) string {
	if !name.Valid {
		return model.UnknownUserName
	}
	return name.String
}
