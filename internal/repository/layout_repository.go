package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/seat-reservation-admin/internal/model"
)

// seatInsertBatch caps rows per INSERT so large layouts stay under the
// placeholder limits of both drivers.
const seatInsertBatch = 200

// LayoutRepo persists the seat catalog and the singleton layout_meta row.
type LayoutRepo struct {
	db *sql.DB
}

func NewLayoutRepo(db *sql.DB) *LayoutRepo { return &LayoutRepo{db: db} }

// DB exposes the handle so services can open transactions spanning
// several repositories.
func (r *LayoutRepo) DB() *sql.DB { return r.db }

// Get returns all seats ordered by label together with the background
// image. A store that was never written yields an empty layout.
func (r *LayoutRepo) Get(ctx context.Context) (*model.Layout, error) {
	seats, err := r.listSeats(ctx, r.db)
	if err != nil {
		return nil, err
	}
	layout := &model.Layout{Seats: seats}

	var (
		bg      sql.NullString
		updated dbTime
	)
	err = r.db.QueryRowContext(ctx,
		"SELECT background_image, updated_at FROM layout_meta WHERE id = 1").Scan(&bg, &updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		layout.BackgroundImage = stringPtr(bg)
		if updated.Valid {
			t := updated.Time
			layout.UpdatedAt = &t
		}
	}
	return layout, nil
}

// GetSeatTx looks up one seat inside tx. ErrNotFound when absent.
func (r *LayoutRepo) GetSeatTx(ctx context.Context, tx *sql.Tx, id string) (*model.Seat, error) {
	var s model.Seat
	err := tx.QueryRowContext(ctx, "SELECT id, label, x, y FROM seats WHERE id = ?", id).
		Scan(&s.ID, &s.Label, &s.X, &s.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ReplaceTx deletes every seat, inserts seats and upserts the layout_meta
// row. Bookings are not touched. The caller owns commit and rollback.
func (r *LayoutRepo) ReplaceTx(ctx context.Context, tx *sql.Tx, seats []model.Seat, backgroundImage *string) (time.Time, error) {
	if _, err := tx.ExecContext(ctx, "DELETE FROM seats"); err != nil {
		return time.Time{}, err
	}
	for start := 0; start < len(seats); start += seatInsertBatch {
		end := start + seatInsertBatch
		if end > len(seats) {
			end = len(seats)
		}
		if err := insertSeats(ctx, tx, seats[start:end]); err != nil {
			return time.Time{}, err
		}
	}

	updatedAt := now()
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM layout_meta WHERE id = 1").Scan(&exists)
	if err != nil {
		return time.Time{}, err
	}
	if exists > 0 {
		_, err = tx.ExecContext(ctx,
			"UPDATE layout_meta SET background_image = ?, updated_at = ? WHERE id = 1",
			nullString(backgroundImage), updatedAt)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO layout_meta (id, background_image, updated_at) VALUES (1, ?, ?)",
			nullString(backgroundImage), updatedAt)
	}
	if err != nil {
		return time.Time{}, err
	}
	return updatedAt, nil
}

func insertSeats(ctx context.Context, tx *sql.Tx, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("INSERT INTO seats (id, label, x, y) VALUES ")
	args := make([]any, 0, len(seats)*4)
	for i, s := range seats {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?)")
		args = append(args, s.ID, s.Label, s.X, s.Y)
	}
	_, err := tx.ExecContext(ctx, b.String(), args...)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *LayoutRepo) listSeats(ctx context.Context, q querier) ([]model.Seat, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, label, x, y FROM seats ORDER BY label")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]model.Seat, 0)
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.Label, &s.X, &s.Y); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}
