package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/seat-reservation-admin/internal/apperr"
	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/metrics"
	"github.com/iliyamo/seat-reservation-admin/internal/model"
	"github.com/iliyamo/seat-reservation-admin/internal/repository"
)

// Layouts reads and replaces the seat catalog.
type Layouts struct {
	repo    *repository.LayoutRepo
	metrics *metrics.BookingMetrics
	log     *logger.Logger
}

func NewLayouts(repo *repository.LayoutRepo, m *metrics.BookingMetrics, log *logger.Logger) *Layouts {
	if log == nil {
		log = logger.Nop()
	}
	return &Layouts{repo: repo, metrics: m, log: log}
}

func (l *Layouts) Get(ctx context.Context) (*model.Layout, error) {
	layout, err := l.repo.Get(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "load layout")
	}
	return layout, nil
}

// Replace swaps the whole catalog and background image atomically.
// Existing bookings keep their seat ids even if those seats disappear.
func (l *Layouts) Replace(ctx context.Context, seats []model.Seat, backgroundImage *string) (*model.Layout, error) {
	if err := validateSeats(seats); err != nil {
		l.metrics.Record(metrics.ActionReplace, metrics.OutcomeRejected)
		return nil, err
	}
	if seats == nil {
		seats = []model.Seat{}
	}

	tx, err := l.repo.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Internal(err, "begin layout tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	updatedAt, err := l.repo.ReplaceTx(ctx, tx, seats, backgroundImage)
	if err != nil {
		l.metrics.Record(metrics.ActionReplace, metrics.OutcomeError)
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("Seat ids and labels must be unique")
		}
		return nil, apperr.Internal(err, "replace layout")
	}
	if err := tx.Commit(); err != nil {
		l.metrics.Record(metrics.ActionReplace, metrics.OutcomeError)
		return nil, apperr.Internal(err, "commit layout")
	}
	committed = true

	l.metrics.Record(metrics.ActionReplace, metrics.OutcomeSuccess)
	l.log.Info(l.log.WithField(ctx, "seat_count", len(seats)), "layout.replaced")
	return &model.Layout{Seats: seats, BackgroundImage: backgroundImage, UpdatedAt: &updatedAt}, nil
}

func validateSeats(seats []model.Seat) error {
	ids := make(map[string]struct{}, len(seats))
	labels := make(map[string]struct{}, len(seats))
	for _, s := range seats {
		if strings.TrimSpace(s.ID) == "" {
			return apperr.Validation("Seat id must not be empty")
		}
		if strings.TrimSpace(s.Label) == "" {
			return apperr.Newf(apperr.CodeValidation, "Seat %s must have a label", s.ID)
		}
		if _, dup := ids[s.ID]; dup {
			return apperr.Newf(apperr.CodeValidation, "Duplicate seat id %s", s.ID)
		}
		if _, dup := labels[s.Label]; dup {
			return apperr.Newf(apperr.CodeValidation, "Duplicate seat label %s", s.Label)
		}
		ids[s.ID] = struct{}{}
		labels[s.Label] = struct{}{}
	}
	return nil
}
