package service

import (
	"context"
	"errors"

	"github.com/iliyamo/seat-reservation-admin/internal/apperr"
	"github.com/iliyamo/seat-reservation-admin/internal/config"
	"github.com/iliyamo/seat-reservation-admin/internal/model"
	"github.com/iliyamo/seat-reservation-admin/internal/repository"
)

// EnsureSuperadmin creates the configured superadmin unless an account with
// that email already exists. It reports whether a user was created. An
// existing account is left untouched, including its password.
func (a *Accounts) EnsureSuperadmin(ctx context.Context, cfg config.BootstrapConfig) (*model.User, bool, error) {
	if err := checkPasswordLength("SUPERADMIN_PASSWORD", cfg.Password); err != nil {
		return nil, false, err
	}
	existing, err := a.users.GetByEmail(ctx, cfg.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperr.Internal(err, "look up superadmin")
	}

	user, err := a.users.Create(ctx, cfg.Email, cfg.Name, cfg.Password, model.RoleSuperadmin, a.cost)
	if errors.Is(err, repository.ErrEmailExists) {
		// another instance won the race
		existing, err = a.users.GetByEmail(ctx, cfg.Email)
		if err != nil {
			return nil, false, apperr.Internal(err, "look up superadmin")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, apperr.Internal(err, "create superadmin")
	}
	a.log.Info(a.log.WithField(ctx, "email", user.Email), "bootstrap.superadmin_created")
	return user, true, nil
}
