// Package service holds the application logic between HTTP handlers and
// repositories. Services return *apperr.Error values that handlers render
// directly; repository sentinels never leak past this package.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/seat-reservation-admin/internal/apperr"
	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/model"
	"github.com/iliyamo/seat-reservation-admin/internal/repository"
	"github.com/iliyamo/seat-reservation-admin/internal/utils"
)

// bcrypt refuses input longer than this.
const maxPasswordBytes = 72

func checkPasswordLength(field, password string) error {
	if len(password) > maxPasswordBytes {
		return apperr.Newf(apperr.CodeValidation, "%s must be at most %d bytes", field, maxPasswordBytes)
	}
	return nil
}

// Accounts manages credentials, login and user administration.
type Accounts struct {
	users  *repository.UserRepo
	tokens *utils.TokenIssuer
	cost   int
	log    *logger.Logger

	// compared against when the email is unknown so both paths pay for bcrypt
	dummyHash string
}

func NewAccounts(users *repository.UserRepo, tokens *utils.TokenIssuer, bcryptCost int, log *logger.Logger) (*Accounts, error) {
	if log == nil {
		log = logger.Nop()
	}
	dummy, err := utils.HashPassword("dummy-password", bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Accounts{users: users, tokens: tokens, cost: bcryptCost, log: log, dummyHash: dummy}, nil
}

// Login checks credentials and issues an access token.
func (a *Accounts) Login(ctx context.Context, email, password string) (*model.User, utils.AccessToken, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, utils.AccessToken{}, apperr.Internal(err, "load user")
		}
		utils.VerifyPassword(a.dummyHash, password)
		return nil, utils.AccessToken{}, apperr.Unauthorized("Invalid credentials")
	}
	if !utils.VerifyPassword(user.PasswordHash, password) {
		return nil, utils.AccessToken{}, apperr.Unauthorized("Invalid credentials")
	}
	tok, err := a.tokens.Issue(user.Email)
	if err != nil {
		return nil, utils.AccessToken{}, apperr.Internal(err, "issue token")
	}
	a.log.Info(a.log.WithUserID(ctx, user.ID), "auth.login")
	return user, tok, nil
}

// ResolveToken verifies a bearer token and loads the user it names.
func (a *Accounts) ResolveToken(ctx context.Context, raw string) (*model.User, error) {
	email, err := a.tokens.Verify(raw)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid token")
	}
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("User not found")
		}
		return nil, apperr.Internal(err, "load user")
	}
	return user, nil
}

// CreateUserInput carries a new account's fields.
type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	Role     model.Role
}

func (a *Accounts) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || strings.TrimSpace(in.Name) == "" || in.Password == "" {
		return nil, apperr.Validation("email, name and password are required")
	}
	if err := checkPasswordLength("password", in.Password); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if !in.Role.IsValid() {
		return nil, apperr.Newf(apperr.CodeValidation, "invalid role %q", in.Role)
	}
	user, err := a.users.Create(ctx, in.Email, in.Name, in.Password, in.Role, a.cost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, apperr.Newf(apperr.CodeConflict, "Email %s is already registered", in.Email)
		}
		return nil, apperr.Internal(err, "create user")
	}
	a.log.Info(a.log.WithFields(ctx, map[string]any{"created_user_id": user.ID, "role": user.Role}), "users.created")
	return user, nil
}

func (a *Accounts) List(ctx context.Context) ([]model.User, error) {
	users, err := a.users.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "list users")
	}
	return users, nil
}

// Delete removes user id. Callers can never delete themselves. The user's
// bookings stay behind and are reported under an unknown owner.
func (a *Accounts) Delete(ctx context.Context, id uint64, caller *model.User) error {
	if _, err := a.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal(err, "load user")
	}
	if caller != nil && caller.ID == id {
		return apperr.Validation("Cannot delete yourself")
	}
	if err := a.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal(err, "delete user")
	}
	a.log.Info(a.log.WithField(ctx, "deleted_user_id", id), "users.deleted")
	return nil
}

// ResetPassword changes the caller's own password after checking the old one.
func (a *Accounts) ResetPassword(ctx context.Context, user *model.User, oldPassword, newPassword string) error {
	if newPassword == "" {
		return apperr.Validation("new_password is required")
	}
	if err := checkPasswordLength("new_password", newPassword); err != nil {
		return err
	}
	if !utils.VerifyPassword(user.PasswordHash, oldPassword) {
		return apperr.Validation("Invalid old password")
	}
	if err := a.users.UpdatePassword(ctx, user.ID, newPassword, a.cost); err != nil {
		return apperr.Internal(err, "update password")
	}
	return nil
}

// AdminResetPassword sets another user's password without the old one and
// returns the affected user.
func (a *Accounts) AdminResetPassword(ctx context.Context, userID uint64, newPassword string) (*model.User, error) {
	if newPassword == "" {
		return nil, apperr.Validation("new_password is required")
	}
	if err := checkPasswordLength("new_password", newPassword); err != nil {
		return nil, err
	}
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal(err, "load user")
	}
	if err := a.users.UpdatePassword(ctx, user.ID, newPassword, a.cost); err != nil {
		return nil, apperr.Internal(err, "update password")
	}
	a.log.Info(a.log.WithField(ctx, "target_user_id", user.ID), "auth.admin_password_reset")
	return user, nil
}
