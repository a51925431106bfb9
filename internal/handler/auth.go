package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/model"
	"github.com/iliyamo/seat-reservation-admin/internal/service"
)

// AuthHandler serves login and password endpoints.
type AuthHandler struct {
	Accounts *service.Accounts
	Log      *logger.Logger
}

func NewAuthHandler(accounts *service.Accounts, log *logger.Logger) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResp struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        *model.User `json:"user"`
}

type resetPasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type adminResetPasswordReq struct {
	UserID      uint64 `json:"user_id" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// Login: verify credentials and return a bearer token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, tok, err := h.Accounts.Login(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, loginResp{AccessToken: tok.Token, TokenType: "bearer", User: user})
}

// ResetPassword: change the caller's own password (protected).
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req resetPasswordReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Accounts.ResetPassword(ctx, user, req.OldPassword, req.NewPassword); err != nil {
		return respondError(c, h.Log, err)
	}
	return message(c, "Password updated successfully")
}

// AdminResetPassword: superadmin sets any user's password.
func (h *AuthHandler) AdminResetPassword(c echo.Context) error {
	var req adminResetPasswordReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	target, err := h.Accounts.AdminResetPassword(ctx, req.UserID, req.NewPassword)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return message(c, "Password reset for "+target.Email)
}
