package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/model"
	"github.com/iliyamo/seat-reservation-admin/internal/service"
)

// UserHandler serves account administration.
type UserHandler struct {
	Accounts *service.Accounts
	Log      *logger.Logger
}

func NewUserHandler(accounts *service.Accounts, log *logger.Logger) *UserHandler {
	return &UserHandler{Accounts: accounts, Log: log}
}

type createUserReq struct {
	Email    string     `json:"email" validate:"required,email"`
	Name     string     `json:"name" validate:"required"`
	Password string     `json:"password" validate:"required"`
	Role     model.Role `json:"role"`
}

// Me returns the authenticated user.
func (h *UserHandler) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.Accounts.Create(ctx, service.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.Accounts.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Delete(c echo.Context) error {
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

	if err := h.Accounts.Delete(ctx, id, caller); err != nil {
		return respondError(c, h.Log, err)
	}
	return message(c, "User deleted")
}
