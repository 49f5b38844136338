package controller

import (
	"net/http"

	"github.com/kdvornichenko/weika-students/core/controller"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/auth/dto"
	"github.com/kdvornichenko/weika-students/modules/auth/service"

	"github.com/labstack/echo/v4"
)

type AuthController struct {
	controller.BaseController
	service service.AuthService
}

func NewAuthController(service service.AuthService) *AuthController {
	return &AuthController{
		BaseController: controller.NewBaseController(),
		service:        service,
	}
}

// Register creates the tutor account
// POST /api/v1/public/auth/register
func (c *AuthController) Register(ctx echo.Context) error {
	var req dto.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return c.BadRequest(errors.ErrInvalidInput, "email and password are required")
	}

	res, appErr := c.service.Register(ctx.Request().Context(), &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusCreated, res)
}

// Login issues a JWT for the tutor
// POST /api/v1/public/auth/login
func (c *AuthController) Login(ctx echo.Context) error {
	var req dto.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	res, appErr := c.service.Login(ctx.Request().Context(), &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, res)
}

// Me returns the current user's profile
// GET /api/v1/private/auth/me
func (c *AuthController) Me(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	profile, appErr := c.service.Me(ctx.Request().Context(), identity)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, profile)
}
