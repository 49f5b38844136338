package controller

import (
	"net/http"

	"github.com/kdvornichenko/weika-students/core/controller"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/core/params"
	"github.com/kdvornichenko/weika-students/modules/student/dto"
	"github.com/kdvornichenko/weika-students/modules/student/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type StudentController struct {
	controller.BaseController
	service service.StudentService
}

func NewStudentController(service service.StudentService) *StudentController {
	return &StudentController{
		BaseController: controller.NewBaseController(),
		service:        service,
	}
}

// Create adds a student
// POST /api/v1/private/students
func (c *StudentController) Create(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	var req dto.CreateStudentRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}
	if req.Name == "" {
		return c.BadRequest(errors.ErrInvalidInput, "name is required")
	}

	res, appErr := c.service.Create(ctx.Request().Context(), identity, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusCreated, res)
}

// Get returns one student
// GET /api/v1/private/students/:id
func (c *StudentController) Get(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid student id")
	}

	res, appErr := c.service.Get(ctx.Request().Context(), identity, id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, res)
}

// List returns the tutor's students, paginated
// GET /api/v1/private/students
func (c *StudentController) List(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	res, appErr := c.service.List(ctx.Request().Context(), identity, params.FromContext(ctx))
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, res)
}

// Update patches student fields
// PATCH /api/v1/private/students/:id
func (c *StudentController) Update(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid student id")
	}

	var req dto.UpdateStudentRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	res, appErr := c.service.Update(ctx.Request().Context(), identity, id, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, res)
}

// Delete removes a student and schedules a calendar purge
// DELETE /api/v1/private/students/:id
func (c *StudentController) Delete(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid student id")
	}

	if appErr := c.service.Delete(ctx.Request().Context(), identity, id); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.NoContent(http.StatusNoContent)
}
