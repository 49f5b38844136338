package controller

import (
	"net/http"

	"github.com/kdvornichenko/weika-students/core/controller"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/export/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type ExportController struct {
	controller.BaseController
	service service.ExportService
}

func NewExportController(service service.ExportService) *ExportController {
	return &ExportController{
		BaseController: controller.NewBaseController(),
		service:        service,
	}
}

// Schedule renders the student's upcoming lessons as an iCalendar document
// GET /api/v1/private/students/:id/schedule.ics
func (c *ExportController) Schedule(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	studentID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid student id")
	}

	document, appErr := c.service.RenderSchedule(ctx.Request().Context(), identity, studentID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(document))
}

// Snapshot renders and uploads the schedule to blob storage
// POST /api/v1/private/students/:id/schedule/snapshot
func (c *ExportController) Snapshot(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	studentID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid student id")
	}

	res, appErr := c.service.UploadSnapshot(ctx.Request().Context(), identity, studentID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusCreated, res)
}
