package controller

import (
	"net/http"
	"time"

	"github.com/kdvornichenko/weika-students/core/controller"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/calendar/dto"
	"github.com/kdvornichenko/weika-students/modules/calendar/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CalendarController struct {
	controller.BaseController
	service service.CalendarService
}

func NewCalendarController(service service.CalendarService) *CalendarController {
	return &CalendarController{
		BaseController: controller.NewBaseController(),
		service:        service,
	}
}

// Connect starts the OAuth consent flow
// GET /api/v1/private/calendar/connect
func (c *CalendarController) Connect(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	url, appErr := c.service.ConnectURL(ctx.Request().Context(), identity)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, dto.ConnectURLResponse{URL: url})
}

// Callback finishes the OAuth consent flow (called by the provider redirect)
// GET /api/v1/public/calendar/callback
func (c *CalendarController) Callback(ctx echo.Context) error {
	state := ctx.QueryParam("state")
	code := ctx.QueryParam("code")
	if state == "" || code == "" {
		return c.BadRequest(errors.ErrInvalidInput, "state and code are required")
	}

	status, appErr := c.service.HandleCallback(ctx.Request().Context(), state, code)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, status)
}

// Disconnect revokes and removes the calendar connection
// POST /api/v1/private/calendar/disconnect
func (c *CalendarController) Disconnect(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	if appErr := c.service.Disconnect(ctx.Request().Context(), identity); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Status reports whether a calendar is connected and for which account
// GET /api/v1/private/calendar/status
func (c *CalendarController) Status(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	status, appErr := c.service.Status(ctx.Request().Context(), identity)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, status)
}

// Calendars lists the connected account's calendars
// GET /api/v1/private/calendar/calendars
func (c *CalendarController) Calendars(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	infos, appErr := c.service.ListCalendars(ctx.Request().Context(), identity)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, infos)
}

// UpsertLesson creates or updates a lesson event, idempotently
// POST /api/v1/private/calendar/lessons
func (c *CalendarController) UpsertLesson(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	var req dto.UpsertLessonRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	res, appErr := c.service.UpsertLesson(ctx.Request().Context(), identity, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, res)
}

// ListLessons returns the student's lesson occurrences in a window
// GET /api/v1/private/calendar/lessons
func (c *CalendarController) ListLessons(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	q := dto.ListLessonsQuery{
		StudentID:  ctx.QueryParam("student_id"),
		CalendarID: ctx.QueryParam("calendar_id"),
	}
	if q.StudentID == "" {
		return c.BadRequest(errors.ErrInvalidInput, "student_id is required")
	}
	if raw := ctx.QueryParam("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.BadRequest(errors.ErrInvalidInput, "invalid from time")
		}
		q.From = from
	}
	if raw := ctx.QueryParam("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.BadRequest(errors.ErrInvalidInput, "invalid to time")
		}
		q.To = to
	}

	rows, appErr := c.service.ListLessons(ctx.Request().Context(), identity, q)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, rows)
}

// EditOccurrence reschedules one occurrence or a series tail
// POST /api/v1/private/calendar/lessons/occurrence
func (c *CalendarController) EditOccurrence(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	var req dto.EditOccurrenceRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	res, appErr := c.service.EditOccurrence(ctx.Request().Context(), identity, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, res)
}

// DeleteOccurrence removes one occurrence or a series tail
// DELETE /api/v1/private/calendar/lessons/occurrence
func (c *CalendarController) DeleteOccurrence(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	var req dto.DeleteOccurrenceRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	res, appErr := c.service.DeleteOccurrence(ctx.Request().Context(), identity, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, res)
}

// DeleteAllLessons removes every lesson event of a student
// DELETE /api/v1/private/calendar/students/:id/lessons
func (c *CalendarController) DeleteAllLessons(ctx echo.Context) error {
	identity, ok := middleware.IdentityFrom(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user")
	}

	studentID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid student id")
	}

	res, appErr := c.service.DeleteAllLessons(ctx.Request().Context(), identity, studentID, ctx.QueryParam("calendar_id"))
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, res)
}
