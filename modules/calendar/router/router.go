package router

import (
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/calendar/controller"

	"github.com/labstack/echo/v4"
)

type CalendarRouter struct {
	controller *controller.CalendarController
}

func NewCalendarRouter(controller *controller.CalendarController) *CalendarRouter {
	return &CalendarRouter{controller: controller}
}

func (r *CalendarRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	// The provider's redirect lands here without our bearer token; the signed
	// state inside the query is what authenticates it.
	e.GET("/api/v1/public/calendar/callback", r.controller.Callback)

	cal := e.Group("/api/v1/private/calendar")
	cal.Use(mw.AuthMiddleware())

	cal.GET("/connect", r.controller.Connect)
	cal.POST("/disconnect", r.controller.Disconnect)
	cal.GET("/status", r.controller.Status)
	cal.GET("/calendars", r.controller.Calendars)

	cal.POST("/lessons", r.controller.UpsertLesson)
	cal.GET("/lessons", r.controller.ListLessons)
	cal.POST("/lessons/occurrence", r.controller.EditOccurrence)
	cal.DELETE("/lessons/occurrence", r.controller.DeleteOccurrence)
	cal.DELETE("/students/:id/lessons", r.controller.DeleteAllLessons)
}
