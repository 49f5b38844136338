package router

import (
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/export/controller"

	"github.com/labstack/echo/v4"
)

type ExportRouter struct {
	controller *controller.ExportController
}

func NewExportRouter(controller *controller.ExportController) *ExportRouter {
	return &ExportRouter{controller: controller}
}

func (r *ExportRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	students := e.Group("/api/v1/private/students")
	students.Use(mw.AuthMiddleware())

	students.GET("/:id/schedule.ics", r.controller.Schedule)
	students.POST("/:id/schedule/snapshot", r.controller.Snapshot)
}
