package router

import (
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/student/controller"

	"github.com/labstack/echo/v4"
)

type StudentRouter struct {
	controller *controller.StudentController
}

func NewStudentRouter(controller *controller.StudentController) *StudentRouter {
	return &StudentRouter{controller: controller}
}

func (r *StudentRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	students := e.Group("/api/v1/private/students")
	students.Use(mw.AuthMiddleware())

	students.POST("", r.controller.Create)
	students.GET("", r.controller.List)
	students.GET("/:id", r.controller.Get)
	students.PATCH("/:id", r.controller.Update)
	students.DELETE("/:id", r.controller.Delete)
}
