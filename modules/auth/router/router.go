package router

import (
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/auth/controller"

	"github.com/labstack/echo/v4"
)

type AuthRouter struct {
	controller *controller.AuthController
}

func NewAuthRouter(controller *controller.AuthController) *AuthRouter {
	return &AuthRouter{controller: controller}
}

func (r *AuthRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	public := v1.Group("/public/auth")
	public.POST("/register", r.controller.Register)
	public.POST("/login", r.controller.Login)

	private := v1.Group("/private/auth")
	private.Use(mw.AuthMiddleware())
	private.GET("/me", r.controller.Me)
}
