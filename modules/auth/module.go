package auth

import (
	"github.com/kdvornichenko/weika-students/core/database"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/auth/controller"
	"github.com/kdvornichenko/weika-students/modules/auth/repository"
	"github.com/kdvornichenko/weika-students/modules/auth/router"
	"github.com/kdvornichenko/weika-students/modules/auth/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Echo, db database.Database) {
	repo := repository.NewAuthRepository(db)
	authService := service.NewAuthService(repo)
	authController := controller.NewAuthController(authService)

	mw := middleware.NewMiddleware(authService)
	router.NewAuthRouter(authController).Setup(e, mw)
}

// GetService creates an AuthService instance for use by other modules
// (middleware wiring).
func GetService(db database.Database) service.AuthService {
	repo := repository.NewAuthRepository(db)
	return service.NewAuthService(repo)
}
