package export

import (
	"github.com/kdvornichenko/weika-students/core/cache"
	"github.com/kdvornichenko/weika-students/core/database"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/auth"
	"github.com/kdvornichenko/weika-students/modules/calendar"
	"github.com/kdvornichenko/weika-students/modules/export/controller"
	"github.com/kdvornichenko/weika-students/modules/export/router"
	"github.com/kdvornichenko/weika-students/modules/export/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Echo, db database.Database, c cache.Cache) {
	exportService := service.NewExportService(calendar.GetService(db, c))
	exportController := controller.NewExportController(exportService)

	mw := middleware.NewMiddleware(auth.GetService(db))
	router.NewExportRouter(exportController).Setup(e, mw)
}
