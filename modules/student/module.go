package student

import (
	"github.com/kdvornichenko/weika-students/core/database"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/core/queue"
	"github.com/kdvornichenko/weika-students/modules/auth"
	"github.com/kdvornichenko/weika-students/modules/student/controller"
	"github.com/kdvornichenko/weika-students/modules/student/repository"
	"github.com/kdvornichenko/weika-students/modules/student/router"
	"github.com/kdvornichenko/weika-students/modules/student/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Echo, db database.Database, q *queue.Queue) {
	repo := repository.NewStudentRepository(db)
	studentService := service.NewStudentService(repo, q)
	studentController := controller.NewStudentController(studentService)

	mw := middleware.NewMiddleware(auth.GetService(db))
	router.NewStudentRouter(studentController).Setup(e, mw)
}
