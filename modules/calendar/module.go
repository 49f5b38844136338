package calendar

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kdvornichenko/weika-students/core/cache"
	"github.com/kdvornichenko/weika-students/core/database"
	"github.com/kdvornichenko/weika-students/core/logger"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/core/queue"
	"github.com/kdvornichenko/weika-students/modules/auth"
	"github.com/kdvornichenko/weika-students/modules/calendar/controller"
	"github.com/kdvornichenko/weika-students/modules/calendar/repository"
	"github.com/kdvornichenko/weika-students/modules/calendar/router"
	"github.com/kdvornichenko/weika-students/modules/calendar/service"
	"github.com/kdvornichenko/weika-students/modules/calendar/task"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
)

func Init(e *echo.Echo, db database.Database, c cache.Cache, q *queue.Queue) {
	repo := repository.NewCalendarRepository(db)
	calendarService := service.NewCalendarService(repo, c)
	calendarController := controller.NewCalendarController(calendarService)

	mw := middleware.NewMiddleware(auth.GetService(db))
	router.NewCalendarRouter(calendarController).Setup(e, mw)

	q.HandleFunc(task.TypeCalendarPurge, handlePurge(calendarService))
	q.HandleFunc(task.TypeRequestCleanup, func(ctx context.Context, _ *asynq.Task) error {
		return calendarService.CleanupRequests(ctx)
	})
	if err := q.Schedule("@every 1h", task.NewRequestCleanupTask()); err != nil {
		logger.Error("Calendar:Init:ScheduleCleanup:Error", "error", err)
	}
}

// GetService creates a CalendarService for use by other modules (export).
func GetService(db database.Database, c cache.Cache) service.CalendarService {
	return service.NewCalendarService(repository.NewCalendarRepository(db), c)
}

func handlePurge(calendarService service.CalendarService) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload task.PurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("purge payload: %w: %w", err, asynq.SkipRetry)
		}
		userID, err := uuid.Parse(payload.UserID)
		if err != nil {
			return fmt.Errorf("purge user id: %w: %w", err, asynq.SkipRetry)
		}
		studentID, err := uuid.Parse(payload.StudentID)
		if err != nil {
			return fmt.Errorf("purge student id: %w: %w", err, asynq.SkipRetry)
		}

		result, err := calendarService.PurgeStudent(ctx, userID, studentID, payload.CalendarID)
		if err != nil {
			logger.Error("Calendar:PurgeTask:Error", "error", err, "student_id", payload.StudentID)
			return err
		}
		logger.Info("Calendar:PurgeTask:Done",
			"student_id", payload.StudentID,
			"deleted_series", result.DeletedSeries,
			"deleted_singles", result.DeletedSingles)
		return nil
	}
}
