package task

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeCalendarPurge removes every remote lesson event for a student after
	// the student row itself is gone. Runs out of band so the delete endpoint
	// stays fast.
	TypeCalendarPurge = "calendar:purge"

	// TypeRequestCleanup drops idempotency request records past their
	// retention window. Registered on a periodic schedule.
	TypeRequestCleanup = "calendar:requests:cleanup"
)

type PurgePayload struct {
	UserID     string `json:"user_id"`
	StudentID  string `json:"student_id"`
	CalendarID string `json:"calendar_id"`
}

func NewPurgeTask(p PurgePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCalendarPurge, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(5*time.Minute),
	), nil
}

func NewRequestCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeRequestCleanup, nil, asynq.MaxRetry(2))
}
