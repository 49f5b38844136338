package entity

import (
	"time"

	"github.com/kdvornichenko/weika-students/core/entity"

	"github.com/google/uuid"
)

// CalendarCredential is the tutor's connected external calendar account.
// Written only by the connect/disconnect flow; everything else reads it.
type CalendarCredential struct {
	entity.BaseEntity
	UserID          uuid.UUID `db:"user_id"`
	Provider        string    `db:"provider"`
	RefreshToken    string    `db:"refresh_token"`
	AccountEmail    string    `db:"account_email"`
	AccountID       string    `db:"account_id"`
	CalendarID      string    `db:"calendar_id"`
	CalendarSummary string    `db:"calendar_summary"`
}

const (
	RequestStatusPending = "pending"
	RequestStatusDone    = "done"
)

// CalendarRequest is a persisted idempotency record: one row per
// (student, request token). Once status is done, later attempts with the same
// token return the stored event id without touching the remote calendar.
type CalendarRequest struct {
	ID        uuid.UUID `db:"id"`
	StudentID uuid.UUID `db:"student_id"`
	RequestID string    `db:"request_id"`
	Status    string    `db:"status"`
	EventID   *string   `db:"event_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SeriesAnchor is the student's last known recurring-series master, stored on
// the student row itself.
type SeriesAnchor struct {
	CalendarID string `db:"series_calendar_id"`
	EventID    string `db:"series_event_id"`
}
