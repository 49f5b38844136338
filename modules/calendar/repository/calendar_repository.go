package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/kdvornichenko/weika-students/core/database"
	"github.com/kdvornichenko/weika-students/modules/calendar/entity"

	"github.com/google/uuid"
)

type CalendarRepository interface {
	GetCredential(ctx context.Context, userID uuid.UUID) (*entity.CalendarCredential, error)
	SaveCredential(ctx context.Context, cred *entity.CalendarCredential) error
	DeleteCredential(ctx context.Context, userID uuid.UUID) error

	GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error)

	GetRequest(ctx context.Context, studentID uuid.UUID, requestID string) (*entity.CalendarRequest, error)
	CreateRequest(ctx context.Context, studentID uuid.UUID, requestID string) error
	MarkRequestDone(ctx context.Context, studentID uuid.UUID, requestID, eventID string) error
	DeleteExpiredRequests(ctx context.Context, before time.Time) (int, error)

	GetSeriesAnchor(ctx context.Context, studentID uuid.UUID) (*entity.SeriesAnchor, error)
	SaveSeriesAnchor(ctx context.Context, studentID uuid.UUID, calendarID, eventID string) error
	ClearSeriesAnchor(ctx context.Context, studentID uuid.UUID) error
}

type calendarRepository struct {
	db database.Database
}

func NewCalendarRepository(db database.Database) CalendarRepository {
	return &calendarRepository{db: db}
}

func (r *calendarRepository) GetCredential(ctx context.Context, userID uuid.UUID) (*entity.CalendarCredential, error) {
	query := `
		SELECT id, user_id, provider, refresh_token, account_email, account_id,
		       calendar_id, calendar_summary, created_at, updated_at
		FROM calendar_credentials
		WHERE user_id = $1
	`
	var cred entity.CalendarCredential
	err := r.db.GetContext(ctx, &cred, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *calendarRepository) SaveCredential(ctx context.Context, cred *entity.CalendarCredential) error {
	query := `
		INSERT INTO calendar_credentials (
			user_id, provider, refresh_token, account_email, account_id,
			calendar_id, calendar_summary
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			refresh_token = EXCLUDED.refresh_token,
			account_email = EXCLUDED.account_email,
			account_id = EXCLUDED.account_id,
			calendar_id = EXCLUDED.calendar_id,
			calendar_summary = EXCLUDED.calendar_summary,
			updated_at = now()
	`
	return r.db.ExecContext(ctx, query,
		cred.UserID, cred.Provider, cred.RefreshToken, cred.AccountEmail,
		cred.AccountID, cred.CalendarID, cred.CalendarSummary,
	)
}

func (r *calendarRepository) DeleteCredential(ctx context.Context, userID uuid.UUID) error {
	return r.db.ExecContext(ctx, `DELETE FROM calendar_credentials WHERE user_id = $1`, userID)
}

func (r *calendarRepository) GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	var email string
	err := r.db.GetContext(ctx, &email, `SELECT email FROM users WHERE id = $1`, userID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return email, err
}

func (r *calendarRepository) GetRequest(ctx context.Context, studentID uuid.UUID, requestID string) (*entity.CalendarRequest, error) {
	query := `
		SELECT id, student_id, request_id, status, event_id, created_at, updated_at
		FROM calendar_requests
		WHERE student_id = $1 AND request_id = $2
	`
	var req entity.CalendarRequest
	err := r.db.GetContext(ctx, &req, query, studentID, requestID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateRequest records a pending attempt. A concurrent or earlier attempt
// with the same token leaves the existing row untouched.
func (r *calendarRepository) CreateRequest(ctx context.Context, studentID uuid.UUID, requestID string) error {
	query := `
		INSERT INTO calendar_requests (student_id, request_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, request_id) DO NOTHING
	`
	return r.db.ExecContext(ctx, query, studentID, requestID, entity.RequestStatusPending)
}

func (r *calendarRepository) MarkRequestDone(ctx context.Context, studentID uuid.UUID, requestID, eventID string) error {
	query := `
		UPDATE calendar_requests
		SET status = $1, event_id = $2, updated_at = now()
		WHERE student_id = $3 AND request_id = $4
	`
	return r.db.ExecContext(ctx, query, entity.RequestStatusDone, eventID, studentID, requestID)
}

func (r *calendarRepository) DeleteExpiredRequests(ctx context.Context, before time.Time) (int, error) {
	query := `
		WITH removed AS (
			DELETE FROM calendar_requests
			WHERE created_at < $1
			RETURNING 1
		)
		SELECT count(*) FROM removed
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, before); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *calendarRepository) GetSeriesAnchor(ctx context.Context, studentID uuid.UUID) (*entity.SeriesAnchor, error) {
	query := `
		SELECT coalesce(series_calendar_id, '') AS series_calendar_id,
		       coalesce(series_event_id, '') AS series_event_id
		FROM students
		WHERE id = $1
	`
	var anchor entity.SeriesAnchor
	err := r.db.GetContext(ctx, &anchor, query, studentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if anchor.EventID == "" {
		return nil, nil
	}
	return &anchor, nil
}

func (r *calendarRepository) SaveSeriesAnchor(ctx context.Context, studentID uuid.UUID, calendarID, eventID string) error {
	query := `
		UPDATE students
		SET series_calendar_id = $1, series_event_id = $2, updated_at = now()
		WHERE id = $3
	`
	return r.db.ExecContext(ctx, query, calendarID, eventID, studentID)
}

func (r *calendarRepository) ClearSeriesAnchor(ctx context.Context, studentID uuid.UUID) error {
	query := `
		UPDATE students
		SET series_calendar_id = NULL, series_event_id = NULL, updated_at = now()
		WHERE id = $1
	`
	return r.db.ExecContext(ctx, query, studentID)
}
