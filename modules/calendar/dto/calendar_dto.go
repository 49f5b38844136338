package dto

import "time"

// Scope of an occurrence mutation.
const (
	ScopeThis      = "this"
	ScopeFollowing = "following"
)

type UpsertLessonRequest struct {
	StudentID    string `json:"student_id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	StartISO     string `json:"start_iso"`
	DurationMins int    `json:"duration_mins"`
	TimeZone     string `json:"time_zone,omitempty"`
	RepeatWeekly bool   `json:"repeat_weekly"`
	CalendarID   string `json:"calendar_id,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

type UpsertLessonResponse struct {
	EventID string `json:"event_id"`
}

type ListLessonsQuery struct {
	StudentID  string
	CalendarID string
	From       time.Time
	To         time.Time
}

// LessonRow is one client-visible lesson occurrence.
type LessonRow struct {
	ID               string    `json:"id"`
	RecurringEventID string    `json:"recurring_event_id,omitempty"`
	Title            string    `json:"title"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	AllDay           bool      `json:"all_day,omitempty"`
}

// OccurrenceTarget identifies the occurrence a mutation anchors on. For a
// plain single event RecurringEventID is empty and EventID is the event
// itself; for a series occurrence EventID is the expanded instance id.
type OccurrenceTarget struct {
	StudentID        string `json:"student_id"`
	EventID          string `json:"event_id"`
	RecurringEventID string `json:"recurring_event_id,omitempty"`
	Title            string `json:"title,omitempty"`
	StartISO         string `json:"start_iso"`
	CalendarID       string `json:"calendar_id,omitempty"`
}

type EditOccurrenceRequest struct {
	Target       OccurrenceTarget `json:"target"`
	NewStartISO  string           `json:"new_start_iso"`
	DurationMins int              `json:"duration_mins"`
	RepeatWeekly bool             `json:"repeat_weekly,omitempty"`
	Scope        string           `json:"scope"`
	// Rows, when supplied, is the client's current row set; the response
	// carries it projected to the post-edit state so the UI can render
	// immediately and reconcile on the next reload.
	Rows []LessonRow `json:"rows,omitempty"`
}

type DeleteOccurrenceRequest struct {
	Target OccurrenceTarget `json:"target"`
	Scope  string           `json:"scope"`
	Rows   []LessonRow      `json:"rows,omitempty"`
}

type MutationResponse struct {
	Rows []LessonRow `json:"rows,omitempty"`
}

type PurgeResult struct {
	DeletedSeries  int `json:"deleted_series"`
	DeletedSingles int `json:"deleted_singles"`
}

type ConnectURLResponse struct {
	URL string `json:"url"`
}

type CalendarInfo struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Primary bool   `json:"primary,omitempty"`
}

type StatusResponse struct {
	Connected       bool   `json:"connected"`
	AccountEmail    string `json:"account_email,omitempty"`
	CalendarID      string `json:"calendar_id,omitempty"`
	CalendarSummary string `json:"calendar_summary,omitempty"`
}
