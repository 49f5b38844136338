package service

import (
	"context"
	"strings"
	"time"

	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/logger"
	"github.com/kdvornichenko/weika-students/modules/calendar/dto"

	"github.com/google/uuid"
)

type WeeklyRecurrence struct {
	Until time.Time
}

// Lesson is the logical lesson being reconciled into the remote calendar.
// Recurrence nil means a single lesson; the variant is resolved once at the
// DTO boundary and never re-derived downstream.
type Lesson struct {
	StudentID   uuid.UUID
	Title       string
	Description string
	Start       time.Time
	Duration    time.Duration
	TimeZone    string
	Recurrence  *WeeklyRecurrence
	RequestID   string
	CalendarID  string
}

// lessonFromRequest validates and normalizes the upsert payload. All
// rejections happen here, before any remote call.
func lessonFromRequest(req *dto.UpsertLessonRequest) (*Lesson, *errors.AppError) {
	studentID, err := uuid.Parse(req.StudentID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid student id", err)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "title is required", nil)
	}
	start, err := time.Parse(time.RFC3339, req.StartISO)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid start time", err)
	}
	if req.DurationMins < 1 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "duration must be at least one minute", nil)
	}

	lesson := &Lesson{
		StudentID:   studentID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Start:       start,
		Duration:    time.Duration(req.DurationMins) * time.Minute,
		TimeZone:    req.TimeZone,
		RequestID:   req.RequestID,
		CalendarID:  req.CalendarID,
	}
	if req.RepeatWeekly {
		lesson.Recurrence = &WeeklyRecurrence{Until: start.UTC().AddDate(1, 0, 0)}
	}
	return lesson, nil
}

func (l *Lesson) end() time.Time {
	return l.Start.Add(l.Duration)
}

func (l *Lesson) privateProps() map[string]string {
	props := map[string]string{propStudentID: l.StudentID.String()}
	if l.RequestID != "" {
		props[propRequestID] = l.RequestID
	}
	return props
}

// resolveUpsert is the upsert state machine. It runs under the singleflight
// key, so per logical lesson at most one invocation mutates the remote
// calendar at a time.
func (s *calendarService) resolveUpsert(ctx context.Context, client Client, lesson *Lesson) (string, error) {
	// Completed token request: answer from the record, zero remote calls.
	if eventID, done, err := s.router.recordedResult(ctx, lesson.StudentID, lesson.RequestID); err != nil {
		return "", err
	} else if done {
		logger.Info("CalendarService:Upsert:ServedFromRecord",
			"student_id", lesson.StudentID, "request_id", lesson.RequestID, "event_id", eventID)
		return eventID, nil
	}

	key := lessonKey(lesson)
	if eventID, ok := s.router.cachedResult(ctx, key); ok {
		return eventID, nil
	}

	if err := s.router.beginRequest(ctx, lesson.StudentID, lesson.RequestID); err != nil {
		return "", err
	}

	var match *Event
	err := s.retry.do(ctx, "upsert.prelist", func() error {
		var lerr error
		match, lerr = s.router.findRemoteMatch(ctx, client, lesson.CalendarID, lesson.StudentID, lesson.RequestID, lesson.Start)
		return lerr
	})
	if err != nil {
		return "", err
	}

	var eventID string
	if lesson.Recurrence == nil {
		eventID, err = s.upsertSingle(ctx, client, lesson, match)
	} else {
		eventID, err = s.upsertSeries(ctx, client, lesson, match)
	}
	if err != nil {
		return "", err
	}

	s.router.completeRequest(ctx, lesson.StudentID, lesson.RequestID, eventID)
	s.router.storeResult(ctx, key, eventID)
	return eventID, nil
}

func (s *calendarService) upsertSingle(ctx context.Context, client Client, lesson *Lesson, match *Event) (string, error) {
	if match != nil {
		// Same-minute event already exists for this student: adopt it and
		// patch time fields only, leaving its metadata untouched.
		start, end := lesson.Start, lesson.end()
		err := s.retry.do(ctx, "upsert.patch", func() error {
			_, perr := client.PatchEvent(ctx, lesson.CalendarID, match.ID, &EventPatch{
				Start:    &start,
				End:      &end,
				TimeZone: lesson.TimeZone,
			})
			return perr
		})
		if err != nil {
			return "", err
		}
		logger.Info("CalendarService:Upsert:AdoptedExisting",
			"student_id", lesson.StudentID, "event_id", match.ID)
		return match.ID, nil
	}

	var created *Event
	err := s.retry.do(ctx, "upsert.insert", func() error {
		var ierr error
		created, ierr = client.InsertEvent(ctx, lesson.CalendarID, &EventWrite{
			Title:       lesson.Title,
			Description: lesson.Description,
			Start:       lesson.Start,
			End:         lesson.end(),
			TimeZone:    lesson.TimeZone,
			Private:     lesson.privateProps(),
		})
		return ierr
	})
	if err != nil {
		return "", err
	}
	if created == nil || created.ID == "" {
		// The write was accepted but we cannot address the event; retrying
		// would risk a duplicate, so this is fatal.
		return "", errors.NewAppError(errors.ErrNoEventID, "calendar returned no event id", nil)
	}
	return created.ID, nil
}

func (s *calendarService) upsertSeries(ctx context.Context, client Client, lesson *Lesson, match *Event) (string, error) {
	rule := []string{weeklyRule(lesson.Start)}
	start, end := lesson.Start, lesson.end()

	// A token match points at an existing series master: update it in place.
	if match != nil {
		masterID := match.ID
		if match.RecurringEventID != "" {
			masterID = match.RecurringEventID
		}
		err := s.retry.do(ctx, "upsert.series.patch", func() error {
			_, perr := client.PatchEvent(ctx, lesson.CalendarID, masterID, &EventPatch{
				Start:      &start,
				End:        &end,
				TimeZone:   lesson.TimeZone,
				Recurrence: rule,
			})
			return perr
		})
		if err != nil {
			return "", err
		}
		s.saveAnchor(ctx, lesson.StudentID, lesson.CalendarID, masterID)
		return masterID, nil
	}

	// No token match: fall back to the student's stored series anchor.
	anchor, err := s.repo.GetSeriesAnchor(ctx, lesson.StudentID)
	if err != nil {
		return "", err
	}
	if anchor != nil {
		masterID := anchor.EventID
		if anchor.CalendarID != "" && anchor.CalendarID != lesson.CalendarID {
			err := s.retry.do(ctx, "upsert.series.move", func() error {
				_, merr := client.MoveEvent(ctx, anchor.CalendarID, masterID, lesson.CalendarID)
				return merr
			})
			if err != nil {
				if !isNotFound(err) {
					return "", err
				}
				// Anchor is stale; fall through to creating a fresh series.
				anchor = nil
			}
		}
		if anchor != nil {
			err := s.retry.do(ctx, "upsert.series.patch", func() error {
				_, perr := client.PatchEvent(ctx, lesson.CalendarID, masterID, &EventPatch{
					Start:      &start,
					End:        &end,
					TimeZone:   lesson.TimeZone,
					Recurrence: rule,
				})
				return perr
			})
			if err != nil {
				if !isNotFound(err) {
					return "", err
				}
				anchor = nil
			} else {
				s.saveAnchor(ctx, lesson.StudentID, lesson.CalendarID, masterID)
				return masterID, nil
			}
		}
	}

	var created *Event
	err = s.retry.do(ctx, "upsert.series.insert", func() error {
		var ierr error
		created, ierr = client.InsertEvent(ctx, lesson.CalendarID, &EventWrite{
			Title:       lesson.Title,
			Description: lesson.Description,
			Start:       lesson.Start,
			End:         lesson.end(),
			TimeZone:    lesson.TimeZone,
			Recurrence:  rule,
			Private:     lesson.privateProps(),
		})
		return ierr
	})
	if err != nil {
		return "", err
	}
	if created == nil || created.ID == "" {
		return "", errors.NewAppError(errors.ErrNoEventID, "calendar returned no event id", nil)
	}
	s.saveAnchor(ctx, lesson.StudentID, lesson.CalendarID, created.ID)
	return created.ID, nil
}

func (s *calendarService) saveAnchor(ctx context.Context, studentID uuid.UUID, calendarID, eventID string) {
	if err := s.repo.SaveSeriesAnchor(ctx, studentID, calendarID, eventID); err != nil {
		logger.Error("CalendarService:SaveAnchor:Error", "error", err, "student_id", studentID)
	}
}
