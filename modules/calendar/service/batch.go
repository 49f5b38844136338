package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kdvornichenko/weika-students/core/constants"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/logger"
	"github.com/kdvornichenko/weika-students/modules/calendar/dto"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// occurrenceTarget is the parsed mutation anchor.
type occurrenceTarget struct {
	StudentID  uuid.UUID
	EventID    string
	SeriesID   string
	Title      string
	Start      time.Time
	CalendarID string
}

func parseTarget(t dto.OccurrenceTarget, defaultCalendarID string) (*occurrenceTarget, *errors.AppError) {
	studentID, err := uuid.Parse(t.StudentID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid student id", err)
	}
	if t.EventID == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "event id is required", nil)
	}
	start, err := time.Parse(time.RFC3339, t.StartISO)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid target start time", err)
	}

	target := &occurrenceTarget{
		StudentID:  studentID,
		EventID:    t.EventID,
		SeriesID:   t.RecurringEventID,
		Title:      t.Title,
		Start:      start,
		CalendarID: t.CalendarID,
	}
	if target.CalendarID == "" {
		target.CalendarID = defaultCalendarID
	}
	return target, nil
}

// applyEdit reschedules one occurrence or a tail of a series.
func (s *calendarService) applyEdit(ctx context.Context, client Client, target *occurrenceTarget, newStart time.Time, duration time.Duration, repeatWeekly bool, scope string) error {
	newEnd := newStart.Add(duration)

	// Plain single event.
	if target.SeriesID == "" {
		if repeatWeekly {
			return s.promoteToSeries(ctx, client, target, newStart, duration)
		}
		return s.retry.do(ctx, "edit.single", func() error {
			_, err := client.PatchEvent(ctx, target.CalendarID, target.EventID, &EventPatch{
				Start: &newStart,
				End:   &newEnd,
			})
			return err
		})
	}

	if scope == dto.ScopeThis {
		instance, err := findOccurrence(ctx, client, target.CalendarID, target.SeriesID, target.Start)
		if err != nil {
			if stderrors.Is(err, errInstanceNotFound) {
				logger.Warn("CalendarService:Edit:OccurrenceNotFound",
					"series_id", target.SeriesID, "start", target.Start)
				return nil
			}
			return err
		}
		return s.retry.do(ctx, "edit.instance", func() error {
			_, perr := client.PatchEvent(ctx, target.CalendarID, instance.ID, &EventPatch{
				Start: &newStart,
				End:   &newEnd,
			})
			return perr
		})
	}

	// This-and-following: shift every occurrence from the anchor onward by
	// the same delta. Occurrences before the anchor stay untouched.
	delta := newStart.Sub(target.Start)
	tail, err := s.seriesTail(ctx, client, target)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.BatchEditConcurrency)
	for i := range tail {
		inst := tail[i]
		g.Go(func() error {
			shiftedStart := inst.Start.Add(delta)
			shiftedEnd := shiftedStart.Add(duration)
			return s.retry.do(gctx, "edit.following", func() error {
				_, perr := client.PatchEvent(gctx, target.CalendarID, inst.ID, &EventPatch{
					Start: &shiftedStart,
					End:   &shiftedEnd,
				})
				return perr
			})
		})
	}
	return g.Wait()
}

// promoteToSeries converts a single event into a weekly series. The series is
// created first under a deterministic conversion token, so a retried or
// crashed promotion can never end with the lesson gone: worst case both the
// new series and the old single exist until the retry finishes the delete.
func (s *calendarService) promoteToSeries(ctx context.Context, client Client, target *occurrenceTarget, newStart time.Time, duration time.Duration) error {
	lesson := &Lesson{
		StudentID:  target.StudentID,
		Title:      target.Title,
		Start:      newStart,
		Duration:   duration,
		Recurrence: &WeeklyRecurrence{Until: newStart.UTC().AddDate(1, 0, 0)},
		RequestID:  "convert:" + target.EventID + ":" + minuteKey(newStart),
		CalendarID: target.CalendarID,
	}
	if lesson.Title == "" {
		lesson.Title = "Lesson"
	}

	seriesID, err := s.router.coalesce(lessonKey(lesson), func() (string, error) {
		return s.resolveUpsert(ctx, client, lesson)
	})
	if err != nil {
		return err
	}
	logger.Info("CalendarService:Promote:SeriesCreated",
		"student_id", target.StudentID, "series_id", seriesID, "old_event_id", target.EventID)

	err = s.retry.do(ctx, "promote.delete", func() error {
		derr := client.DeleteEvent(ctx, target.CalendarID, target.EventID)
		if isNotFound(derr) {
			return nil
		}
		return derr
	})
	return err
}

// applyDelete removes one occurrence or a tail of a series. A 404 anywhere is
// already-satisfied, not a failure.
func (s *calendarService) applyDelete(ctx context.Context, client Client, target *occurrenceTarget, scope string) error {
	if target.SeriesID == "" {
		return s.deleteEvent(ctx, client, target.CalendarID, target.EventID)
	}

	if scope == dto.ScopeThis {
		instance, err := findOccurrence(ctx, client, target.CalendarID, target.SeriesID, target.Start)
		if err != nil {
			if stderrors.Is(err, errInstanceNotFound) {
				return nil
			}
			return err
		}
		return s.deleteEvent(ctx, client, target.CalendarID, instance.ID)
	}

	tail, err := s.seriesTail(ctx, client, target)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.BatchDeleteConcurrency)
	for i := range tail {
		inst := tail[i]
		g.Go(func() error {
			return s.deleteEvent(gctx, client, target.CalendarID, inst.ID)
		})
	}
	return g.Wait()
}

func (s *calendarService) deleteEvent(ctx context.Context, client Client, calendarID, eventID string) error {
	return s.retry.do(ctx, "delete.event", func() error {
		err := client.DeleteEvent(ctx, calendarID, eventID)
		if isNotFound(err) {
			return nil
		}
		return err
	})
}

// seriesTail lists the series occurrences starting at the anchor. The series
// is bounded to a year by its recurrence rule, so a fixed lookahead covers it.
func (s *calendarService) seriesTail(ctx context.Context, client Client, target *occurrenceTarget) ([]Event, error) {
	from := target.Start.Add(-time.Minute)
	to := target.Start.AddDate(1, 0, 7)

	var instances []Event
	err := s.retry.do(ctx, "series.tail", func() error {
		var lerr error
		instances, lerr = client.Instances(ctx, target.CalendarID, target.SeriesID, from, to)
		return lerr
	})
	if err != nil {
		return nil, err
	}

	anchor := target.Start.UTC().Truncate(time.Minute)
	tail := instances[:0]
	for _, inst := range instances {
		if inst.Status == "cancelled" {
			continue
		}
		if !inst.Start.UTC().Truncate(time.Minute).Before(anchor) {
			tail = append(tail, inst)
		}
	}
	return tail, nil
}

// purgeStudent deletes every event tagged with the student across a wide
// window: series masters once each, then the remaining true singles.
func (s *calendarService) purgeStudent(ctx context.Context, client Client, calendarID string, studentID uuid.UUID) (*dto.PurgeResult, error) {
	now := s.now()
	var events []Event
	err := s.retry.do(ctx, "purge.list", func() error {
		var lerr error
		events, lerr = client.ListEvents(ctx, calendarID, EventQuery{
			TimeMin:    now.AddDate(-5, 0, 0),
			TimeMax:    now.AddDate(5, 0, 0),
			Private:    map[string]string{propStudentID: studentID.String()},
			MaxResults: constants.MaxListResults,
		})
		return lerr
	})
	if err != nil {
		return nil, err
	}

	masters := map[string]struct{}{}
	var singles []string
	for _, ev := range events {
		if ev.RecurringEventID != "" {
			masters[ev.RecurringEventID] = struct{}{}
		} else if len(ev.Recurrence) > 0 {
			masters[ev.ID] = struct{}{}
		} else {
			singles = append(singles, ev.ID)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.BatchDeleteConcurrency)
	for id := range masters {
		g.Go(func() error {
			return s.deleteEvent(gctx, client, calendarID, id)
		})
	}
	for _, id := range singles {
		g.Go(func() error {
			return s.deleteEvent(gctx, client, calendarID, id)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.repo.ClearSeriesAnchor(ctx, studentID); err != nil {
		logger.Warn("CalendarService:Purge:ClearAnchor:Error", "error", err, "student_id", studentID)
	}
	return &dto.PurgeResult{
		DeletedSeries:  len(masters),
		DeletedSingles: len(singles),
	}, nil
}
