package service

import (
	"context"
	"time"

	"github.com/kdvornichenko/weika-students/core/cache"
	"github.com/kdvornichenko/weika-students/core/constants"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/logger"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/calendar/dto"
	"github.com/kdvornichenko/weika-students/modules/calendar/projector"
	"github.com/kdvornichenko/weika-students/modules/calendar/repository"

	"github.com/google/uuid"
)

type CalendarService interface {
	ConnectURL(ctx context.Context, identity middleware.Identity) (string, *errors.AppError)
	HandleCallback(ctx context.Context, state, code string) (*dto.StatusResponse, *errors.AppError)
	Disconnect(ctx context.Context, identity middleware.Identity) *errors.AppError
	Status(ctx context.Context, identity middleware.Identity) (*dto.StatusResponse, *errors.AppError)
	ListCalendars(ctx context.Context, identity middleware.Identity) ([]dto.CalendarInfo, *errors.AppError)

	UpsertLesson(ctx context.Context, identity middleware.Identity, req *dto.UpsertLessonRequest) (*dto.UpsertLessonResponse, *errors.AppError)
	ListLessons(ctx context.Context, identity middleware.Identity, q dto.ListLessonsQuery) ([]dto.LessonRow, *errors.AppError)
	EditOccurrence(ctx context.Context, identity middleware.Identity, req *dto.EditOccurrenceRequest) (*dto.MutationResponse, *errors.AppError)
	DeleteOccurrence(ctx context.Context, identity middleware.Identity, req *dto.DeleteOccurrenceRequest) (*dto.MutationResponse, *errors.AppError)
	DeleteAllLessons(ctx context.Context, identity middleware.Identity, studentID uuid.UUID, calendarID string) (*dto.PurgeResult, *errors.AppError)

	PurgeStudent(ctx context.Context, userID, studentID uuid.UUID, calendarID string) (*dto.PurgeResult, error)
	CleanupRequests(ctx context.Context) error
}

type calendarService struct {
	repo    repository.CalendarRepository
	cache   cache.Cache
	gateway *Gateway
	clients ClientProvider
	router  *idempotencyRouter
	retry   *retrier
	now     func() time.Time
}

func NewCalendarService(repo repository.CalendarRepository, c cache.Cache) CalendarService {
	gw := NewGateway(repo)
	return &calendarService{
		repo:    repo,
		cache:   c,
		gateway: gw,
		clients: gw,
		router:  newIdempotencyRouter(repo, c),
		retry:   newRetrier(),
		now:     time.Now,
	}
}

func (s *calendarService) Status(ctx context.Context, identity middleware.Identity) (*dto.StatusResponse, *errors.AppError) {
	cred, err := s.repo.GetCredential(ctx, identity.UserID)
	if err != nil {
		logger.Error("CalendarService:Status:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load credential", err)
	}
	if cred == nil {
		return &dto.StatusResponse{Connected: false}, nil
	}
	return &dto.StatusResponse{
		Connected:       true,
		AccountEmail:    cred.AccountEmail,
		CalendarID:      cred.CalendarID,
		CalendarSummary: cred.CalendarSummary,
	}, nil
}

func (s *calendarService) ListCalendars(ctx context.Context, identity middleware.Identity) ([]dto.CalendarInfo, *errors.AppError) {
	client, _, appErr := s.clients.ClientFor(ctx, identity)
	if appErr != nil {
		return nil, appErr
	}

	entries, err := client.ListCalendars(ctx)
	if err != nil {
		logger.Error("CalendarService:ListCalendars:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to list calendars", err)
	}

	infos := make([]dto.CalendarInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, dto.CalendarInfo{ID: entry.ID, Summary: entry.Summary, Primary: entry.Primary})
	}
	return infos, nil
}

func (s *calendarService) UpsertLesson(ctx context.Context, identity middleware.Identity, req *dto.UpsertLessonRequest) (*dto.UpsertLessonResponse, *errors.AppError) {
	lesson, appErr := lessonFromRequest(req)
	if appErr != nil {
		return nil, appErr
	}

	client, cred, appErr := s.clients.ClientFor(ctx, identity)
	if appErr != nil {
		return nil, appErr
	}
	if lesson.CalendarID == "" {
		lesson.CalendarID = credCalendarID(cred.CalendarID)
	}

	eventID, err := s.router.coalesce(lessonKey(lesson), func() (string, error) {
		return s.resolveUpsert(ctx, client, lesson)
	})
	if err != nil {
		return nil, asAppError(err, "upsert failed")
	}

	logger.Info("CalendarService:Upsert:Done",
		"student_id", lesson.StudentID, "event_id", eventID, "recurring", lesson.Recurrence != nil)
	return &dto.UpsertLessonResponse{EventID: eventID}, nil
}

func (s *calendarService) ListLessons(ctx context.Context, identity middleware.Identity, q dto.ListLessonsQuery) ([]dto.LessonRow, *errors.AppError) {
	studentID, err := uuid.Parse(q.StudentID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid student id", err)
	}

	client, cred, appErr := s.clients.ClientFor(ctx, identity)
	if appErr != nil {
		return nil, appErr
	}

	calendarID := q.CalendarID
	if calendarID == "" {
		calendarID = credCalendarID(cred.CalendarID)
	}
	from, to := q.From, q.To
	if from.IsZero() {
		from = s.now()
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, constants.DefaultListDays)
	}

	var events []Event
	lerr := s.retry.do(ctx, "lessons.list", func() error {
		var e error
		events, e = client.ListEvents(ctx, calendarID, EventQuery{
			TimeMin:    from,
			TimeMax:    to,
			Private:    map[string]string{propStudentID: studentID.String()},
			MaxResults: constants.MaxListResults,
		})
		return e
	})
	if lerr != nil {
		return nil, asAppError(lerr, "failed to list lessons")
	}

	rows := make([]dto.LessonRow, 0, len(events))
	for _, ev := range events {
		if ev.Status == "cancelled" {
			continue
		}
		rows = append(rows, dto.LessonRow{
			ID:               ev.ID,
			RecurringEventID: ev.RecurringEventID,
			Title:            ev.Title,
			Start:            ev.Start,
			End:              ev.End,
			AllDay:           ev.AllDay,
		})
	}
	return rows, nil
}

func (s *calendarService) EditOccurrence(ctx context.Context, identity middleware.Identity, req *dto.EditOccurrenceRequest) (*dto.MutationResponse, *errors.AppError) {
	newStart, err := time.Parse(time.RFC3339, req.NewStartISO)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid new start time", err)
	}
	if req.DurationMins < 1 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "duration must be at least one minute", nil)
	}
	scope := req.Scope
	if scope != dto.ScopeFollowing {
		scope = dto.ScopeThis
	}

	client, cred, appErr := s.clients.ClientFor(ctx, identity)
	if appErr != nil {
		return nil, appErr
	}
	target, appErr := parseTarget(req.Target, credCalendarID(cred.CalendarID))
	if appErr != nil {
		return nil, appErr
	}

	duration := time.Duration(req.DurationMins) * time.Minute
	if err := s.applyEdit(ctx, client, target, newStart, duration, req.RepeatWeekly, scope); err != nil {
		return nil, asAppError(err, "edit failed")
	}

	res := &dto.MutationResponse{}
	if len(req.Rows) > 0 {
		res.Rows = rowsFromProjection(projector.ProjectEdit(rowsToProjection(req.Rows), projector.Edit{
			RowID:       req.Target.EventID,
			SeriesID:    req.Target.RecurringEventID,
			AnchorStart: target.Start,
			NewStart:    newStart,
			Duration:    duration,
			Scope:       projector.Scope(scope),
		}))
	}
	return res, nil
}

func (s *calendarService) DeleteOccurrence(ctx context.Context, identity middleware.Identity, req *dto.DeleteOccurrenceRequest) (*dto.MutationResponse, *errors.AppError) {
	scope := req.Scope
	if scope != dto.ScopeFollowing {
		scope = dto.ScopeThis
	}

	client, cred, appErr := s.clients.ClientFor(ctx, identity)
	if appErr != nil {
		return nil, appErr
	}
	target, appErr := parseTarget(req.Target, credCalendarID(cred.CalendarID))
	if appErr != nil {
		return nil, appErr
	}

	if err := s.applyDelete(ctx, client, target, scope); err != nil {
		return nil, asAppError(err, "delete failed")
	}

	res := &dto.MutationResponse{}
	if len(req.Rows) > 0 {
		res.Rows = rowsFromProjection(projector.ProjectDelete(rowsToProjection(req.Rows), projector.Delete{
			RowID:       req.Target.EventID,
			SeriesID:    req.Target.RecurringEventID,
			AnchorStart: target.Start,
			Scope:       projector.Scope(scope),
		}))
	}
	return res, nil
}

func (s *calendarService) DeleteAllLessons(ctx context.Context, identity middleware.Identity, studentID uuid.UUID, calendarID string) (*dto.PurgeResult, *errors.AppError) {
	client, cred, appErr := s.clients.ClientFor(ctx, identity)
	if appErr != nil {
		return nil, appErr
	}
	if calendarID == "" {
		calendarID = credCalendarID(cred.CalendarID)
	}

	result, err := s.purgeStudent(ctx, client, calendarID, studentID)
	if err != nil {
		return nil, asAppError(err, "failed to delete lessons")
	}
	logger.Info("CalendarService:DeleteAllLessons:Done",
		"student_id", studentID,
		"deleted_series", result.DeletedSeries,
		"deleted_singles", result.DeletedSingles)
	return result, nil
}

// PurgeStudent is the asynq-task entry point: same purge as DeleteAllLessons
// but keyed by user id only. A missing credential is a clean no-op, since the
// tutor may never have connected a calendar.
func (s *calendarService) PurgeStudent(ctx context.Context, userID, studentID uuid.UUID, calendarID string) (*dto.PurgeResult, error) {
	client, cred, appErr := s.clients.ClientFor(ctx, middleware.Identity{UserID: userID})
	if appErr != nil {
		if appErr.Code == errors.ErrCalendarNotConnected {
			return &dto.PurgeResult{}, nil
		}
		return nil, appErr
	}
	if calendarID == "" {
		calendarID = credCalendarID(cred.CalendarID)
	}
	return s.purgeStudent(ctx, client, calendarID, studentID)
}

// CleanupRequests drops idempotency records past their retention window.
func (s *calendarService) CleanupRequests(ctx context.Context) error {
	cutoff := s.now().Add(-constants.RequestRecordTTL)
	removed, err := s.repo.DeleteExpiredRequests(ctx, cutoff)
	if err != nil {
		logger.Error("CalendarService:CleanupRequests:Error", "error", err)
		return err
	}
	if removed > 0 {
		logger.Info("CalendarService:CleanupRequests:Done", "removed", removed)
	}
	return nil
}

func credCalendarID(stored string) string {
	if stored != "" {
		return stored
	}
	return constants.DefaultCalendarID
}

// asAppError passes AppErrors through untouched and wraps anything else as an
// internal failure.
func asAppError(err error, msg string) *errors.AppError {
	if ae, ok := err.(*errors.AppError); ok {
		return ae
	}
	return errors.NewAppError(errors.ErrInternalServer, msg, err)
}

func rowsToProjection(rows []dto.LessonRow) []projector.Row {
	out := make([]projector.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, projector.Row{
			ID:       r.ID,
			SeriesID: r.RecurringEventID,
			Title:    r.Title,
			Start:    r.Start,
			End:      r.End,
		})
	}
	return out
}

func rowsFromProjection(rows []projector.Row) []dto.LessonRow {
	out := make([]dto.LessonRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.LessonRow{
			ID:               r.ID,
			RecurringEventID: r.SeriesID,
			Title:            r.Title,
			Start:            r.Start,
			End:              r.End,
		})
	}
	return out
}
