package service

import (
	"context"
	"strings"
	"time"

	"github.com/kdvornichenko/weika-students/core/config"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/logger"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/calendar/entity"
	"github.com/kdvornichenko/weika-students/modules/calendar/repository"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Private metadata keys stamped on every event the engine owns. Events without
// a studentId tag are never touched.
const (
	propStudentID = "studentId"
	propRequestID = "requestId"
)

// Event is the engine's view of a remote calendar event. All-day events carry
// their date normalized to midnight UTC with AllDay set.
type Event struct {
	ID               string
	RecurringEventID string
	Title            string
	Description      string
	Start            time.Time
	End              time.Time
	AllDay           bool
	Recurrence       []string
	Private          map[string]string
	Status           string
}

// EventWrite is a full insert payload.
type EventWrite struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Recurrence  []string
	Private     map[string]string
}

// EventPatch carries only the fields a partial update changes. Nil fields are
// left untouched remotely; private metadata is never part of a patch, so it
// can never be cleared by one.
type EventPatch struct {
	Start      *time.Time
	End        *time.Time
	TimeZone   string
	Recurrence []string
}

type EventQuery struct {
	TimeMin    time.Time
	TimeMax    time.Time
	Private    map[string]string
	MaxResults int64
}

type CalendarEntry struct {
	ID      string
	Summary string
	Primary bool
}

// Client is the minimal calendar surface the engine needs. Production wraps
// the Google Calendar API; tests substitute fakes.
type Client interface {
	ListEvents(ctx context.Context, calendarID string, q EventQuery) ([]Event, error)
	InsertEvent(ctx context.Context, calendarID string, w *EventWrite) (*Event, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, p *EventPatch) (*Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	MoveEvent(ctx context.Context, calendarID, eventID, destCalendarID string) (*Event, error)
	Instances(ctx context.Context, calendarID, eventID string, from, to time.Time) ([]Event, error)
	ListCalendars(ctx context.Context) ([]CalendarEntry, error)
	GetCalendar(ctx context.Context, calendarID string) (*CalendarEntry, error)
}

// ClientProvider hands out a per-user authenticated Client together with the
// stored credential it was built from.
type ClientProvider interface {
	ClientFor(ctx context.Context, identity middleware.Identity) (Client, *entity.CalendarCredential, *errors.AppError)
}

type Gateway struct {
	repo repository.CalendarRepository
	// build and tokenSource are replaced in tests.
	build       func(ctx context.Context, ts oauth2.TokenSource) (Client, error)
	tokenSource func(ctx context.Context, refreshToken string) oauth2.TokenSource
}

func NewGateway(repo repository.CalendarRepository) *Gateway {
	gw := &Gateway{
		repo: repo,
		build: func(ctx context.Context, ts oauth2.TokenSource) (Client, error) {
			svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
			if err != nil {
				return nil, err
			}
			return &googleClient{svc: svc}, nil
		},
	}
	gw.tokenSource = func(ctx context.Context, refreshToken string) oauth2.TokenSource {
		return gw.OAuthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	}
	return gw
}

// OAuthConfig builds the oauth2 configuration for the connect flow.
func (g *Gateway) OAuthConfig() *oauth2.Config {
	api := config.Get().GoogleAPI
	return &oauth2.Config{
		ClientID:     api.ClientID,
		ClientSecret: api.ClientSecret,
		RedirectURL:  api.RedirectURI,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			calendar.CalendarScope,
			"https://www.googleapis.com/auth/userinfo.email",
		},
	}
}

// ClientFor loads the caller's stored credential and returns an authenticated
// calendar client. The account-mismatch guard runs before any remote call:
// when the caller's verified email differs from the credential's owning
// account, the request is refused outright rather than touching the wrong
// account's calendar.
func (g *Gateway) ClientFor(ctx context.Context, identity middleware.Identity) (Client, *entity.CalendarCredential, *errors.AppError) {
	cred, err := g.repo.GetCredential(ctx, identity.UserID)
	if err != nil {
		logger.Error("CalendarGateway:ClientFor:GetCredential:Error", "error", err, "user_id", identity.UserID)
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "failed to load calendar credential", err)
	}
	if cred == nil {
		return nil, nil, errors.NewAppError(errors.ErrCalendarNotConnected, "calendar is not connected", nil)
	}

	if identity.Email != "" && cred.AccountEmail != "" &&
		!strings.EqualFold(identity.Email, cred.AccountEmail) {
		return nil, nil, errors.NewAppErrorWithDetails(
			errors.ErrAccountMismatch,
			"calendar belongs to a different account",
			nil,
			map[string]string{
				"verified_email": identity.Email,
				"account_email":  cred.AccountEmail,
			},
		)
	}

	ts := g.tokenSource(ctx, cred.RefreshToken)
	// Refresh eagerly so an expired or revoked grant fails here with a code
	// the caller can turn into a reconnect prompt.
	if _, err := ts.Token(); err != nil {
		logger.Warn("CalendarGateway:ClientFor:Refresh:Failed", "error", err, "user_id", identity.UserID)
		return nil, nil, errors.NewAppError(errors.ErrCredentialExpired, "calendar credential expired, reconnect required", err)
	}

	client, err := g.build(ctx, oauth2.ReuseTokenSource(nil, ts))
	if err != nil {
		logger.Error("CalendarGateway:ClientFor:Build:Error", "error", err, "user_id", identity.UserID)
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "failed to build calendar client", err)
	}
	return client, cred, nil
}

// googleClient adapts *calendar.Service to the Client interface.
type googleClient struct {
	svc *calendar.Service
}

func (c *googleClient) ListEvents(ctx context.Context, calendarID string, q EventQuery) ([]Event, error) {
	call := c.svc.Events.List(calendarID).
		Context(ctx).
		SingleEvents(true).
		OrderBy("startTime").
		ShowDeleted(false)
	if !q.TimeMin.IsZero() {
		call = call.TimeMin(q.TimeMin.Format(time.RFC3339))
	}
	if !q.TimeMax.IsZero() {
		call = call.TimeMax(q.TimeMax.Format(time.RFC3339))
	}
	if q.MaxResults > 0 {
		call = call.MaxResults(q.MaxResults)
	}
	for k, v := range q.Private {
		call = call.PrivateExtendedProperty(k + "=" + v)
	}

	var events []Event
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			events = append(events, eventFromGoogle(item))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (c *googleClient) InsertEvent(ctx context.Context, calendarID string, w *EventWrite) (*Event, error) {
	created, err := c.svc.Events.Insert(calendarID, eventToGoogle(w)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	ev := eventFromGoogle(created)
	return &ev, nil
}

func (c *googleClient) PatchEvent(ctx context.Context, calendarID, eventID string, p *EventPatch) (*Event, error) {
	patch := &calendar.Event{}
	if p.Start != nil {
		patch.Start = &calendar.EventDateTime{
			DateTime: p.Start.Format(time.RFC3339),
			TimeZone: p.TimeZone,
		}
	}
	if p.End != nil {
		patch.End = &calendar.EventDateTime{
			DateTime: p.End.Format(time.RFC3339),
			TimeZone: p.TimeZone,
		}
	}
	if p.Recurrence != nil {
		patch.Recurrence = p.Recurrence
	}

	updated, err := c.svc.Events.Patch(calendarID, eventID, patch).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	ev := eventFromGoogle(updated)
	return &ev, nil
}

func (c *googleClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
}

func (c *googleClient) MoveEvent(ctx context.Context, calendarID, eventID, destCalendarID string) (*Event, error) {
	moved, err := c.svc.Events.Move(calendarID, eventID, destCalendarID).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	ev := eventFromGoogle(moved)
	return &ev, nil
}

func (c *googleClient) Instances(ctx context.Context, calendarID, eventID string, from, to time.Time) ([]Event, error) {
	call := c.svc.Events.Instances(calendarID, eventID).
		Context(ctx).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		ShowDeleted(false)

	var events []Event
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			events = append(events, eventFromGoogle(item))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (c *googleClient) ListCalendars(ctx context.Context) ([]CalendarEntry, error) {
	list, err := c.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	entries := make([]CalendarEntry, 0, len(list.Items))
	for _, item := range list.Items {
		entries = append(entries, CalendarEntry{
			ID:      item.Id,
			Summary: item.Summary,
			Primary: item.Primary,
		})
	}
	return entries, nil
}

func (c *googleClient) GetCalendar(ctx context.Context, calendarID string) (*CalendarEntry, error) {
	item, err := c.svc.CalendarList.Get(calendarID).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &CalendarEntry{ID: item.Id, Summary: item.Summary, Primary: item.Primary}, nil
}

func eventFromGoogle(item *calendar.Event) Event {
	ev := Event{
		ID:               item.Id,
		RecurringEventID: item.RecurringEventId,
		Title:            item.Summary,
		Description:      item.Description,
		Recurrence:       item.Recurrence,
		Status:           item.Status,
	}
	if item.ExtendedProperties != nil {
		ev.Private = item.ExtendedProperties.Private
	}
	ev.Start, ev.AllDay = parseEventTime(item.Start)
	ev.End, _ = parseEventTime(item.End)
	return ev
}

// parseEventTime handles both timed and all-day representations; all-day
// dates are pinned to midnight UTC so minute-key comparisons stay meaningful.
func parseEventTime(edt *calendar.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, false
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", edt.Date, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func eventToGoogle(w *EventWrite) *calendar.Event {
	ev := &calendar.Event{
		Summary:     w.Title,
		Description: w.Description,
		Start: &calendar.EventDateTime{
			DateTime: w.Start.Format(time.RFC3339),
			TimeZone: w.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: w.End.Format(time.RFC3339),
			TimeZone: w.TimeZone,
		},
		Recurrence: w.Recurrence,
	}
	if len(w.Private) > 0 {
		ev.ExtendedProperties = &calendar.EventExtendedProperties{Private: w.Private}
	}
	return ev
}
