package service

import (
	"context"
	"sync"
	"time"

	"github.com/kdvornichenko/weika-students/core/cache"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/calendar/entity"

	"github.com/google/uuid"
)

// fakeClient implements Client with per-call hooks and a recorded call log.
type fakeClient struct {
	mu    sync.Mutex
	calls []string

	listFn      func(calendarID string, q EventQuery) ([]Event, error)
	insertFn    func(calendarID string, w *EventWrite) (*Event, error)
	patchFn     func(calendarID, eventID string, p *EventPatch) (*Event, error)
	deleteFn    func(calendarID, eventID string) error
	moveFn      func(calendarID, eventID, destCalendarID string) (*Event, error)
	instancesFn func(calendarID, eventID string, from, to time.Time) ([]Event, error)
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeClient) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeClient) ListEvents(_ context.Context, calendarID string, q EventQuery) ([]Event, error) {
	f.record("list")
	if f.listFn != nil {
		return f.listFn(calendarID, q)
	}
	return nil, nil
}

func (f *fakeClient) InsertEvent(_ context.Context, calendarID string, w *EventWrite) (*Event, error) {
	f.record("insert")
	if f.insertFn != nil {
		return f.insertFn(calendarID, w)
	}
	return &Event{ID: "ev-1", Title: w.Title, Start: w.Start, End: w.End, Recurrence: w.Recurrence, Private: w.Private}, nil
}

func (f *fakeClient) PatchEvent(_ context.Context, calendarID, eventID string, p *EventPatch) (*Event, error) {
	f.record("patch")
	if f.patchFn != nil {
		return f.patchFn(calendarID, eventID, p)
	}
	return &Event{ID: eventID}, nil
}

func (f *fakeClient) DeleteEvent(_ context.Context, calendarID, eventID string) error {
	f.record("delete")
	if f.deleteFn != nil {
		return f.deleteFn(calendarID, eventID)
	}
	return nil
}

func (f *fakeClient) MoveEvent(_ context.Context, calendarID, eventID, destCalendarID string) (*Event, error) {
	f.record("move")
	if f.moveFn != nil {
		return f.moveFn(calendarID, eventID, destCalendarID)
	}
	return &Event{ID: eventID}, nil
}

func (f *fakeClient) Instances(_ context.Context, calendarID, eventID string, from, to time.Time) ([]Event, error) {
	f.record("instances")
	if f.instancesFn != nil {
		return f.instancesFn(calendarID, eventID, from, to)
	}
	return nil, nil
}

func (f *fakeClient) ListCalendars(_ context.Context) ([]CalendarEntry, error) {
	f.record("listCalendars")
	return []CalendarEntry{{ID: "primary", Summary: "Primary", Primary: true}}, nil
}

func (f *fakeClient) GetCalendar(_ context.Context, calendarID string) (*CalendarEntry, error) {
	f.record("getCalendar")
	return &CalendarEntry{ID: calendarID, Summary: "Primary", Primary: calendarID == "primary"}, nil
}

// staticProvider hands out a fixed client without touching credentials.
type staticProvider struct {
	client Client
	cred   *entity.CalendarCredential
}

func (p staticProvider) ClientFor(context.Context, middleware.Identity) (Client, *entity.CalendarCredential, *errors.AppError) {
	cred := p.cred
	if cred == nil {
		cred = &entity.CalendarCredential{CalendarID: "primary", AccountEmail: "tutor@example.com"}
	}
	return p.client, cred, nil
}

// fakeRepo is an in-memory CalendarRepository.
type fakeRepo struct {
	mu        sync.Mutex
	cred      *entity.CalendarCredential
	userEmail string
	requests  map[string]*entity.CalendarRequest
	anchors   map[uuid.UUID]*entity.SeriesAnchor
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		requests: map[string]*entity.CalendarRequest{},
		anchors:  map[uuid.UUID]*entity.SeriesAnchor{},
	}
}

func (r *fakeRepo) GetCredential(context.Context, uuid.UUID) (*entity.CalendarCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cred, nil
}

func (r *fakeRepo) SaveCredential(_ context.Context, cred *entity.CalendarCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cred = cred
	return nil
}

func (r *fakeRepo) DeleteCredential(context.Context, uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cred = nil
	return nil
}

func (r *fakeRepo) GetUserEmail(context.Context, uuid.UUID) (string, error) {
	return r.userEmail, nil
}

func (r *fakeRepo) GetRequest(_ context.Context, studentID uuid.UUID, requestID string) (*entity.CalendarRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[requestKey(studentID, requestID)], nil
}

func (r *fakeRepo) CreateRequest(_ context.Context, studentID uuid.UUID, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := requestKey(studentID, requestID)
	if _, ok := r.requests[key]; !ok {
		r.requests[key] = &entity.CalendarRequest{
			StudentID: studentID,
			RequestID: requestID,
			Status:    entity.RequestStatusPending,
		}
	}
	return nil
}

func (r *fakeRepo) MarkRequestDone(_ context.Context, studentID uuid.UUID, requestID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.requests[requestKey(studentID, requestID)]; ok {
		rec.Status = entity.RequestStatusDone
		rec.EventID = &eventID
	}
	return nil
}

func (r *fakeRepo) DeleteExpiredRequests(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *fakeRepo) GetSeriesAnchor(_ context.Context, studentID uuid.UUID) (*entity.SeriesAnchor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.anchors[studentID], nil
}

func (r *fakeRepo) SaveSeriesAnchor(_ context.Context, studentID uuid.UUID, calendarID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anchors[studentID] = &entity.SeriesAnchor{CalendarID: calendarID, EventID: eventID}
	return nil
}

func (r *fakeRepo) ClearSeriesAnchor(_ context.Context, studentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.anchors, studentID)
	return nil
}

// fakeCache is an in-memory cache.Cache ignoring TTLs.
type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (c *fakeCache) GetDel(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", cache.ErrMiss
	}
	delete(c.values, key)
	return v, nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func newTestService(repo *fakeRepo, client Client) *calendarService {
	c := newFakeCache()
	return &calendarService{
		repo:    repo,
		cache:   c,
		clients: staticProvider{client: client},
		router:  newIdempotencyRouter(repo, c),
		retry: &retrier{
			base:     time.Millisecond,
			max:      4 * time.Millisecond,
			attempts: 4,
			sleep:    func(context.Context, time.Duration) error { return nil },
		},
		now: func() time.Time { return time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC) },
	}
}
