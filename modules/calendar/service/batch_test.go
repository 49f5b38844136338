package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/modules/calendar/dto"

	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
)

func editReq(studentID uuid.UUID, target time.Time) *dto.EditOccurrenceRequest {
	return &dto.EditOccurrenceRequest{
		Target: dto.OccurrenceTarget{
			StudentID: studentID.String(),
			EventID:   "inst-0",
			StartISO:  target.Format(time.RFC3339),
		},
		NewStartISO:  target.Add(time.Hour).Format(time.RFC3339),
		DurationMins: 60,
		Scope:        dto.ScopeThis,
	}
}

func TestEditFollowingShiftsTailOnly(t *testing.T) {
	studentID := uuid.New()
	anchor := time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)
	week := 7 * 24 * time.Hour

	instances := []Event{
		{ID: "past", Start: anchor.Add(-week), RecurringEventID: "series-1"},
		{ID: "inst-0", Start: anchor, RecurringEventID: "series-1"},
		{ID: "inst-1", Start: anchor.Add(week), RecurringEventID: "series-1"},
		{ID: "inst-2", Start: anchor.Add(2 * week), RecurringEventID: "series-1"},
	}

	var mu sync.Mutex
	patched := map[string]time.Time{}
	client := &fakeClient{
		instancesFn: func(_, _ string, from, to time.Time) ([]Event, error) {
			var out []Event
			for _, inst := range instances {
				if !inst.Start.Before(from) && inst.Start.Before(to) {
					out = append(out, inst)
				}
			}
			return out, nil
		},
		patchFn: func(_, eventID string, p *EventPatch) (*Event, error) {
			mu.Lock()
			patched[eventID] = *p.Start
			mu.Unlock()
			return &Event{ID: eventID}, nil
		},
	}
	s := newTestService(newFakeRepo(), client)

	req := editReq(studentID, anchor)
	req.Target.RecurringEventID = "series-1"
	req.Scope = dto.ScopeFollowing
	if _, appErr := s.EditOccurrence(context.Background(), middleware.Identity{UserID: uuid.New()}, req); appErr != nil {
		t.Fatalf("edit: %v", appErr)
	}

	if _, ok := patched["past"]; ok {
		t.Fatal("occurrence before the anchor must not be touched")
	}
	want := map[string]time.Time{
		"inst-0": anchor.Add(time.Hour),
		"inst-1": anchor.Add(week + time.Hour),
		"inst-2": anchor.Add(2*week + time.Hour),
	}
	if len(patched) != len(want) {
		t.Fatalf("patched %d occurrences, want %d: %v", len(patched), len(want), patched)
	}
	for id, ws := range want {
		if got := patched[id]; !got.Equal(ws) {
			t.Errorf("%s shifted to %v, want %v", id, got, ws)
		}
	}
}

func TestEditThisOnlyPatchesOneInstance(t *testing.T) {
	studentID := uuid.New()
	anchor := time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)

	var patchedIDs []string
	client := &fakeClient{
		instancesFn: func(_, _ string, _, _ time.Time) ([]Event, error) {
			return []Event{{ID: "inst-0", Start: anchor, RecurringEventID: "series-1"}}, nil
		},
		patchFn: func(_, eventID string, _ *EventPatch) (*Event, error) {
			patchedIDs = append(patchedIDs, eventID)
			return &Event{ID: eventID}, nil
		},
	}
	s := newTestService(newFakeRepo(), client)

	req := editReq(studentID, anchor)
	req.Target.RecurringEventID = "series-1"
	if _, appErr := s.EditOccurrence(context.Background(), middleware.Identity{UserID: uuid.New()}, req); appErr != nil {
		t.Fatalf("edit: %v", appErr)
	}
	if len(patchedIDs) != 1 || patchedIDs[0] != "inst-0" {
		t.Fatalf("patched %v, want exactly [inst-0]", patchedIDs)
	}
}

func TestEditMissingOccurrenceIsNoop(t *testing.T) {
	studentID := uuid.New()
	anchor := time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)

	client := &fakeClient{}
	s := newTestService(newFakeRepo(), client)

	req := editReq(studentID, anchor)
	req.Target.RecurringEventID = "series-1"
	if _, appErr := s.EditOccurrence(context.Background(), middleware.Identity{UserID: uuid.New()}, req); appErr != nil {
		t.Fatalf("edit on a vanished occurrence should succeed, got %v", appErr)
	}
	if client.callCount("patch") != 0 {
		t.Fatal("nothing to mutate, nothing should be patched")
	}
}

func TestPromotionCreatesSeriesBeforeDeletingSingle(t *testing.T) {
	studentID := uuid.New()
	anchor := time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)

	client := &fakeClient{
		insertFn: func(_ string, w *EventWrite) (*Event, error) {
			return &Event{ID: "series-new", Recurrence: w.Recurrence}, nil
		},
	}
	s := newTestService(newFakeRepo(), client)

	req := editReq(studentID, anchor)
	req.Target.Title = "Math"
	req.RepeatWeekly = true
	if _, appErr := s.EditOccurrence(context.Background(), middleware.Identity{UserID: uuid.New()}, req); appErr != nil {
		t.Fatalf("promotion: %v", appErr)
	}

	insertIdx, deleteIdx := -1, -1
	for i, call := range client.calls {
		switch call {
		case "insert":
			insertIdx = i
		case "delete":
			deleteIdx = i
		}
	}
	if insertIdx == -1 || deleteIdx == -1 {
		t.Fatalf("calls = %v, want both insert and delete", client.calls)
	}
	if insertIdx > deleteIdx {
		t.Fatalf("series must be created before the single is deleted, calls = %v", client.calls)
	}
}

func TestPromotionFailureAfterCreateLeavesBothEvents(t *testing.T) {
	studentID := uuid.New()
	anchor := time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)

	client := &fakeClient{
		insertFn: func(_ string, w *EventWrite) (*Event, error) {
			return &Event{ID: "series-new"}, nil
		},
		deleteFn: func(_, _ string) error {
			return &googleapi.Error{Code: 500, Message: "backend error"}
		},
	}
	s := newTestService(newFakeRepo(), client)

	req := editReq(studentID, anchor)
	req.RepeatWeekly = true
	_, appErr := s.EditOccurrence(context.Background(), middleware.Identity{UserID: uuid.New()}, req)
	if appErr == nil {
		t.Fatal("delete failure must surface")
	}
	// The series was created before the failing delete: a retry finds it via
	// the deterministic conversion token instead of creating a second one.
	if client.callCount("insert") != 1 {
		t.Fatalf("insert calls = %d, want 1", client.callCount("insert"))
	}

	// Retry: the persisted conversion record answers without a second insert.
	client.deleteFn = nil
	if _, appErr := s.EditOccurrence(context.Background(), middleware.Identity{UserID: uuid.New()}, req); appErr != nil {
		t.Fatalf("retried promotion: %v", appErr)
	}
	if client.callCount("insert") != 1 {
		t.Fatalf("retried promotion inserted again, insert calls = %d", client.callCount("insert"))
	}
	if client.callCount("delete") < 2 {
		t.Fatal("retried promotion must finish the delete")
	}
}

func TestDeleteSingle404IsSuccess(t *testing.T) {
	studentID := uuid.New()
	anchor := time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)

	client := &fakeClient{
		deleteFn: func(_, _ string) error {
			return &googleapi.Error{Code: 404}
		},
	}
	s := newTestService(newFakeRepo(), client)

	req := &dto.DeleteOccurrenceRequest{
		Target: dto.OccurrenceTarget{
			StudentID: studentID.String(),
			EventID:   "gone",
			StartISO:  anchor.Format(time.RFC3339),
		},
		Scope: dto.ScopeThis,
	}
	if _, appErr := s.DeleteOccurrence(context.Background(), middleware.Identity{UserID: uuid.New()}, req); appErr != nil {
		t.Fatalf("404 on delete must be treated as done, got %v", appErr)
	}
	if client.callCount("delete") != 1 {
		t.Fatalf("delete calls = %d, want 1 (no retry on 404)", client.callCount("delete"))
	}
}

func TestDeleteFollowingRemovesTail(t *testing.T) {
	studentID := uuid.New()
	anchor := time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)
	week := 7 * 24 * time.Hour

	var mu sync.Mutex
	var deleted []string
	client := &fakeClient{
		instancesFn: func(_, _ string, _, _ time.Time) ([]Event, error) {
			return []Event{
				{ID: "inst-0", Start: anchor, RecurringEventID: "series-1"},
				{ID: "inst-1", Start: anchor.Add(week), RecurringEventID: "series-1"},
			}, nil
		},
		deleteFn: func(_, eventID string) error {
			mu.Lock()
			deleted = append(deleted, eventID)
			mu.Unlock()
			return nil
		},
	}
	s := newTestService(newFakeRepo(), client)

	req := &dto.DeleteOccurrenceRequest{
		Target: dto.OccurrenceTarget{
			StudentID:        studentID.String(),
			EventID:          "inst-0",
			RecurringEventID: "series-1",
			StartISO:         anchor.Format(time.RFC3339),
		},
		Scope: dto.ScopeFollowing,
	}
	if _, appErr := s.DeleteOccurrence(context.Background(), middleware.Identity{UserID: uuid.New()}, req); appErr != nil {
		t.Fatalf("delete: %v", appErr)
	}

	sort.Strings(deleted)
	if len(deleted) != 2 || deleted[0] != "inst-0" || deleted[1] != "inst-1" {
		t.Fatalf("deleted = %v, want [inst-0 inst-1]", deleted)
	}
}

func TestDeleteAllLessonsCountsMastersAndSingles(t *testing.T) {
	studentID := uuid.New()
	repo := newFakeRepo()
	_ = repo.SaveSeriesAnchor(context.Background(), studentID, "primary", "master-1")
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	deleted := map[string]bool{}
	client := &fakeClient{
		listFn: func(_ string, q EventQuery) ([]Event, error) {
			return []Event{
				{ID: "occ-a", RecurringEventID: "master-1", Start: now},
				{ID: "occ-b", RecurringEventID: "master-1", Start: now.Add(7 * 24 * time.Hour)},
				{ID: "single-1", Start: now.Add(time.Hour)},
				{ID: "single-2", Start: now.Add(2 * time.Hour)},
			}, nil
		},
		deleteFn: func(_, eventID string) error {
			mu.Lock()
			deleted[eventID] = true
			mu.Unlock()
			return nil
		},
	}
	s := newTestService(repo, client)

	res, appErr := s.DeleteAllLessons(context.Background(), middleware.Identity{UserID: uuid.New()}, studentID, "")
	if appErr != nil {
		t.Fatalf("deleteAll: %v", appErr)
	}
	if res.DeletedSeries != 1 || res.DeletedSingles != 2 {
		t.Fatalf("counts = %+v, want 1 series / 2 singles", res)
	}
	for _, id := range []string{"master-1", "single-1", "single-2"} {
		if !deleted[id] {
			t.Errorf("%s was not deleted", id)
		}
	}
	if deleted["occ-a"] || deleted["occ-b"] {
		t.Error("series occurrences must be removed via the master, not one by one")
	}

	if anchor, _ := repo.GetSeriesAnchor(context.Background(), studentID); anchor != nil {
		t.Error("series anchor must be cleared after a full purge")
	}
}

func TestPurgeStudentWithoutCredentialIsNoop(t *testing.T) {
	repo := newFakeRepo()
	gw := NewGateway(repo)
	s := &calendarService{
		repo:    repo,
		cache:   newFakeCache(),
		gateway: gw,
		clients: gw,
		router:  newIdempotencyRouter(repo, newFakeCache()),
		retry:   &retrier{base: time.Millisecond, max: time.Millisecond, attempts: 1, sleep: func(context.Context, time.Duration) error { return nil }},
		now:     time.Now,
	}

	res, err := s.PurgeStudent(context.Background(), uuid.New(), uuid.New(), "")
	if err != nil {
		t.Fatalf("purge without credential: %v", err)
	}
	if res.DeletedSeries != 0 || res.DeletedSingles != 0 {
		t.Fatalf("counts = %+v, want zeroes", res)
	}
}
