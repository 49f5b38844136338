package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMinuteKey(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			"seconds truncated",
			time.Date(2026, 6, 3, 10, 0, 59, 999, time.UTC),
			"2026-06-03T10:00",
		},
		{
			"converted to utc",
			time.Date(2026, 6, 3, 12, 30, 0, 0, time.FixedZone("CEST", 2*3600)),
			"2026-06-03T10:30",
		},
		{
			"midnight",
			time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC),
			"2026-06-03T00:00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := minuteKey(tt.in); got != tt.want {
				t.Errorf("minuteKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpsertKeySameMinuteCollides(t *testing.T) {
	studentID := uuid.New()
	a := upsertKey("primary", studentID, time.Date(2026, 6, 3, 10, 0, 5, 0, time.UTC))
	b := upsertKey("primary", studentID, time.Date(2026, 6, 3, 10, 0, 40, 0, time.UTC))
	if a != b {
		t.Errorf("same-minute keys differ: %q vs %q", a, b)
	}
	c := upsertKey("primary", studentID, time.Date(2026, 6, 3, 10, 1, 0, 0, time.UTC))
	if a == c {
		t.Error("different-minute keys should differ")
	}
	d := upsertKey("work", studentID, time.Date(2026, 6, 3, 10, 0, 5, 0, time.UTC))
	if a == d {
		t.Error("different-calendar keys should differ")
	}
}

func TestLessonKeyPrefersRequestToken(t *testing.T) {
	studentID := uuid.New()
	tokened := &Lesson{
		StudentID:  studentID,
		Start:      time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC),
		RequestID:  "tok-1",
		CalendarID: "primary",
	}
	sameTokenLater := &Lesson{
		StudentID:  studentID,
		Start:      time.Date(2026, 6, 3, 10, 2, 0, 0, time.UTC),
		RequestID:  "tok-1",
		CalendarID: "primary",
	}
	if lessonKey(tokened) != lessonKey(sameTokenLater) {
		t.Error("same token must yield the same key regardless of start minute")
	}

	untokened := &Lesson{StudentID: studentID, Start: tokened.Start, CalendarID: "primary"}
	if got, want := lessonKey(untokened), upsertKey("primary", studentID, tokened.Start); got != want {
		t.Errorf("tokenless key = %q, want minute key %q", got, want)
	}

	otherStudent := &Lesson{StudentID: uuid.New(), Start: tokened.Start, RequestID: "tok-1", CalendarID: "primary"}
	if lessonKey(tokened) == lessonKey(otherStudent) {
		t.Error("tokens are namespaced by student")
	}
}

func TestCoalesceSharesOutcome(t *testing.T) {
	router := newIdempotencyRouter(newFakeRepo(), newFakeCache())

	var mu sync.Mutex
	executions := 0
	release := make(chan struct{})

	run := func() (string, error) {
		return router.coalesce("key", func() (string, error) {
			mu.Lock()
			executions++
			mu.Unlock()
			<-release
			return "ev-1", nil
		})
	}

	const callers = 5
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = run()
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if executions != 1 {
		t.Fatalf("executions = %d, want 1 (concurrent callers must coalesce)", executions)
	}
	for i, res := range results {
		if res != "ev-1" {
			t.Errorf("caller %d got %q, want ev-1", i, res)
		}
	}
}

func TestFindRemoteMatchMinuteFlow(t *testing.T) {
	studentID := uuid.New()
	start := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)

	client := &fakeClient{
		listFn: func(_ string, q EventQuery) ([]Event, error) {
			return []Event{
				{ID: "other", Start: start.Add(-time.Minute)},
				{ID: "hit", Start: start.Add(20 * time.Second)},
			}, nil
		},
	}
	router := newIdempotencyRouter(newFakeRepo(), newFakeCache())

	match, err := router.findRemoteMatch(context.Background(), client, "primary", studentID, "", start)
	if err != nil {
		t.Fatalf("findRemoteMatch() error = %v", err)
	}
	if match == nil || match.ID != "hit" {
		t.Fatalf("match = %+v, want event hit", match)
	}
	if n := client.callCount("list"); n != 1 {
		t.Errorf("list calls = %d, want 1 (minute flow only)", n)
	}
}

func TestFindRemoteMatchTokenFlowPreferred(t *testing.T) {
	studentID := uuid.New()
	start := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)

	client := &fakeClient{
		listFn: func(_ string, q EventQuery) ([]Event, error) {
			if q.Private[propRequestID] == "req-7" {
				return []Event{{ID: "token-hit", Start: start.Add(3 * time.Hour)}}, nil
			}
			t.Error("minute-flow list should not run once the token matched")
			return nil, nil
		},
	}
	router := newIdempotencyRouter(newFakeRepo(), newFakeCache())

	match, err := router.findRemoteMatch(context.Background(), client, "primary", studentID, "req-7", start)
	if err != nil {
		t.Fatalf("findRemoteMatch() error = %v", err)
	}
	if match == nil || match.ID != "token-hit" {
		t.Fatalf("match = %+v, want token-hit", match)
	}
}

func TestFindRemoteMatchTokenMissSkipsMinuteFlow(t *testing.T) {
	studentID := uuid.New()
	start := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)

	client := &fakeClient{
		listFn: func(_ string, q EventQuery) ([]Event, error) {
			if q.Private[propRequestID] == "" {
				t.Error("token flows must not fall back to the student-only minute list")
			}
			return nil, nil
		},
	}
	router := newIdempotencyRouter(newFakeRepo(), newFakeCache())

	match, err := router.findRemoteMatch(context.Background(), client, "primary", studentID, "req-9", start)
	if err != nil {
		t.Fatalf("findRemoteMatch() error = %v", err)
	}
	if match != nil {
		t.Fatalf("match = %+v, want none on a token miss", match)
	}
	if n := client.callCount("list"); n != 1 {
		t.Errorf("list calls = %d, want 1 (token search only)", n)
	}
}

func TestRecordedResultShortCircuits(t *testing.T) {
	repo := newFakeRepo()
	router := newIdempotencyRouter(repo, newFakeCache())
	studentID := uuid.New()
	ctx := context.Background()

	if _, done, _ := router.recordedResult(ctx, studentID, "req-1"); done {
		t.Fatal("unknown request should not be done")
	}

	_ = repo.CreateRequest(ctx, studentID, "req-1")
	if _, done, _ := router.recordedResult(ctx, studentID, "req-1"); done {
		t.Fatal("pending request should not be done")
	}

	_ = repo.MarkRequestDone(ctx, studentID, "req-1", "ev-9")
	eventID, done, err := router.recordedResult(ctx, studentID, "req-1")
	if err != nil || !done || eventID != "ev-9" {
		t.Fatalf("recordedResult = (%q, %v, %v), want (ev-9, true, nil)", eventID, done, err)
	}
}
