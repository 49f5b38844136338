package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kdvornichenko/weika-students/core/cache"
	"github.com/kdvornichenko/weika-students/core/constants"
	"github.com/kdvornichenko/weika-students/core/logger"
	"github.com/kdvornichenko/weika-students/modules/calendar/entity"
	"github.com/kdvornichenko/weika-students/modules/calendar/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// minuteKey truncates an instant to whole minutes in UTC. Two upserts for the
// same student landing in the same minute are the same logical lesson.
func minuteKey(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format("2006-01-02T15:04")
}

func upsertKey(calendarID string, studentID uuid.UUID, start time.Time) string {
	return calendarID + "|" + studentID.String() + "|" + minuteKey(start)
}

// requestKey namespaces an explicit token by student.
func requestKey(studentID uuid.UUID, requestID string) string {
	return studentID.String() + "|" + requestID
}

// lessonKey is the idempotency key of an upsert. An explicit token identifies
// the logical lesson regardless of the submitted start, so retries of the same
// token coalesce even when they land in different minutes.
func lessonKey(lesson *Lesson) string {
	if lesson.RequestID != "" {
		return requestKey(lesson.StudentID, lesson.RequestID)
	}
	return upsertKey(lesson.CalendarID, lesson.StudentID, lesson.Start)
}

// idempotencyRouter is the dedup layer in front of every upsert:
//
//  1. singleflight coalesces concurrent identical requests in-process, so at
//     most one remote mutation per key is ever in flight;
//  2. a short-lived redis entry absorbs near-simultaneous duplicates that
//     arrive just after completion;
//  3. a persisted request record short-circuits token retries across
//     restarts and instances;
//  4. a remote pre-list by private metadata catches the case where a prior
//     attempt created the event but died before recording it anywhere.
//
// Layers 1 and 2 are best effort; cross-instance correctness rests on 3 and 4.
type idempotencyRouter struct {
	repo  repository.CalendarRepository
	cache cache.Cache
	group singleflight.Group
}

func newIdempotencyRouter(repo repository.CalendarRepository, c cache.Cache) *idempotencyRouter {
	return &idempotencyRouter{repo: repo, cache: c}
}

// coalesce runs fn under the key, sharing the outcome with concurrent callers.
func (r *idempotencyRouter) coalesce(key string, fn func() (string, error)) (string, error) {
	v, err, _ := r.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// recordedResult returns the event id of a completed token request, if any.
func (r *idempotencyRouter) recordedResult(ctx context.Context, studentID uuid.UUID, requestID string) (string, bool, error) {
	if requestID == "" {
		return "", false, nil
	}
	rec, err := r.repo.GetRequest(ctx, studentID, requestID)
	if err != nil {
		return "", false, err
	}
	if rec != nil && rec.Status == entity.RequestStatusDone && rec.EventID != nil && *rec.EventID != "" {
		return *rec.EventID, true, nil
	}
	return "", false, nil
}

func (r *idempotencyRouter) beginRequest(ctx context.Context, studentID uuid.UUID, requestID string) error {
	if requestID == "" {
		return nil
	}
	return r.repo.CreateRequest(ctx, studentID, requestID)
}

func (r *idempotencyRouter) completeRequest(ctx context.Context, studentID uuid.UUID, requestID, eventID string) {
	if requestID == "" {
		return
	}
	if err := r.repo.MarkRequestDone(ctx, studentID, requestID, eventID); err != nil {
		logger.Error("IdempotencyRouter:CompleteRequest:Error", "error", err, "request_id", requestID)
	}
}

func (r *idempotencyRouter) cachedResult(ctx context.Context, key string) (string, bool) {
	v, err := r.cache.Get(ctx, constants.RedisKeyUpsertResult+key)
	if err != nil {
		if !stderrors.Is(err, cache.ErrMiss) {
			logger.Warn("IdempotencyRouter:CachedResult:Error", "error", err)
		}
		return "", false
	}
	return v, v != ""
}

func (r *idempotencyRouter) storeResult(ctx context.Context, key, eventID string) {
	if err := r.cache.Set(ctx, constants.RedisKeyUpsertResult+key, eventID, constants.UpsertResultTTL); err != nil {
		logger.Warn("IdempotencyRouter:StoreResult:Error", "error", err)
	}
}

// findRemoteMatch looks for an event a prior attempt already created. Token
// flows search a wide window on (studentId, requestId) and trust only that
// tag; minute-key flows cover the slot itself, matched on (studentId) plus
// the minute key.
func (r *idempotencyRouter) findRemoteMatch(ctx context.Context, client Client, calendarID string, studentID uuid.UUID, requestID string, start time.Time) (*Event, error) {
	if requestID != "" {
		events, err := client.ListEvents(ctx, calendarID, EventQuery{
			TimeMin: start.Add(-constants.TokenMatchWindow),
			TimeMax: start.Add(constants.TokenMatchWindow),
			Private: map[string]string{
				propStudentID: studentID.String(),
				propRequestID: requestID,
			},
		})
		if err != nil {
			return nil, err
		}
		if len(events) > 0 {
			ev := events[0]
			return &ev, nil
		}
		return nil, nil
	}

	events, err := client.ListEvents(ctx, calendarID, EventQuery{
		TimeMin: start.Add(-constants.MinuteMatchWindow),
		TimeMax: start.Add(constants.MinuteMatchWindow),
		Private: map[string]string{propStudentID: studentID.String()},
	})
	if err != nil {
		return nil, err
	}
	target := minuteKey(start)
	for i := range events {
		if minuteKey(events[i].Start) == target {
			return &events[i], nil
		}
	}
	return nil, nil
}
