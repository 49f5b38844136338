package service

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/kdvornichenko/weika-students/core/constants"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/logger"

	"google.golang.org/api/googleapi"
)

// retrier retries rate-limited calendar calls with capped exponential
// backoff. Any other failure propagates immediately: retrying a non-transient
// error risks duplicate remote writes.
type retrier struct {
	base     time.Duration
	max      time.Duration
	attempts int
	sleep    func(ctx context.Context, d time.Duration) error
}

func newRetrier() *retrier {
	return &retrier{
		base:     constants.RetryBaseDelay,
		max:      constants.RetryMaxDelay,
		attempts: constants.RetryMaxAttempts,
		sleep:    sleepCtx,
	}
}

func (r *retrier) do(ctx context.Context, op string, fn func() error) error {
	delay := r.base
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !isRateLimited(err) {
			return err
		}
		if attempt >= r.attempts {
			return errors.NewAppError(errors.ErrRetryExhausted, "calendar rate limit, retries exhausted", err)
		}

		logger.Warn("Calendar:Retry", "op", op, "attempt", attempt+1, "delay_ms", delay.Milliseconds())
		if serr := r.sleep(ctx, delay); serr != nil {
			return serr
		}
		delay *= 2
		if delay > r.max {
			delay = r.max
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRateLimited(err error) bool {
	var gerr *googleapi.Error
	if !stderrors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if gerr.Code == http.StatusForbidden {
		for _, item := range gerr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return false
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	if !stderrors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
}
