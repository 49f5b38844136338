package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/kdvornichenko/weika-students/core/errors"

	"google.golang.org/api/googleapi"
)

func rateLimitErr() error {
	return &googleapi.Error{Code: 429, Message: "Rate Limit Exceeded"}
}

func testRetrier(delays *[]time.Duration) *retrier {
	return &retrier{
		base:     400 * time.Millisecond,
		max:      4 * time.Second,
		attempts: 4,
		sleep: func(_ context.Context, d time.Duration) error {
			*delays = append(*delays, d)
			return nil
		},
	}
}

func TestRetrySucceedsAfterRateLimits(t *testing.T) {
	var delays []time.Duration
	r := testRetrier(&delays)

	failures := 3
	calls := 0
	err := r.do(context.Background(), "test", func() error {
		calls++
		if calls <= failures {
			return rateLimitErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do() = %v, want nil", err)
	}
	if calls != failures+1 {
		t.Fatalf("calls = %d, want %d", calls, failures+1)
	}
	if len(delays) != failures {
		t.Fatalf("sleeps = %d, want %d", len(delays), failures)
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] < delays[i-1] {
			t.Errorf("delay[%d]=%v decreased from delay[%d]=%v", i, delays[i], i-1, delays[i-1])
		}
	}
	for _, d := range delays {
		if d > 4*time.Second {
			t.Errorf("delay %v exceeds cap", d)
		}
	}
}

func TestRetryExhaustion(t *testing.T) {
	var delays []time.Duration
	r := testRetrier(&delays)

	calls := 0
	err := r.do(context.Background(), "test", func() error {
		calls++
		return rateLimitErr()
	})
	if !errors.IsCode(err, errors.ErrRetryExhausted) {
		t.Fatalf("do() = %v, want %s", err, errors.ErrRetryExhausted)
	}
	if calls != 5 {
		t.Fatalf("calls = %d, want 5 (initial + 4 retries)", calls)
	}
	if delays[len(delays)-1] != 3200*time.Millisecond {
		t.Errorf("final delay = %v, want 3.2s", delays[len(delays)-1])
	}
}

func TestRetryDelayCap(t *testing.T) {
	var delays []time.Duration
	r := testRetrier(&delays)
	r.attempts = 8

	calls := 0
	_ = r.do(context.Background(), "test", func() error {
		calls++
		if calls <= 8 {
			return rateLimitErr()
		}
		return nil
	})
	for _, d := range delays {
		if d > r.max {
			t.Fatalf("delay %v exceeds cap %v", d, r.max)
		}
	}
	if delays[len(delays)-1] != r.max {
		t.Errorf("final delay = %v, want cap %v", delays[len(delays)-1], r.max)
	}
}

func TestRetryPassesThroughOtherErrors(t *testing.T) {
	var delays []time.Duration
	r := testRetrier(&delays)

	boom := stderrors.New("boom")
	calls := 0
	err := r.do(context.Background(), "test", func() error {
		calls++
		return boom
	})
	if !stderrors.Is(err, boom) {
		t.Fatalf("do() = %v, want boom", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on non-rate-limit errors)", calls)
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", &googleapi.Error{Code: 429}, true},
		{"403 rateLimitExceeded", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}, true},
		{"403 userRateLimitExceeded", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, true},
		{"403 other", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}, false},
		{"500", &googleapi.Error{Code: 500}, false},
		{"plain error", stderrors.New("x"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		if got := isRateLimited(tt.err); got != tt.want {
			t.Errorf("%s: isRateLimited = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(&googleapi.Error{Code: 404}) {
		t.Error("404 should be not-found")
	}
	if !isNotFound(&googleapi.Error{Code: 410}) {
		t.Error("410 should be not-found")
	}
	if isNotFound(&googleapi.Error{Code: 429}) {
		t.Error("429 should not be not-found")
	}
}
