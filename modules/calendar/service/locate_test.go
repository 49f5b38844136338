package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"
)

func TestFindOccurrence(t *testing.T) {
	target := time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)

	midnight := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		target    time.Time
		instances []Event
		wantID    string
		wantMiss  bool
	}{
		{
			name:   "exact minute match",
			target: target,
			instances: []Event{
				{ID: "a", Start: target.Add(7 * 24 * time.Hour)},
				{ID: "b", Start: target.Add(45 * time.Second)},
			},
			wantID: "b",
		},
		{
			name:      "all-day instance matches midnight target",
			target:    midnight,
			instances: []Event{{ID: "allday", Start: midnight, AllDay: true}},
			wantID:    "allday",
		},
		{
			name:   "cancelled instances are skipped",
			target: target,
			instances: []Event{
				{ID: "gone", Start: target, Status: "cancelled"},
				{ID: "live", Start: target},
			},
			wantID: "live",
		},
		{
			name:      "no match is a sentinel, not an error",
			target:    target,
			instances: []Event{{ID: "far", Start: target.Add(2 * time.Hour)}},
			wantMiss:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{
				instancesFn: func(_, _ string, _, _ time.Time) ([]Event, error) {
					return tt.instances, nil
				},
			}

			ev, err := findOccurrence(context.Background(), client, "primary", "series-1", tt.target)
			if tt.wantMiss {
				if !stderrors.Is(err, errInstanceNotFound) {
					t.Fatalf("err = %v, want errInstanceNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("findOccurrence() error = %v", err)
			}
			if ev.ID != tt.wantID {
				t.Errorf("matched %q, want %q", ev.ID, tt.wantID)
			}
		})
	}
}

func TestFindOccurrenceWindow(t *testing.T) {
	target := time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)
	var gotFrom, gotTo time.Time
	client := &fakeClient{
		instancesFn: func(_, _ string, from, to time.Time) ([]Event, error) {
			gotFrom, gotTo = from, to
			return nil, nil
		},
	}

	_, _ = findOccurrence(context.Background(), client, "primary", "series-1", target)
	if want := target.Add(-5 * time.Minute); !gotFrom.Equal(want) {
		t.Errorf("window start = %v, want %v", gotFrom, want)
	}
	if want := target.Add(24 * time.Hour); !gotTo.Equal(want) {
		t.Errorf("window end = %v, want %v", gotTo, want)
	}
}
