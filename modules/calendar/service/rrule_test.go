package service

import (
	"testing"
	"time"
)

func TestWeeklyRule(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		want  string
	}{
		{
			"utc start",
			time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
			"RRULE:FREQ=WEEKLY;UNTIL=20270105T100000Z",
		},
		{
			"non-utc start is converted",
			time.Date(2026, 6, 1, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600)),
			"RRULE:FREQ=WEEKLY;UNTIL=20270601T073000Z",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := weeklyRule(tt.start); got != tt.want {
				t.Errorf("weeklyRule() = %q, want %q", got, tt.want)
			}
		})
	}
}
