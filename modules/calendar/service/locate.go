package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kdvornichenko/weika-students/core/constants"
)

// errInstanceNotFound means no expanded instance matched the target start
// within the lookup window. Callers treat it as "nothing to mutate", never as
// a fault.
var errInstanceNotFound = stderrors.New("calendar: no matching occurrence")

// findOccurrence resolves a series occurrence by its start time. Instances
// are fetched in a window from 5 minutes before to 24 hours after the target
// and matched on the minute-truncated UTC start; all-day instances were
// already normalized to midnight UTC by the gateway, so a target of D 00:00Z
// matches an all-day occurrence on date D.
func findOccurrence(ctx context.Context, client Client, calendarID, seriesID string, target time.Time) (*Event, error) {
	from := target.Add(-constants.InstanceWindowBefore)
	to := target.Add(constants.InstanceWindowAfter)

	instances, err := client.Instances(ctx, calendarID, seriesID, from, to)
	if err != nil {
		return nil, err
	}

	want := minuteKey(target)
	for i := range instances {
		if instances[i].Status == "cancelled" {
			continue
		}
		if minuteKey(instances[i].Start) == want {
			return &instances[i], nil
		}
	}
	return nil, errInstanceNotFound
}
