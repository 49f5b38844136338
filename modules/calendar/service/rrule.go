package service

import "time"

const untilLayout = "20060102T150405Z"

// weeklyRule builds the recurrence rule for a weekly lesson series. The rule
// always carries an explicit UNTIL one calendar year after the first start so
// no series grows without bound.
func weeklyRule(start time.Time) string {
	until := start.UTC().AddDate(1, 0, 0)
	return "RRULE:FREQ=WEEKLY;UNTIL=" + until.Format(untilLayout)
}
