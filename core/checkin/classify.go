package checkin

import "time"

// lateThreshold is the fraction of the task window after which a passing
// submission is classified late. Fixed policy, not user-configurable.
const lateThreshold = 0.8

// classify decides the attendance status of a passing submission made at
// `now`. Precondition: StartsAt <= now <= EndsAt (the coordinator rejects
// submissions outside the window before classification).
func classify(startsAt, endsAt, now time.Time) RecordStatus {
	window := endsAt.Sub(startsAt)
	if window == 0 {
		// degenerate zero-length window
		if now.After(startsAt) {
			return RecordLate
		}
		return RecordNormal
	}
	elapsed := float64(now.Sub(startsAt)) / float64(window)
	if elapsed > lateThreshold {
		return RecordLate
	}
	return RecordNormal
}
