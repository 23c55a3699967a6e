package checkin

import (
	"errors"
	"time"
)

// ErrInvalidTransition means the task's current status does not allow the
// requested transition. The task is never mutated on failure.
var ErrInvalidTransition = errors.New("task status does not allow this transition")

// CanTransitionTo reports whether `to` is a legal next status.
//
//	created -> active -> ended
//	created|active -> canceled
func (s TaskStatus) CanTransitionTo(to TaskStatus) bool {
	switch to {
	case StatusActive:
		return s == StatusCreated
	case StatusEnded:
		return s == StatusActive
	case StatusCanceled:
		return s == StatusCreated || s == StatusActive
	}
	return false
}

// Activate marks the task as accepting submissions. Legal only from created.
func (t *Task) Activate() error { return t.transition(StatusActive) }

// End closes the task to further submissions. Legal only from active.
func (t *Task) End() error { return t.transition(StatusEnded) }

// Cancel aborts the task. Legal from created or active; a finished task
// cannot be canceled.
func (t *Task) Cancel() error { return t.transition(StatusCanceled) }

func (t *Task) transition(to TaskStatus) error {
	if !t.Status.CanTransitionTo(to) {
		return ErrInvalidTransition
	}
	t.Status = to
	t.UpdatedAt = NowFunc().UTC()
	return nil
}

// AcceptsSubmissions is the single gate the coordinator consults before
// accepting a submission. Status alone is insufficient: status changes are
// driven by a polling scheduler with bounded latency, so the time window is
// always re-checked here.
func (t Task) AcceptsSubmissions(now time.Time) bool {
	return t.Status == StatusActive && !now.Before(t.StartsAt) && !now.After(t.EndsAt)
}
