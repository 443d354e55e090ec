// Package task derives task lifecycle state from scheduling signals and
// linked calendar events. The derivation functions are pure; Service
// applies them against the store.
package task

import (
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
)

// snapGranularity is the rounding applied when an event's end time is
// snapped to the completion moment.
const snapGranularity = 5 * time.Minute

// DeriveStatus computes a task's status from its scheduled date.
// Explicit completion is sticky: a done task stays done until explicitly
// unmarked, and completion is the only way into done. Otherwise a
// scheduled date means planned and its absence means backlog.
func DeriveStatus(scheduledDate *time.Time, current model.TaskStatus) model.TaskStatus {
	if current == model.TaskDone {
		return model.TaskDone
	}
	if scheduledDate != nil {
		return model.TaskPlanned
	}
	return model.TaskBacklog
}

// DeriveDuration returns the exact sum of linked event durations in
// minutes. When the task has no linked events it reports ok=false and
// the existing duration must be left untouched, preserving a manually
// entered value.
func DeriveDuration(events []model.Event) (minutes int, ok bool) {
	if len(events) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, ev := range events {
		total += ev.Duration()
	}
	return int(total / time.Minute), true
}

// MarkDone transitions a task into done, setting CompletedAt exactly on
// the transition. Re-marking an already-done task is a no-op.
func MarkDone(t *model.Task, now time.Time) {
	if t.Status == model.TaskDone {
		return
	}
	t.Status = model.TaskDone
	completed := now.UTC()
	t.CompletedAt = &completed
}

// UnmarkDone reverts an explicit completion: CompletedAt is cleared and
// the status is re-derived from the scheduled date.
func UnmarkDone(t *model.Task) {
	t.CompletedAt = nil
	t.Status = model.TaskBacklog
	t.Status = DeriveStatus(t.ScheduledDate, t.Status)
}

// SnapEnd moves an event's end to now rounded to the nearest five
// minutes, shifting the start so the original duration is preserved. The
// logged time then reflects actual completion rather than the originally
// planned slot.
func SnapEnd(start, end, now time.Time) (newStart, newEnd time.Time) {
	duration := end.Sub(start)
	newEnd = now.Round(snapGranularity)
	newStart = newEnd.Add(-duration)
	return newStart, newEnd
}

// sameDay reports whether two instants fall on the same calendar day in
// UTC.
func sameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
