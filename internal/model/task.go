package model

import "time"

// TaskStatus is a task's lifecycle state. It is derived from the task's
// scheduling signals; the only freely settable transition is into done.
type TaskStatus string

const (
	TaskBacklog TaskStatus = "backlog"
	TaskPlanned TaskStatus = "planned"
	TaskDone    TaskStatus = "done"
)

// Deadline types for tasks without a hard scheduled date.
const (
	DeadlineSoft = "soft"
	DeadlineHard = "hard"
)

// Task is a unit of work. Status, duration, and completion timestamp are
// kept consistent with the task's scheduled date and linked events by the
// deriver; they are never edited independently once events are linked.
type Task struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Status      TaskStatus `json:"status" db:"status"`

	// ScheduledDate promotes the task to planned while set.
	ScheduledDate *time.Time `json:"scheduled_date,omitempty" db:"scheduled_date"`

	// DurationMin aggregates linked event durations in minutes. A value
	// entered manually before any event existed is preserved until the
	// first event is linked.
	DurationMin *int `json:"duration_min,omitempty" db:"duration_min"`

	// CompletedAt is set exactly when the task transitions into done.
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// DeadlineType / DeadlineSetAt track a soft deadline for tasks that
	// have no hard scheduled date.
	DeadlineType  *string    `json:"deadline_type,omitempty" db:"deadline_type"`
	DeadlineSetAt *time.Time `json:"deadline_set_at,omitempty" db:"deadline_set_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsDone reports whether the task has been completed.
func (t *Task) IsDone() bool {
	return t.Status == TaskDone
}
