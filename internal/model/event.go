package model

import "time"

// EventSource identifies where an event was authored.
type EventSource string

const (
	SourceMiniorg EventSource = "miniorg"
	SourceGoogle  EventSource = "google"
	SourceOutlook EventSource = "outlook"
)

// SourceForProvider maps a provider to the event source recorded on
// events imported from it.
func SourceForProvider(p Provider) EventSource {
	switch p {
	case ProviderOutlook:
		return SourceOutlook
	default:
		return SourceGoogle
	}
}

// SyncStatus tracks whether an event's local and remote copies are known
// to agree.
type SyncStatus string

const (
	SyncUnsynced SyncStatus = "unsynced"
	SyncPending  SyncStatus = "pending"
	SyncSynced   SyncStatus = "synced"
	SyncError    SyncStatus = "error"
)

// Attendee response statuses as reported by providers.
const (
	ResponseNeedsAction = "needsAction"
	ResponseDeclined    = "declined"
	ResponseTentative   = "tentative"
	ResponseAccepted    = "accepted"
)

// Event is a time-boxed entry on the timeline. Locally authored events
// have Source == SourceMiniorg; imported or exported events additionally
// carry ExternalID and ConnectionID.
type Event struct {
	ID          string      `json:"id" db:"id"`
	UserID      string      `json:"user_id" db:"user_id"`
	Title       string      `json:"title" db:"title"`
	Description string      `json:"description" db:"description"`
	StartTime   time.Time   `json:"start_time" db:"start_time"`
	EndTime     time.Time   `json:"end_time" db:"end_time"`
	IsAllDay    bool        `json:"is_all_day" db:"is_all_day"`
	Color       string      `json:"color" db:"color"`
	Source      EventSource `json:"source" db:"source"`

	// ExternalID is the event's identifier on the provider, set once the
	// event has been imported or exported.
	ExternalID *string `json:"external_id,omitempty" db:"external_id"`

	// ConnectionID is the owning connection for externally sourced or
	// exported events.
	ConnectionID *string `json:"connection_id,omitempty" db:"connection_id"`

	// TaskID links the event to a task. A task may own several events
	// (e.g., multiple work sessions); an event links to at most one task.
	TaskID *string `json:"task_id,omitempty" db:"task_id"`

	// ResponseStatus is the provider-supplied attendance answer.
	ResponseStatus *string `json:"response_status,omitempty" db:"response_status"`

	SyncStatus   SyncStatus `json:"sync_status" db:"sync_status"`
	SyncError    *string    `json:"sync_error,omitempty" db:"sync_error"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsExported reports whether the event has a remote counterpart.
func (e *Event) IsExported() bool {
	return e.ExternalID != nil && *e.ExternalID != "" &&
		e.ConnectionID != nil && *e.ConnectionID != ""
}

// IsTaskLinked reports whether the event belongs to a task, which makes
// it locally authoritative during reconciliation.
func (e *Event) IsTaskLinked() bool {
	return e.TaskID != nil && *e.TaskID != ""
}

// Duration returns the event's length.
func (e *Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}
