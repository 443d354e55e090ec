package store

import (
	"context"
	"errors"
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
)

// Sentinel errors returned by lookups that find no row.
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrTaskNotFound       = errors.New("task not found")
)

// TaskFilter controls filtering, sorting, and pagination for task queries.
type TaskFilter struct {
	Status   *model.TaskStatus
	Query    *string // search title + description
	SortBy   string  // "scheduled_date", "created_at", "updated_at", "title"
	SortDesc bool
	Limit    int
	Offset   int
}

// Store defines the persistence interface for connections, events, and
// tasks. The sync engine depends on narrow slices of this contract,
// declared where they are consumed.
type Store interface {
	// === Connections ===

	CreateConnection(ctx context.Context, conn *model.Connection) error
	GetConnectionByID(ctx context.Context, id string) (*model.Connection, error)
	GetConnections(ctx context.Context, userID string) ([]model.Connection, error)
	GetExportTarget(ctx context.Context, userID string) (*model.Connection, error)
	UpdateConnectionTokens(ctx context.Context, id string, accessToken string, refreshToken *string, expiresAt time.Time) error
	UpdateConnectionSync(ctx context.Context, id string, syncToken *string, lastSyncAt time.Time) error
	SetExportTarget(ctx context.Context, userID, connectionID string) error
	SetConnectionActive(ctx context.Context, id string, active bool) error
	DeleteConnection(ctx context.Context, id string) error

	// === Events ===

	CreateEvent(ctx context.Context, ev *model.Event) error
	UpdateEvent(ctx context.Context, ev model.Event) error
	DeleteEvent(ctx context.Context, id string) error
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	GetEventByExternalID(ctx context.Context, externalID, connectionID string) (*model.Event, error)
	GetEventsInRange(ctx context.Context, userID string, start, end time.Time) ([]model.Event, error)
	GetEventsForTask(ctx context.Context, taskID string) ([]model.Event, error)
	LinkEventExternal(ctx context.Context, id, externalID, connectionID string, syncedAt time.Time) error
	MarkEventSynced(ctx context.Context, id string, syncedAt time.Time) error
	MarkEventSyncError(ctx context.Context, id string, message string) error

	// === Tasks ===

	CreateTask(ctx context.Context, task *model.Task) error
	UpdateTask(ctx context.Context, task model.Task) error
	DeleteTask(ctx context.Context, id string) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, userID string, filter TaskFilter) ([]model.Task, error)
}
