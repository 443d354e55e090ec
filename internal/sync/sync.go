// Package sync is the calendar synchronization engine: pull-side
// reconciliation of provider events into the local store, push-side
// propagation of local mutations to the provider, and the facade that
// composes both with the token manager.
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
)

// ErrNotExported is returned when a push operation is attempted on an
// event that has no remote counterpart.
var ErrNotExported = errors.New("event is not exported")

// Store is the slice of the persistence contract the sync engine
// depends on.
type Store interface {
	CreateConnection(ctx context.Context, conn *model.Connection) error
	GetConnectionByID(ctx context.Context, id string) (*model.Connection, error)
	GetExportTarget(ctx context.Context, userID string) (*model.Connection, error)
	UpdateConnectionSync(ctx context.Context, id string, syncToken *string, lastSyncAt time.Time) error

	CreateEvent(ctx context.Context, ev *model.Event) error
	UpdateEvent(ctx context.Context, ev model.Event) error
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	GetEventByExternalID(ctx context.Context, externalID, connectionID string) (*model.Event, error)
	LinkEventExternal(ctx context.Context, id, externalID, connectionID string, syncedAt time.Time) error
	MarkEventSynced(ctx context.Context, id string, syncedAt time.Time) error
	MarkEventSyncError(ctx context.Context, id string, message string) error
}
