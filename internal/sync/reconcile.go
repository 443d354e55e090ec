package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
	"github.com/AntoineXev/miniorg/internal/provider"
	"github.com/AntoineXev/miniorg/internal/store"
)

// Reconciler merges a batch of externally fetched events into the local
// event store, once per sync cycle.
//
// The merge rule is last-writer-wins by category: events the user has
// linked to a task are locally authoritative and never overwritten;
// unlinked imported events are provider-authoritative. Upstream
// deletions are not diffed against a previously-seen set, so an event
// removed on the provider remains locally until the user removes it.
type Reconciler struct {
	store Store
	now   func() time.Time
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(s Store) *Reconciler {
	return &Reconciler{store: s, now: time.Now}
}

// Reconcile upserts each external event into the local store, in the
// order the provider returned them. Each event is an independent
// idempotent upsert, so partial progress is safe to keep: a failed batch
// is simply re-scanned on the next sync.
func (r *Reconciler) Reconcile(ctx context.Context, conn *model.Connection, events []provider.Event) error {
	for _, ev := range events {
		if err := r.reconcileOne(ctx, conn, ev); err != nil {
			return fmt.Errorf("reconciling event %s: %w", ev.ID, err)
		}
	}
	return nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, conn *model.Connection, ev provider.Event) error {
	now := r.now().UTC()

	local, err := r.store.GetEventByExternalID(ctx, ev.ID, conn.ID)
	if err != nil && !errors.Is(err, store.ErrEventNotFound) {
		return err
	}

	if local == nil || errors.Is(err, store.ErrEventNotFound) {
		externalID := ev.ID
		connectionID := conn.ID
		created := model.Event{
			UserID:       conn.UserID,
			Title:        titleOrPlaceholder(ev.Title),
			Description:  ev.Description,
			StartTime:    ev.Start,
			EndTime:      ev.End,
			IsAllDay:     ev.AllDay,
			Color:        ev.Color,
			Source:       model.SourceForProvider(conn.Provider),
			ExternalID:   &externalID,
			ConnectionID: &connectionID,
			SyncStatus:   model.SyncSynced,
			LastSyncedAt: &now,
		}
		if ev.ResponseStatus != "" {
			rs := ev.ResponseStatus
			created.ResponseStatus = &rs
		}
		return r.store.CreateEvent(ctx, &created)
	}

	// Task-linked events carry the user's local customization; the
	// provider's copy does not win.
	if local.IsTaskLinked() {
		return nil
	}

	local.Title = titleOrPlaceholder(ev.Title)
	local.Description = ev.Description
	local.StartTime = ev.Start
	local.EndTime = ev.End
	local.IsAllDay = ev.AllDay
	local.Color = ev.Color
	local.SyncStatus = model.SyncSynced
	local.SyncError = nil
	if ev.ResponseStatus != "" {
		rs := ev.ResponseStatus
		local.ResponseStatus = &rs
	}
	if err := r.store.UpdateEvent(ctx, *local); err != nil {
		return err
	}
	return r.store.MarkEventSynced(ctx, local.ID, now)
}

// titleOrPlaceholder guards against providers that allow empty summaries.
func titleOrPlaceholder(title string) string {
	if title == "" {
		return "(untitled)"
	}
	return title
}
