package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AntoineXev/miniorg/internal/model"
)

// CreateEvent inserts a new event. Generates a UUID if ID is empty.
func (s *SQLiteStore) CreateEvent(ctx context.Context, ev *model.Event) error {
	if strings.TrimSpace(ev.Title) == "" {
		return fmt.Errorf("event title must not be empty")
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	if ev.Source == "" {
		ev.Source = model.SourceMiniorg
	}
	if ev.SyncStatus == "" {
		ev.SyncStatus = model.SyncUnsynced
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			id, user_id, title, description,
			start_time, end_time, is_all_day, color, source,
			external_id, connection_id, task_id, response_status,
			sync_status, sync_error, last_synced_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, ev.Title, ev.Description,
		ev.StartTime.UTC(), ev.EndTime.UTC(), boolToInt(ev.IsAllDay), ev.Color, string(ev.Source),
		ev.ExternalID, ev.ConnectionID, ev.TaskID, ev.ResponseStatus,
		string(ev.SyncStatus), ev.SyncError, ev.LastSyncedAt,
		ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating event: %w", err)
	}
	return nil
}

// UpdateEvent updates an existing event's mutable fields by ID.
func (s *SQLiteStore) UpdateEvent(ctx context.Context, ev model.Event) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET title = ?, description = ?, start_time = ?, end_time = ?,
			is_all_day = ?, color = ?, task_id = ?, response_status = ?,
			sync_status = ?, sync_error = ?, updated_at = ?
		WHERE id = ?`,
		ev.Title, ev.Description, ev.StartTime.UTC(), ev.EndTime.UTC(),
		boolToInt(ev.IsAllDay), ev.Color, ev.TaskID, ev.ResponseStatus,
		string(ev.SyncStatus), ev.SyncError, time.Now().UTC(),
		ev.ID,
	)
	if err != nil {
		return fmt.Errorf("updating event %s: %w", ev.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", ev.ID, ErrEventNotFound)
	}
	return nil
}

// DeleteEvent removes an event by ID.
func (s *SQLiteStore) DeleteEvent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting event %s: %w", id, err)
	}
	return nil
}

// GetEventByID retrieves a single event by its ID.
func (s *SQLiteStore) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	var ev model.Event
	err := s.db.GetContext(ctx, &ev, "SELECT * FROM events WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting event %s: %w", id, err)
	}
	return &ev, nil
}

// GetEventByExternalID retrieves the local copy of a provider event by
// its (external_id, connection_id) pair, the reconciliation lookup key.
func (s *SQLiteStore) GetEventByExternalID(ctx context.Context, externalID, connectionID string) (*model.Event, error) {
	var ev model.Event
	err := s.db.GetContext(ctx, &ev,
		"SELECT * FROM events WHERE external_id = ? AND connection_id = ?",
		externalID, connectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s/%s: %w", externalID, connectionID, ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting event by external id %s: %w", externalID, err)
	}
	return &ev, nil
}

// GetEventsInRange retrieves a user's events overlapping [start, end),
// ordered by start time.
func (s *SQLiteStore) GetEventsInRange(ctx context.Context, userID string, start, end time.Time) ([]model.Event, error) {
	var events []model.Event
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM events
		WHERE user_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time`,
		userID, end.UTC(), start.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying events in range: %w", err)
	}
	return events, nil
}

// GetEventsForTask retrieves all events linked to a task.
func (s *SQLiteStore) GetEventsForTask(ctx context.Context, taskID string) ([]model.Event, error) {
	var events []model.Event
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM events WHERE task_id = ? ORDER BY start_time", taskID)
	if err != nil {
		return nil, fmt.Errorf("querying events for task %s: %w", taskID, err)
	}
	return events, nil
}

// LinkEventExternal stamps an event with its provider identity after a
// successful export and marks it synced.
func (s *SQLiteStore) LinkEventExternal(ctx context.Context, id, externalID, connectionID string, syncedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET external_id = ?, connection_id = ?,
			sync_status = ?, sync_error = NULL, last_synced_at = ?, updated_at = ?
		WHERE id = ?`,
		externalID, connectionID,
		string(model.SyncSynced), syncedAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("linking event %s to external id %s: %w", id, externalID, err)
	}
	return nil
}

// MarkEventSynced records that the event's local and remote copies agree.
func (s *SQLiteStore) MarkEventSynced(ctx context.Context, id string, syncedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET sync_status = ?, sync_error = NULL, last_synced_at = ?, updated_at = ?
		WHERE id = ?`,
		string(model.SyncSynced), syncedAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking event %s synced: %w", id, err)
	}
	return nil
}

// MarkEventSyncError records a push failure on the event without touching
// any other field.
func (s *SQLiteStore) MarkEventSyncError(ctx context.Context, id string, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET sync_status = ?, sync_error = ?, updated_at = ?
		WHERE id = ?`,
		string(model.SyncError), message, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking event %s sync error: %w", id, err)
	}
	return nil
}
