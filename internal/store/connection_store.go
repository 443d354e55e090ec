package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AntoineXev/miniorg/internal/model"
)

// CreateConnection inserts a new connection. Generates a UUID if ID is
// empty. The (user_id, provider, calendar_id) triple must be unique.
func (s *SQLiteStore) CreateConnection(ctx context.Context, conn *model.Connection) error {
	if conn.UserID == "" {
		return fmt.Errorf("connection user_id must not be empty")
	}
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (
			id, user_id, provider, calendar_id,
			access_token, refresh_token, token_expires_at, sync_token,
			is_active, is_export_target, last_sync_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conn.ID, conn.UserID, string(conn.Provider), conn.CalendarID,
		conn.AccessToken, conn.RefreshToken, conn.TokenExpiresAt.UTC(), conn.SyncToken,
		boolToInt(conn.IsActive), boolToInt(conn.IsExportTarget), conn.LastSyncAt,
		conn.CreatedAt, conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating connection: %w", err)
	}
	return nil
}

// GetConnectionByID retrieves a single connection by its ID.
func (s *SQLiteStore) GetConnectionByID(ctx context.Context, id string) (*model.Connection, error) {
	var conn model.Connection
	err := s.db.GetContext(ctx, &conn, "SELECT * FROM connections WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connection %s: %w", id, ErrConnectionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting connection %s: %w", id, err)
	}
	return &conn, nil
}

// GetConnections retrieves all connections owned by a user.
func (s *SQLiteStore) GetConnections(ctx context.Context, userID string) ([]model.Connection, error) {
	var conns []model.Connection
	err := s.db.SelectContext(ctx, &conns,
		"SELECT * FROM connections WHERE user_id = ? ORDER BY created_at", userID)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	return conns, nil
}

// GetExportTarget retrieves the user's export-target connection, if any.
func (s *SQLiteStore) GetExportTarget(ctx context.Context, userID string) (*model.Connection, error) {
	var conn model.Connection
	err := s.db.GetContext(ctx, &conn,
		"SELECT * FROM connections WHERE user_id = ? AND is_export_target = 1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("export target for user %s: %w", userID, ErrConnectionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting export target: %w", err)
	}
	return &conn, nil
}

// UpdateConnectionTokens persists a refreshed credential pair. A nil
// refreshToken leaves the stored refresh token untouched, since providers
// may omit it on refresh responses.
func (s *SQLiteStore) UpdateConnectionTokens(
	ctx context.Context,
	id string,
	accessToken string,
	refreshToken *string,
	expiresAt time.Time,
) error {
	var err error
	if refreshToken != nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE connections
			SET access_token = ?, refresh_token = ?, token_expires_at = ?, updated_at = ?
			WHERE id = ?`,
			accessToken, *refreshToken, expiresAt.UTC(), time.Now().UTC(), id)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE connections
			SET access_token = ?, token_expires_at = ?, updated_at = ?
			WHERE id = ?`,
			accessToken, expiresAt.UTC(), time.Now().UTC(), id)
	}
	if err != nil {
		return fmt.Errorf("updating connection %s tokens: %w", id, err)
	}
	return nil
}

// UpdateConnectionSync records the incremental-sync cursor and the time of
// the last fully successful sync.
func (s *SQLiteStore) UpdateConnectionSync(
	ctx context.Context,
	id string,
	syncToken *string,
	lastSyncAt time.Time,
) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE connections
		SET sync_token = ?, last_sync_at = ?, updated_at = ?
		WHERE id = ?`,
		syncToken, lastSyncAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating connection %s sync state: %w", id, err)
	}
	return nil
}

// SetExportTarget marks one connection as the user's export target,
// clearing the flag from any other connection in the same transaction so
// at most one export target exists per user.
func (s *SQLiteStore) SetExportTarget(ctx context.Context, userID, connectionID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE connections SET is_export_target = 0 WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing export targets: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE connections SET is_export_target = 1, updated_at = ? WHERE id = ? AND user_id = ?",
		time.Now().UTC(), connectionID, userID)
	if err != nil {
		return fmt.Errorf("setting export target %s: %w", connectionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("connection %s: %w", connectionID, ErrConnectionNotFound)
	}

	return tx.Commit()
}

// SetConnectionActive toggles pull sync for a connection.
func (s *SQLiteStore) SetConnectionActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE connections SET is_active = ?, updated_at = ? WHERE id = ?",
		boolToInt(active), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating connection %s active flag: %w", id, err)
	}
	return nil
}

// DeleteConnection removes a connection. Events referencing it are
// removed by the foreign-key cascade.
func (s *SQLiteStore) DeleteConnection(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM connections WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting connection %s: %w", id, err)
	}
	return nil
}
