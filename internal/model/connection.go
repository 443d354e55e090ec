package model

import "time"

// Provider identifies an external calendar provider.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
	ProviderApple   Provider = "apple"
)

// Connection pairs a user with one external calendar and holds the OAuth
// credential used to reach it.
type Connection struct {
	// ID is the internal unique identifier for this connection.
	ID string `json:"id" db:"id"`

	// UserID is the owning user.
	UserID string `json:"user_id" db:"user_id"`

	// Provider identifies which calendar service this connection targets.
	Provider Provider `json:"provider" db:"provider"`

	// CalendarID is the calendar's identifier within the provider
	// (e.g., "primary" for the user's main Google calendar).
	CalendarID string `json:"calendar_id" db:"calendar_id"`

	// AccessToken is the current OAuth bearer token.
	AccessToken string `json:"-" db:"access_token"`

	// RefreshToken renews the access token; when nil the credential
	// cannot self-renew and the user must reconnect once it expires.
	RefreshToken *string `json:"-" db:"refresh_token"`

	// TokenExpiresAt is when the access token stops being accepted.
	TokenExpiresAt time.Time `json:"token_expires_at" db:"token_expires_at"`

	// SyncToken is the provider's opaque incremental-sync cursor.
	// Nil until the first successful sync returns one.
	SyncToken *string `json:"-" db:"sync_token"`

	// IsActive controls whether pull sync runs for this connection.
	IsActive bool `json:"is_active" db:"is_active"`

	// IsExportTarget marks the single connection (per user) that newly
	// scheduled local events are pushed to.
	IsExportTarget bool `json:"is_export_target" db:"is_export_target"`

	// LastSyncAt is when the last fully successful sync completed.
	LastSyncAt *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CanRefresh reports whether the connection holds a refresh token.
func (c *Connection) CanRefresh() bool {
	return c.RefreshToken != nil && *c.RefreshToken != ""
}
