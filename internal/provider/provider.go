// Package provider defines the uniform contract every calendar provider
// adapter implements, isolating provider-specific wire formats from the
// sync engine.
package provider

import (
	"context"
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
)

// TokenSet is the result of a code exchange or token refresh.
type TokenSet struct {
	AccessToken string

	// RefreshToken may be empty: providers often omit it when refreshing,
	// in which case the previously stored one remains valid.
	RefreshToken string

	ExpiresAt time.Time
	Scope     string
}

// Calendar describes one calendar available on the provider account.
type Calendar struct {
	ID      string
	Name    string
	Primary bool
}

// Event is a provider-neutral calendar event as fetched from or pushed to
// an external calendar.
type Event struct {
	ID             string
	Title          string
	Description    string
	Start          time.Time
	End            time.Time
	AllDay         bool
	Color          string
	ResponseStatus string
}

// EventPatch carries a partial update; only non-nil fields are sent to
// the provider.
type EventPatch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	AllDay      *bool
	Color       *string
}

// ListResult is one page-less batch of events plus the cursor for the
// next incremental sync, when the provider issues one.
type ListResult struct {
	Events        []Event
	NextSyncToken string
}

// Provider is the capability contract for one external calendar service.
// Implementations must filter out cancelled events and non-schedulable
// pseudo-events (working-location markers and the like) from ListEvents.
type Provider interface {
	// Name returns the provider identifier.
	Name() model.Provider

	// AuthURL builds the consent-screen URL with offline access and
	// forced consent so a refresh token is always granted.
	AuthURL(redirectURI, state string) string

	// ExchangeCode performs the one-time code-for-token exchange.
	ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenSet, error)

	// RefreshToken obtains a fresh access token. A rejection is terminal
	// (ErrRefreshFailed): the user must reconnect.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)

	// ListCalendars returns the calendars visible to the account.
	ListCalendars(ctx context.Context, accessToken string) ([]Calendar, error)

	// ListEvents returns events in [start, end). When syncToken is
	// non-empty the provider returns only the delta since that cursor;
	// ErrSyncTokenExpired signals the caller to retry a full range scan.
	ListEvents(ctx context.Context, accessToken, calendarID string, start, end time.Time, syncToken string) (*ListResult, error)

	// CreateEvent creates ev on the external calendar and returns its
	// provider-assigned id.
	CreateEvent(ctx context.Context, accessToken, calendarID string, ev Event) (string, error)

	// UpdateEvent applies a partial patch to an existing event.
	UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, patch EventPatch) error

	// DeleteEvent removes an event from the external calendar.
	DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error
}
