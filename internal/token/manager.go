// Package token keeps connection credentials usable: every provider call
// goes through the Manager, which refreshes access tokens before they
// expire and persists the result.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
	"github.com/AntoineXev/miniorg/internal/provider"
)

// Errors surfaced by the manager.
var (
	// ErrNoAccessToken means the connection holds no credential at all.
	ErrNoAccessToken = errors.New("connection has no access token")

	// ErrNoRefreshToken means the token is expired and the connection
	// cannot self-renew; the user must reconnect.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// expiryMargin is how long before actual expiry a token is treated as
// expired. It absorbs clock skew and the latency of the provider call
// the token is about to be used for.
const expiryMargin = 5 * time.Minute

// defaultCallTimeout bounds the refresh round trip; the refresh runs
// under the per-connection lock, so it must never hang open-ended.
const defaultCallTimeout = 30 * time.Second

// ConnectionStore is the slice of the persistence contract the manager
// needs.
type ConnectionStore interface {
	GetConnectionByID(ctx context.Context, id string) (*model.Connection, error)
	UpdateConnectionTokens(ctx context.Context, id string, accessToken string, refreshToken *string, expiresAt time.Time) error
}

// Manager guarantees a connection always has a non-expired access token
// before any provider call, refreshing proactively.
//
// A connection's credential pair is a single mutable resource: the
// check-expiry → refresh → persist critical section is serialized per
// connection id, so concurrent callers wait for and reuse one in-flight
// refresh instead of racing each other with duplicate refreshes.
type Manager struct {
	store       ConnectionStore
	providers   *provider.Registry
	callTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a token manager over the given store and adapters.
// A callTimeout of zero selects the default refresh deadline.
func NewManager(store ConnectionStore, providers *provider.Registry, callTimeout time.Duration) *Manager {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Manager{
		store:       store,
		providers:   providers,
		callTimeout: callTimeout,
		locks:       make(map[string]*sync.Mutex),
		now:         time.Now,
	}
}

// connLock returns the mutex owning connectionID's credential state.
func (m *Manager) connLock(connectionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[connectionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[connectionID] = l
	}
	return l
}

// EnsureValidToken returns an access token guaranteed to outlive the
// expiry margin, refreshing and persisting the credential pair first when
// needed. A rejected refresh surfaces as provider.ErrRefreshFailed and
// means the connection is unusable until the user reconnects.
func (m *Manager) EnsureValidToken(ctx context.Context, connectionID string) (string, error) {
	l := m.connLock(connectionID)
	l.Lock()
	defer l.Unlock()

	conn, err := m.store.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return "", err
	}

	if conn.AccessToken == "" {
		return "", fmt.Errorf("connection %s: %w", connectionID, ErrNoAccessToken)
	}

	// Token still comfortably valid: hand it out unchanged.
	if conn.TokenExpiresAt.After(m.now().Add(expiryMargin)) {
		return conn.AccessToken, nil
	}

	if !conn.CanRefresh() {
		return "", fmt.Errorf("connection %s token expired: %w", connectionID, ErrNoRefreshToken)
	}

	adapter, err := m.providers.Get(conn.Provider)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	ts, err := adapter.RefreshToken(callCtx, *conn.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refreshing connection %s: %w", connectionID, err)
	}

	var newRefresh *string
	if ts.RefreshToken != "" {
		newRefresh = &ts.RefreshToken
	}
	if err := m.store.UpdateConnectionTokens(ctx, connectionID, ts.AccessToken, newRefresh, ts.ExpiresAt); err != nil {
		return "", fmt.Errorf("persisting refreshed tokens: %w", err)
	}

	return ts.AccessToken, nil
}
