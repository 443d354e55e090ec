package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
	"github.com/AntoineXev/miniorg/internal/provider"
	"github.com/AntoineXev/miniorg/internal/store"
	"github.com/AntoineXev/miniorg/internal/token"
	"github.com/AntoineXev/miniorg/tests/testutil"
)

// fakeProvider implements provider.Provider with pluggable behavior per
// operation. Operations without a configured function succeed with zero
// values.
type fakeProvider struct {
	refreshFn func(refreshToken string) (*provider.TokenSet, error)
	listFn    func(syncToken string) (*provider.ListResult, error)
	createFn  func(ctx context.Context, ev provider.Event) (string, error)
	updateFn  func(eventID string, patch provider.EventPatch) error
	deleteFn  func(eventID string) error
}

func (f *fakeProvider) Name() model.Provider       { return model.ProviderGoogle }
func (f *fakeProvider) AuthURL(_, _ string) string { return "https://example.test/consent" }

func (f *fakeProvider) ExchangeCode(_ context.Context, _, _ string) (*provider.TokenSet, error) {
	return &provider.TokenSet{
		AccessToken:  "exchanged-token",
		RefreshToken: "exchanged-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeProvider) RefreshToken(_ context.Context, refreshToken string) (*provider.TokenSet, error) {
	if f.refreshFn != nil {
		return f.refreshFn(refreshToken)
	}
	return nil, errors.New("unexpected refresh")
}

func (f *fakeProvider) ListCalendars(_ context.Context, _ string) ([]provider.Calendar, error) {
	return []provider.Calendar{{ID: "primary", Name: "Primary", Primary: true}}, nil
}

func (f *fakeProvider) ListEvents(_ context.Context, _, _ string, _, _ time.Time, syncToken string) (*provider.ListResult, error) {
	if f.listFn != nil {
		return f.listFn(syncToken)
	}
	return &provider.ListResult{}, nil
}

func (f *fakeProvider) CreateEvent(ctx context.Context, _, _ string, ev provider.Event) (string, error) {
	if f.createFn != nil {
		return f.createFn(ctx, ev)
	}
	return "ext-created", nil
}

func (f *fakeProvider) UpdateEvent(_ context.Context, _, _, eventID string, patch provider.EventPatch) error {
	if f.updateFn != nil {
		return f.updateFn(eventID, patch)
	}
	return nil
}

func (f *fakeProvider) DeleteEvent(_ context.Context, _, _, eventID string) error {
	if f.deleteFn != nil {
		return f.deleteFn(eventID)
	}
	return nil
}

// newTestEngine builds a store, registry with the fake adapter, token
// manager, and facade wired together for tests.
func newTestEngine(t *testing.T, fake *fakeProvider) (*store.SQLiteStore, *Service) {
	return newTestEngineWithTimeout(t, fake, time.Second)
}

func newTestEngineWithTimeout(t *testing.T, fake *fakeProvider, callTimeout time.Duration) (*store.SQLiteStore, *Service) {
	t.Helper()

	st := testutil.NewTestStore(t)
	registry := provider.NewRegistry()
	registry.Register(fake)
	tokens := token.NewManager(st, registry, callTimeout)
	return st, NewService(st, tokens, registry, callTimeout)
}

// createTestConnection inserts a google connection with a fresh access
// token so no refresh is triggered.
func createTestConnection(t *testing.T, st *store.SQLiteStore, mutate func(*model.Connection)) *model.Connection {
	t.Helper()

	refresh := "refresh-token"
	conn := &model.Connection{
		UserID:         "u1",
		Provider:       model.ProviderGoogle,
		CalendarID:     "primary",
		AccessToken:    "access-token",
		RefreshToken:   &refresh,
		TokenExpiresAt: time.Now().Add(time.Hour),
		IsActive:       true,
	}
	if mutate != nil {
		mutate(conn)
	}
	if err := st.CreateConnection(context.Background(), conn); err != nil {
		t.Fatalf("creating test connection: %v", err)
	}
	return conn
}

// remoteEvent builds a one-hour provider event for list results.
func remoteEvent(id, title string) provider.Event {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	return provider.Event{
		ID:    id,
		Title: title,
		Start: start,
		End:   start.Add(time.Hour),
	}
}
