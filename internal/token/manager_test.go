package token

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
	"github.com/AntoineXev/miniorg/internal/provider"
)

// fakeConnStore is an in-memory ConnectionStore recording token updates.
type fakeConnStore struct {
	mu      gosync.Mutex
	conns   map[string]*model.Connection
	updates int
}

func newFakeConnStore(conns ...*model.Connection) *fakeConnStore {
	s := &fakeConnStore{conns: make(map[string]*model.Connection)}
	for _, c := range conns {
		s.conns[c.ID] = c
	}
	return s
}

func (s *fakeConnStore) GetConnectionByID(_ context.Context, id string) (*model.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return nil, errors.New("connection not found")
	}
	copied := *c
	return &copied, nil
}

func (s *fakeConnStore) UpdateConnectionTokens(_ context.Context, id string, accessToken string, refreshToken *string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conns[id]
	c.AccessToken = accessToken
	if refreshToken != nil {
		c.RefreshToken = refreshToken
	}
	c.TokenExpiresAt = expiresAt
	s.updates++
	return nil
}

// fakeProvider implements provider.Provider; only RefreshToken matters
// for these tests.
type fakeProvider struct {
	refreshCalls atomic.Int64
	refreshFn    func(ctx context.Context, refreshToken string) (*provider.TokenSet, error)
}

func (f *fakeProvider) Name() model.Provider                { return model.ProviderGoogle }
func (f *fakeProvider) AuthURL(_, _ string) string          { return "" }
func (f *fakeProvider) ExchangeCode(_ context.Context, _, _ string) (*provider.TokenSet, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeProvider) RefreshToken(ctx context.Context, refreshToken string) (*provider.TokenSet, error) {
	f.refreshCalls.Add(1)
	return f.refreshFn(ctx, refreshToken)
}
func (f *fakeProvider) ListCalendars(_ context.Context, _ string) ([]provider.Calendar, error) {
	return nil, nil
}
func (f *fakeProvider) ListEvents(_ context.Context, _, _ string, _, _ time.Time, _ string) (*provider.ListResult, error) {
	return &provider.ListResult{}, nil
}
func (f *fakeProvider) CreateEvent(_ context.Context, _, _ string, _ provider.Event) (string, error) {
	return "", nil
}
func (f *fakeProvider) UpdateEvent(_ context.Context, _, _, _ string, _ provider.EventPatch) error {
	return nil
}
func (f *fakeProvider) DeleteEvent(_ context.Context, _, _, _ string) error { return nil }

func newTestManager(s *fakeConnStore, p *fakeProvider) *Manager {
	registry := provider.NewRegistry()
	registry.Register(p)
	return NewManager(s, registry, time.Second)
}

func strptr(s string) *string { return &s }

func TestEnsureValidTokenSkipsRefreshWhenFresh(t *testing.T) {
	conn := &model.Connection{
		ID:             "c1",
		Provider:       model.ProviderGoogle,
		AccessToken:    "fresh-token",
		RefreshToken:   strptr("rt"),
		TokenExpiresAt: time.Now().Add(time.Hour),
	}
	store := newFakeConnStore(conn)
	prov := &fakeProvider{refreshFn: func(context.Context, string) (*provider.TokenSet, error) {
		t.Fatal("refresh must not be called for a fresh token")
		return nil, nil
	}}

	m := newTestManager(store, prov)
	got, err := m.EnsureValidToken(context.Background(), "c1")
	if err != nil {
		t.Fatalf("EnsureValidToken: %v", err)
	}
	if got != "fresh-token" {
		t.Errorf("got token %q, want the existing one", got)
	}
}

func TestEnsureValidTokenRefreshesWithinMargin(t *testing.T) {
	// Expired one second ago.
	conn := &model.Connection{
		ID:             "c1",
		Provider:       model.ProviderGoogle,
		AccessToken:    "stale-token",
		RefreshToken:   strptr("rt"),
		TokenExpiresAt: time.Now().Add(-time.Second),
	}
	store := newFakeConnStore(conn)
	newExpiry := time.Now().Add(time.Hour)
	prov := &fakeProvider{refreshFn: func(context.Context, string) (*provider.TokenSet, error) {
		return &provider.TokenSet{AccessToken: "new-token", ExpiresAt: newExpiry}, nil
	}}

	m := newTestManager(store, prov)
	got, err := m.EnsureValidToken(context.Background(), "c1")
	if err != nil {
		t.Fatalf("EnsureValidToken: %v", err)
	}
	if got != "new-token" {
		t.Errorf("got token %q, want refreshed token", got)
	}
	if n := prov.refreshCalls.Load(); n != 1 {
		t.Errorf("refresh called %d times, want exactly 1", n)
	}

	persisted, _ := store.GetConnectionByID(context.Background(), "c1")
	if persisted.AccessToken != "new-token" {
		t.Error("refreshed access token must be persisted")
	}
	if !persisted.TokenExpiresAt.Equal(newExpiry) {
		t.Error("refreshed expiry must be persisted")
	}
	// Provider omitted the refresh token: the stored one stays.
	if persisted.RefreshToken == nil || *persisted.RefreshToken != "rt" {
		t.Error("stored refresh token must survive a refresh that omits one")
	}
}

func TestEnsureValidTokenSingleRefreshUnderConcurrency(t *testing.T) {
	conn := &model.Connection{
		ID:             "c1",
		Provider:       model.ProviderGoogle,
		AccessToken:    "stale-token",
		RefreshToken:   strptr("rt"),
		TokenExpiresAt: time.Now().Add(-time.Minute),
	}
	store := newFakeConnStore(conn)
	prov := &fakeProvider{refreshFn: func(context.Context, string) (*provider.TokenSet, error) {
		// Widen the race window.
		time.Sleep(20 * time.Millisecond)
		return &provider.TokenSet{AccessToken: "new-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}}

	m := newTestManager(store, prov)

	const callers = 8
	var wg gosync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.EnsureValidToken(context.Background(), "c1")
			if err != nil {
				errs <- err
				return
			}
			if tok != "new-token" {
				errs <- errors.New("caller got token " + tok)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if n := prov.refreshCalls.Load(); n != 1 {
		t.Errorf("refresh called %d times under %d concurrent callers, want exactly 1", n, callers)
	}
}

func TestEnsureValidTokenBoundsRefreshCall(t *testing.T) {
	conn := &model.Connection{
		ID:             "c1",
		Provider:       model.ProviderGoogle,
		AccessToken:    "stale-token",
		RefreshToken:   strptr("rt"),
		TokenExpiresAt: time.Now().Add(-time.Minute),
	}
	store := newFakeConnStore(conn)
	// The provider never answers; the refresh runs under the connection
	// lock, so only the call deadline can release it.
	prov := &fakeProvider{refreshFn: func(ctx context.Context, _ string) (*provider.TokenSet, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	registry := provider.NewRegistry()
	registry.Register(prov)
	m := NewManager(store, registry, 50*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := m.EnsureValidToken(context.Background(), "c1")
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want context.DeadlineExceeded", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("EnsureValidToken must return once the refresh deadline fires")
	}

	// The lock must be free again for the next caller.
	if _, err := m.EnsureValidToken(context.Background(), "c1"); err == nil {
		t.Error("second caller should still fail against the hung provider, not deadlock")
	}
}

func TestEnsureValidTokenErrors(t *testing.T) {
	t.Run("no access token", func(t *testing.T) {
		store := newFakeConnStore(&model.Connection{ID: "c1", Provider: model.ProviderGoogle})
		m := newTestManager(store, &fakeProvider{})
		if _, err := m.EnsureValidToken(context.Background(), "c1"); !errors.Is(err, ErrNoAccessToken) {
			t.Errorf("err = %v, want ErrNoAccessToken", err)
		}
	})

	t.Run("expired without refresh token", func(t *testing.T) {
		store := newFakeConnStore(&model.Connection{
			ID:             "c1",
			Provider:       model.ProviderGoogle,
			AccessToken:    "stale",
			TokenExpiresAt: time.Now().Add(-time.Minute),
		})
		m := newTestManager(store, &fakeProvider{})
		if _, err := m.EnsureValidToken(context.Background(), "c1"); !errors.Is(err, ErrNoRefreshToken) {
			t.Errorf("err = %v, want ErrNoRefreshToken", err)
		}
	})

	t.Run("rejected refresh is terminal", func(t *testing.T) {
		store := newFakeConnStore(&model.Connection{
			ID:             "c1",
			Provider:       model.ProviderGoogle,
			AccessToken:    "stale",
			RefreshToken:   strptr("revoked"),
			TokenExpiresAt: time.Now().Add(-time.Minute),
		})
		prov := &fakeProvider{refreshFn: func(context.Context, string) (*provider.TokenSet, error) {
			return nil, provider.ErrRefreshFailed
		}}
		m := newTestManager(store, prov)
		if _, err := m.EnsureValidToken(context.Background(), "c1"); !errors.Is(err, provider.ErrRefreshFailed) {
			t.Errorf("err = %v, want ErrRefreshFailed", err)
		}
	})
}
