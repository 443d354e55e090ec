package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntoineXev/miniorg/internal/model"
	"github.com/AntoineXev/miniorg/internal/provider"
	"github.com/AntoineXev/miniorg/internal/token"
)

// defaultCallTimeout bounds each individual provider call so an
// unresponsive provider cannot hang the caller's request.
const defaultCallTimeout = 30 * time.Second

// Service is the calendar sync facade the CRUD/API layer calls. It
// composes the token manager, provider adapters, reconciler, and
// propagator into the pull operation (SyncConnection) and the push
// operations (ExportEvent and friends).
type Service struct {
	store       Store
	tokens      *token.Manager
	providers   *provider.Registry
	reconciler  *Reconciler
	propagator  *Propagator
	callTimeout time.Duration
	now         func() time.Time
}

// NewService wires up the sync facade. A callTimeout of zero selects the
// default per-call deadline.
func NewService(s Store, tokens *token.Manager, providers *provider.Registry, callTimeout time.Duration) *Service {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Service{
		store:       s,
		tokens:      tokens,
		providers:   providers,
		reconciler:  NewReconciler(s),
		propagator:  NewPropagator(s, tokens, providers, callTimeout),
		callTimeout: callTimeout,
		now:         time.Now,
	}
}

// AuthURL returns the provider's consent-screen URL for a new connection.
func (s *Service) AuthURL(prov model.Provider, redirectURI, state string) (string, error) {
	adapter, err := s.providers.Get(prov)
	if err != nil {
		return "", err
	}
	return adapter.AuthURL(redirectURI, state), nil
}

// Connect exchanges an authorization code and creates the resulting
// connection for the user. The first connection a user creates becomes
// active but not the export target; both flags are adjusted separately.
func (s *Service) Connect(
	ctx context.Context,
	userID string,
	prov model.Provider,
	code, redirectURI, calendarID string,
) (*model.Connection, error) {
	adapter, err := s.providers.Get(prov)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	ts, err := adapter.ExchangeCode(callCtx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	conn := &model.Connection{
		UserID:         userID,
		Provider:       prov,
		CalendarID:     calendarID,
		AccessToken:    ts.AccessToken,
		TokenExpiresAt: ts.ExpiresAt,
		IsActive:       true,
	}
	if ts.RefreshToken != "" {
		rt := ts.RefreshToken
		conn.RefreshToken = &rt
	}

	if err := s.store.CreateConnection(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// SyncConnection pulls the connection's events for [start, end) and
// reconciles them into the local store. The incremental-sync cursor and
// last-sync timestamp are committed only after the whole batch succeeds,
// so a partial failure causes the next sync to safely re-scan the same
// range rather than silently skip events.
func (s *Service) SyncConnection(ctx context.Context, connectionID string, start, end time.Time) error {
	conn, err := s.store.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return err
	}
	if !conn.IsActive {
		return nil
	}

	accessToken, err := s.tokens.EnsureValidToken(ctx, conn.ID)
	if err != nil {
		return err
	}

	adapter, err := s.providers.Get(conn.Provider)
	if err != nil {
		return err
	}

	syncToken := ""
	if conn.SyncToken != nil {
		syncToken = *conn.SyncToken
	}

	result, err := s.listEvents(ctx, adapter, accessToken, conn.CalendarID, start, end, syncToken)
	cursorExpired := errors.Is(err, provider.ErrSyncTokenExpired)
	if cursorExpired {
		// Stale cursor: fall back to a full range scan.
		result, err = s.listEvents(ctx, adapter, accessToken, conn.CalendarID, start, end, "")
	}
	if err != nil {
		return fmt.Errorf("listing events for connection %s: %w", conn.ID, err)
	}

	if err := s.reconciler.Reconcile(ctx, conn, result.Events); err != nil {
		return err
	}

	nextToken := conn.SyncToken
	if result.NextSyncToken != "" {
		nt := result.NextSyncToken
		nextToken = &nt
	} else if cursorExpired {
		// The old cursor is known dead; retaining it would repeat the
		// expired-cursor round trip on every sync.
		nextToken = nil
	}
	return s.store.UpdateConnectionSync(ctx, conn.ID, nextToken, s.now())
}

// listEvents runs one provider list call under the per-call deadline.
func (s *Service) listEvents(
	ctx context.Context,
	adapter provider.Provider,
	accessToken, calendarID string,
	start, end time.Time,
	syncToken string,
) (*provider.ListResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return adapter.ListEvents(callCtx, accessToken, calendarID, start, end, syncToken)
}

// ExportEvent pushes a locally authored event to the given connection.
func (s *Service) ExportEvent(ctx context.Context, connectionID, eventID string) error {
	return s.propagator.ExportEvent(ctx, connectionID, eventID)
}

// ExportToTarget pushes a locally authored event to the user's export
// target connection, if one is configured.
func (s *Service) ExportToTarget(ctx context.Context, userID, eventID string) error {
	conn, err := s.store.GetExportTarget(ctx, userID)
	if err != nil {
		return err
	}
	return s.propagator.ExportEvent(ctx, conn.ID, eventID)
}

// UpdateExportedEvent pushes the event's current local state to its
// remote copy.
func (s *Service) UpdateExportedEvent(ctx context.Context, eventID string) error {
	return s.propagator.UpdateExportedEvent(ctx, eventID)
}

// DeleteExportedEvent removes the event's remote copy, best effort.
func (s *Service) DeleteExportedEvent(ctx context.Context, eventID string) error {
	return s.propagator.DeleteExportedEvent(ctx, eventID)
}
